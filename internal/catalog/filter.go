package catalog

import (
	"slices"
	"strings"

	"github.com/erazemk/remarket/internal/model"
)

// AllCategories is the category filter value that matches every item. It is
// also the first entry of Categories.
const AllCategories = "Todas"

// Status filters items by availability.
type Status string

const (
	StatusAll       Status = "all"
	StatusAvailable Status = "available"
	StatusSold      Status = "sold"
)

// ParseStatus maps a query value to a Status; anything unknown is StatusAll.
func ParseStatus(s string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusAvailable:
		return StatusAvailable
	case StatusSold:
		return StatusSold
	default:
		return StatusAll
	}
}

// Filter is the user's current view of the catalog.
type Filter struct {
	Query    string `json:"query"`
	Category string `json:"category"`
	Status   Status `json:"status"`
}

func (f Filter) normalized() Filter {
	f.Query = strings.ToLower(strings.TrimSpace(f.Query))
	f.Category = strings.TrimSpace(f.Category)
	if f.Category == "" {
		f.Category = AllCategories
	}
	f.Status = ParseStatus(string(f.Status))
	return f
}

// ApplyFilter returns the items matching f, keeping their order. The query is
// a case-insensitive substring of title, description and category. Viewers
// that are not admins only ever see available items.
func ApplyFilter(items []model.Item, f Filter, admin bool) []model.Item {
	f = f.normalized()
	if !admin {
		f.Status = StatusAvailable
	}

	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		if f.matches(&it) {
			out = append(out, it)
		}
	}
	return out
}

func (f Filter) matches(it *model.Item) bool {
	switch f.Status {
	case StatusAvailable:
		if it.IsSold {
			return false
		}
	case StatusSold:
		if !it.IsSold {
			return false
		}
	}
	if f.Category != AllCategories && it.Category != f.Category {
		return false
	}
	if f.Query == "" {
		return true
	}
	haystack := strings.ToLower(it.Title + " " + it.Description + " " + it.Category)
	return strings.Contains(haystack, f.Query)
}

// Categories returns the distinct item categories, sorted, with
// AllCategories first.
func Categories(items []model.Item) []string {
	seen := make(map[string]struct{}, len(items))
	cats := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.Category]; ok {
			continue
		}
		seen[it.Category] = struct{}{}
		cats = append(cats, it.Category)
	}
	slices.Sort(cats)
	return append([]string{AllCategories}, cats...)
}
