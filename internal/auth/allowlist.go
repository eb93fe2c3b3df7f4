package auth

import (
	"slices"
	"strings"

	"github.com/erazemk/remarket/internal/model"
)

// AllowList is the set of emails permitted to administer the catalog.
// Membership is tested on the normalized (trimmed, lowercased) address.
type AllowList struct {
	emails map[string]struct{}
}

// NewAllowList builds an allow-list. Blank entries are ignored.
func NewAllowList(emails []string) AllowList {
	a := AllowList{emails: make(map[string]struct{}, len(emails))}
	for _, e := range emails {
		if e = model.NormalizeEmail(e); e != "" {
			a.emails[e] = struct{}{}
		}
	}
	return a
}

// ParseAllowList splits a comma separated list of emails.
func ParseAllowList(csv string) AllowList {
	return NewAllowList(strings.Split(csv, ","))
}

// Allowed reports whether email is on the list.
func (a AllowList) Allowed(email string) bool {
	_, ok := a.emails[model.NormalizeEmail(email)]
	return ok
}

// Emails returns the normalized entries in sorted order.
func (a AllowList) Emails() []string {
	out := make([]string, 0, len(a.emails))
	for e := range a.emails {
		out = append(out, e)
	}
	slices.Sort(out)
	return out
}

// Len returns the number of entries.
func (a AllowList) Len() int { return len(a.emails) }
