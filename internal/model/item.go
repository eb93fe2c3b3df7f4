package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Item represents a catalog listing. IsSold is derived from Quantity and is
// never written on its own.
type Item struct {
	ID             int64           `json:"id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Category       string          `json:"category"`
	Price          decimal.Decimal `json:"price"`
	ImageURLs      []string        `json:"image_urls"`
	Location       string          `json:"location,omitempty"`
	Brand          string          `json:"brand,omitempty"`
	Color          string          `json:"color,omitempty"`
	AdditionalLink string          `json:"additional_link,omitempty"`
	Quantity       int             `json:"quantity"`
	SoldCount      int             `json:"sold_count"`
	IsSold         bool            `json:"is_sold"`

	CreatedBy    string     `json:"created_by,omitempty"`
	LastEditedBy string     `json:"last_edited_by,omitempty"`
	BuyerName    string     `json:"buyer_name,omitempty"`
	SoldAt       *time.Time `json:"sold_at,omitempty"`
	SoldBy       string     `json:"sold_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultCategory is used when an item has no category.
const DefaultCategory = "Geral"

// DefaultMaxImages is the number of photos an item may carry.
const DefaultMaxImages = 3

// Validation errors.
var (
	ErrTitleRequired    = errors.New("title required")
	ErrNegativePrice    = errors.New("price must not be negative")
	ErrNegativeQuantity = errors.New("quantity must not be negative")
	ErrTooManyImages    = errors.New("too many images")
)

// ItemInput holds the editable fields of an item, used on create and edit.
type ItemInput struct {
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Category       string          `json:"category"`
	Price          decimal.Decimal `json:"price"`
	ImageURLs      []string        `json:"image_urls"`
	Location       string          `json:"location"`
	Brand          string          `json:"brand"`
	Color          string          `json:"color"`
	AdditionalLink string          `json:"additional_link"`
	Quantity       int             `json:"quantity"`
}

// Normalize trims text fields and applies the default category.
func (in *ItemInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.Location = strings.TrimSpace(in.Location)
	in.Brand = strings.TrimSpace(in.Brand)
	in.Color = strings.TrimSpace(in.Color)
	in.AdditionalLink = strings.TrimSpace(in.AdditionalLink)
	if in.Category == "" {
		in.Category = DefaultCategory
	}
}

// Validate checks the input against the item invariants. maxImages <= 0
// disables the image cap.
func (in *ItemInput) Validate(maxImages int) error {
	if in.Title == "" {
		return ErrTitleRequired
	}
	if in.Price.IsNegative() {
		return ErrNegativePrice
	}
	if in.Quantity < 0 {
		return ErrNegativeQuantity
	}
	if maxImages > 0 && len(in.ImageURLs) > maxImages {
		return fmt.Errorf("%w: at most %d allowed, got %d", ErrTooManyImages, maxImages, len(in.ImageURLs))
	}
	return nil
}

// Input returns the editable fields of the item.
func (it *Item) Input() ItemInput {
	return ItemInput{
		Title:          it.Title,
		Description:    it.Description,
		Category:       it.Category,
		Price:          it.Price,
		ImageURLs:      append([]string(nil), it.ImageURLs...),
		Location:       it.Location,
		Brand:          it.Brand,
		Color:          it.Color,
		AdditionalLink: it.AdditionalLink,
		Quantity:       it.Quantity,
	}
}

// Available reports whether the item still has units for sale.
func (it *Item) Available() bool {
	return !it.IsSold
}
