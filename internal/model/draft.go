package model

import "github.com/shopspring/decimal"

// Draft is an AI-extracted candidate item awaiting review. It is never
// persisted as-is; confirmed drafts become regular creates.
type Draft struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Category    string  `json:"category,omitempty"`
	Quantity    int     `json:"quantity,omitempty"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	Location    string  `json:"location,omitempty"`
	Color       string  `json:"color,omitempty"`
	Brand       string  `json:"brand,omitempty"`
}

// ToInput converts the draft into create input. A missing quantity means one
// unit.
func (d Draft) ToInput() ItemInput {
	in := ItemInput{
		Title:       d.Title,
		Description: d.Description,
		Category:    d.Category,
		Price:       decimal.NewFromFloat(d.Price).Round(2),
		Location:    d.Location,
		Brand:       d.Brand,
		Color:       d.Color,
		Quantity:    d.Quantity,
	}
	if in.Quantity <= 0 {
		in.Quantity = 1
	}
	if d.ImageURL != "" {
		in.ImageURLs = []string{d.ImageURL}
	}
	in.Normalize()
	return in
}

// Suggestion is the AI analysis of a single item photo, used to pre-fill the
// item form.
type Suggestion struct {
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	SuggestedPrice float64 `json:"suggestedPrice"`
	Category       string  `json:"category"`
}

// DefaultSuggestion is returned when the analysis cannot be parsed.
func DefaultSuggestion() Suggestion {
	return Suggestion{Title: "Novo Item", Category: DefaultCategory}
}
