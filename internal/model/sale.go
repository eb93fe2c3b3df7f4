package model

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SaleDetails is what the sale form produces.
type SaleDetails struct {
	Quantity  int    `json:"quantity"`
	BuyerName string `json:"buyer_name"`
}

// ErrInvalidSaleQuantity is returned for sales of zero or fewer units.
var ErrInvalidSaleQuantity = errors.New("sale quantity must be positive")

// Validate checks the sale details.
func (d *SaleDetails) Validate() error {
	d.BuyerName = strings.TrimSpace(d.BuyerName)
	if d.Quantity <= 0 {
		return ErrInvalidSaleQuantity
	}
	return nil
}

// Sale is one recorded sale of an item.
type Sale struct {
	ID        int64     `json:"id"`
	ItemID    int64     `json:"item_id"`
	Quantity  int       `json:"quantity"`
	BuyerName string    `json:"buyer_name,omitempty"`
	SoldBy    string    `json:"sold_by,omitempty"`
	SoldAt    time.Time `json:"sold_at"`

	// Joined fields (not always populated).
	ItemTitle string `json:"item_title,omitempty"`
}

// Stats summarizes the catalog for the admin dashboard.
type Stats struct {
	TotalItems     int             `json:"total_items"`
	AvailableItems int             `json:"available_items"`
	SoldItems      int             `json:"sold_items"`
	UnitsInStock   int             `json:"units_in_stock"`
	UnitsSold      int             `json:"units_sold"`
	Revenue        decimal.Decimal `json:"revenue"`
}
