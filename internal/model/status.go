package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// StatusChange is a manual sold/available toggle. It is either MarkSold or
// MarkAvailable; the unexported method keeps the set closed.
type StatusChange interface {
	statusChange()
}

// MarkSold closes out the remaining units of an item.
type MarkSold struct {
	Buyer string
	At    time.Time
}

// MarkAvailable puts an item back on sale with the given stock.
type MarkAvailable struct {
	Quantity int
}

func (MarkSold) statusChange()      {}
func (MarkAvailable) statusChange() {}

// ErrInvalidRestock is returned when an item is made available with no units.
var ErrInvalidRestock = errors.New("available items need a quantity of at least 1")

// statusChangeRequest is the wire form of a StatusChange.
type statusChangeRequest struct {
	Sold      bool   `json:"sold"`
	BuyerName string `json:"buyer_name"`
	Quantity  int    `json:"quantity"`
}

// DecodeStatusChange parses {"sold": true, "buyer_name": ...} or
// {"sold": false, "quantity": n} into a StatusChange.
func DecodeStatusChange(data []byte, now time.Time) (StatusChange, error) {
	var req statusChangeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decoding status change: %w", err)
	}
	if req.Sold {
		return MarkSold{Buyer: req.BuyerName, At: now}, nil
	}
	if req.Quantity < 1 {
		return nil, ErrInvalidRestock
	}
	return MarkAvailable{Quantity: req.Quantity}, nil
}
