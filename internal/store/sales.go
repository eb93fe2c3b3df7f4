package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/remarket/internal/model"
)

// RecordSale sells units of an item in a single transaction: quantity goes
// down, the sold count goes up, the audit fields are set and a sale row is
// appended. Selling more than the remaining quantity is rejected.
func RecordSale(ctx context.Context, db *sql.DB, itemID int64, details model.SaleDetails, soldBy string, at time.Time) (*model.Item, error) {
	if err := details.Validate(); err != nil {
		return nil, err
	}
	at = at.UTC()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var quantity int
	err = tx.QueryRowContext(ctx, `SELECT quantity FROM items WHERE id = ?`, itemID).Scan(&quantity)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("checking quantity: %w", err)
	}

	if details.Quantity > quantity {
		return nil, fmt.Errorf("%w: have %d, selling %d", ErrInsufficientQuantity, quantity, details.Quantity)
	}

	remaining := quantity - details.Quantity
	_, err = tx.ExecContext(ctx,
		`UPDATE items SET quantity = ?, sold_count = sold_count + ?, is_sold = ?,
		        buyer_name = ?, sold_at = ?, sold_by = ?, updated_at = ?
		 WHERE id = ?`,
		remaining, details.Quantity, remaining == 0, details.BuyerName, at, soldBy, at, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	}

	if err := insertSale(ctx, tx, itemID, details.Quantity, details.BuyerName, soldBy, at); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing sale: %w", err)
	}
	return GetItem(ctx, db, itemID)
}

// ApplyStatusChange applies a manual sold/available toggle. MarkSold moves
// every remaining unit into the sold count; MarkAvailable restocks.
func ApplyStatusChange(ctx context.Context, db *sql.DB, itemID int64, change model.StatusChange, by string) (*model.Item, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var quantity int
	err = tx.QueryRowContext(ctx, `SELECT quantity FROM items WHERE id = ?`, itemID).Scan(&quantity)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("checking quantity: %w", err)
	}

	switch c := change.(type) {
	case model.MarkSold:
		at := c.At.UTC()
		_, err = tx.ExecContext(ctx,
			`UPDATE items SET quantity = 0, sold_count = sold_count + ?, is_sold = 1,
			        buyer_name = ?, sold_at = ?, sold_by = ?, updated_at = ?
			 WHERE id = ?`,
			quantity, c.Buyer, at, by, at, itemID,
		)
		if err != nil {
			return nil, fmt.Errorf("marking item sold: %w", err)
		}
		if quantity > 0 {
			if err := insertSale(ctx, tx, itemID, quantity, c.Buyer, by, at); err != nil {
				return nil, err
			}
		}
	case model.MarkAvailable:
		if c.Quantity < 1 {
			return nil, model.ErrInvalidRestock
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE items SET quantity = ?, is_sold = 0, last_edited_by = ?, updated_at = ?
			 WHERE id = ?`,
			c.Quantity, by, time.Now().UTC(), itemID,
		)
		if err != nil {
			return nil, fmt.Errorf("marking item available: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown status change %T", change)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing status change: %w", err)
	}
	return GetItem(ctx, db, itemID)
}

func insertSale(ctx context.Context, tx *sql.Tx, itemID int64, quantity int, buyer, soldBy string, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO sales (item_id, quantity, buyer_name, sold_by, sold_at) VALUES (?, ?, ?, ?, ?)`,
		itemID, quantity, buyer, soldBy, at,
	)
	if err != nil {
		return fmt.Errorf("recording sale: %w", err)
	}
	return nil
}

// ListSales returns the sale history, newest first. itemID <= 0 lists every
// sale.
func ListSales(ctx context.Context, db *sql.DB, itemID int64) ([]model.Sale, error) {
	query := `SELECT s.id, s.item_id, s.quantity, s.buyer_name, s.sold_by, s.sold_at, i.title
	          FROM sales s
	          JOIN items i ON i.id = s.item_id`
	var args []any
	if itemID > 0 {
		query += ` WHERE s.item_id = ?`
		args = append(args, itemID)
	}
	query += ` ORDER BY s.sold_at DESC, s.id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sales: %w", err)
	}
	defer rows.Close()

	sales := []model.Sale{}
	for rows.Next() {
		var s model.Sale
		if err := rows.Scan(&s.ID, &s.ItemID, &s.Quantity, &s.BuyerName, &s.SoldBy, &s.SoldAt, &s.ItemTitle); err != nil {
			return nil, fmt.Errorf("scanning sale: %w", err)
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}
