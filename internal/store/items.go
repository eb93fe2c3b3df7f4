package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/remarket/internal/model"
)

// Store errors.
var (
	ErrNotFound             = errors.New("not found")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
)

const itemColumns = `id, title, description, category, price, image_urls, location, brand, color,
	additional_link, quantity, sold_count, is_sold, created_by, last_edited_by, buyer_name,
	sold_at, sold_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*model.Item, error) {
	item := &model.Item{}
	var images string
	err := row.Scan(&item.ID, &item.Title, &item.Description, &item.Category, &item.Price, &images,
		&item.Location, &item.Brand, &item.Color, &item.AdditionalLink, &item.Quantity, &item.SoldCount,
		&item.IsSold, &item.CreatedBy, &item.LastEditedBy, &item.BuyerName, &item.SoldAt, &item.SoldBy,
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(images), &item.ImageURLs); err != nil {
		return nil, fmt.Errorf("decoding image urls of item %d: %w", item.ID, err)
	}
	if item.ImageURLs == nil {
		item.ImageURLs = []string{}
	}
	return item, nil
}

func encodeImages(urls []string) (string, error) {
	if urls == nil {
		urls = []string{}
	}
	data, err := json.Marshal(urls)
	if err != nil {
		return "", fmt.Errorf("encoding image urls: %w", err)
	}
	return string(data), nil
}

// CreateItem inserts a new item. The input is expected to be normalized and
// validated by the caller.
func CreateItem(ctx context.Context, db *sql.DB, in model.ItemInput, createdBy string) (*model.Item, error) {
	images, err := encodeImages(in.ImageURLs)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result, err := db.ExecContext(ctx,
		`INSERT INTO items (title, description, category, price, image_urls, location, brand, color,
		                    additional_link, quantity, is_sold, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Title, in.Description, in.Category, in.Price.String(), images, in.Location, in.Brand, in.Color,
		in.AdditionalLink, in.Quantity, in.Quantity == 0, createdBy, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID, or nil if it does not exist.
func GetItem(ctx context.Context, db *sql.DB, id int64) (*model.Item, error) {
	item, err := scanItem(db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns every item, newest first.
func ListItems(ctx context.Context, db *sql.DB) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// UpdateItem replaces an item's editable fields. The sold flag follows the
// new quantity; sale counters are left alone.
func UpdateItem(ctx context.Context, db *sql.DB, id int64, in model.ItemInput, editedBy string) (*model.Item, error) {
	images, err := encodeImages(in.ImageURLs)
	if err != nil {
		return nil, err
	}

	result, err := db.ExecContext(ctx,
		`UPDATE items SET title = ?, description = ?, category = ?, price = ?, image_urls = ?,
		        location = ?, brand = ?, color = ?, additional_link = ?, quantity = ?, is_sold = ?,
		        last_edited_by = ?, updated_at = ?
		 WHERE id = ?`,
		in.Title, in.Description, in.Category, in.Price.String(), images, in.Location, in.Brand, in.Color,
		in.AdditionalLink, in.Quantity, in.Quantity == 0, editedBy, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	}
	if err := expectRow(result); err != nil {
		return nil, err
	}
	return GetItem(ctx, db, id)
}

// DeleteItem permanently removes an item and its sale history.
func DeleteItem(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return expectRow(result)
}

// DeleteAllItems empties the catalog and returns the number of removed items.
func DeleteAllItems(ctx context.Context, db *sql.DB) (int64, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM items`)
	if err != nil {
		return 0, fmt.Errorf("deleting all items: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted items: %w", err)
	}
	return n, nil
}

// ItemStats aggregates the catalog for the dashboard. Revenue is the sum of
// price times units sold.
func ItemStats(ctx context.Context, db *sql.DB) (*model.Stats, error) {
	rows, err := db.QueryContext(ctx, `SELECT price, quantity, sold_count, is_sold FROM items`)
	if err != nil {
		return nil, fmt.Errorf("querying item stats: %w", err)
	}
	defer rows.Close()

	stats := &model.Stats{Revenue: decimal.Zero}
	for rows.Next() {
		var price decimal.Decimal
		var quantity, soldCount int
		var sold bool
		if err := rows.Scan(&price, &quantity, &soldCount, &sold); err != nil {
			return nil, fmt.Errorf("scanning item stats: %w", err)
		}
		stats.TotalItems++
		if sold {
			stats.SoldItems++
		} else {
			stats.AvailableItems++
		}
		stats.UnitsInStock += quantity
		stats.UnitsSold += soldCount
		stats.Revenue = stats.Revenue.Add(price.Mul(decimal.NewFromInt(int64(soldCount))))
	}
	return stats, rows.Err()
}

func expectRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
