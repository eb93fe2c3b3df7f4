// Package catalog is the live catalog: the mutation facade over the store,
// the snapshot feed, the pure filter derivation and the per-viewer sync
// controller.
package catalog

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/erazemk/remarket/internal/metrics"
	"github.com/erazemk/remarket/internal/model"
	"github.com/erazemk/remarket/internal/store"
)

// Catalog applies user commands to the store and keeps the feed current.
type Catalog struct {
	db        *sql.DB
	feed      *Feed
	maxImages int
	now       func() time.Time
}

// New creates a catalog. maxImages caps the photos per item.
func New(db *sql.DB, feed *Feed, maxImages int) *Catalog {
	if maxImages <= 0 {
		maxImages = model.DefaultMaxImages
	}
	return &Catalog{db: db, feed: feed, maxImages: maxImages, now: time.Now}
}

// MaxImages returns the photo cap per item.
func (c *Catalog) MaxImages() int { return c.maxImages }

// Feed returns the snapshot feed.
func (c *Catalog) Feed() *Feed { return c.feed }

// Create adds a new item.
func (c *Catalog) Create(ctx context.Context, in model.ItemInput, by string) (*model.Item, error) {
	in.Normalize()
	if err := in.Validate(c.maxImages); err != nil {
		return nil, err
	}

	item, err := store.CreateItem(ctx, c.db, in, by)
	if err != nil {
		return nil, err
	}

	metrics.ItemsCreatedTotal.Inc()
	slog.Info("item created", "id", item.ID, "title", item.Title, "by", by)
	c.feed.Changed(ctx)
	return item, nil
}

// Update replaces the editable fields of an item.
func (c *Catalog) Update(ctx context.Context, id int64, in model.ItemInput, by string) (*model.Item, error) {
	in.Normalize()
	if err := in.Validate(c.maxImages); err != nil {
		return nil, err
	}

	item, err := store.UpdateItem(ctx, c.db, id, in, by)
	if err != nil {
		return nil, err
	}

	metrics.ItemsUpdatedTotal.Inc()
	slog.Info("item updated", "id", id, "by", by)
	c.feed.Changed(ctx)
	return item, nil
}

// RecordSale sells units of an item.
func (c *Catalog) RecordSale(ctx context.Context, id int64, details model.SaleDetails, by string) (*model.Item, error) {
	item, err := store.RecordSale(ctx, c.db, id, details, by, c.now())
	if err != nil {
		return nil, err
	}

	metrics.SalesTotal.Inc()
	metrics.SaleUnitsTotal.Add(float64(details.Quantity))
	slog.Info("sale recorded", "id", id, "units", details.Quantity, "remaining", item.Quantity, "by", by)
	c.feed.Changed(ctx)
	return item, nil
}

// ChangeStatus applies a manual sold/available toggle.
func (c *Catalog) ChangeStatus(ctx context.Context, id int64, change model.StatusChange, by string) (*model.Item, error) {
	item, err := store.ApplyStatusChange(ctx, c.db, id, change, by)
	if err != nil {
		return nil, err
	}

	to := "available"
	if item.IsSold {
		to = "sold"
	}
	metrics.StatusChangesTotal.WithLabelValues(to).Inc()
	slog.Info("item status changed", "id", id, "to", to, "by", by)
	c.feed.Changed(ctx)
	return item, nil
}

// Delete removes an item permanently.
func (c *Catalog) Delete(ctx context.Context, id int64, by string) error {
	if err := store.DeleteItem(ctx, c.db, id); err != nil {
		return err
	}

	metrics.ItemsDeletedTotal.Inc()
	slog.Info("item deleted", "id", id, "by", by)
	c.feed.Changed(ctx)
	return nil
}

// Clear removes every item and returns how many were deleted.
func (c *Catalog) Clear(ctx context.Context, by string) (int64, error) {
	n, err := store.DeleteAllItems(ctx, c.db)
	if err != nil {
		return 0, err
	}

	metrics.ItemsDeletedTotal.Add(float64(n))
	slog.Warn("catalog cleared", "items", n, "by", by)
	c.feed.Changed(ctx)
	return n, nil
}

// Get returns an item, or nil if it does not exist.
func (c *Catalog) Get(ctx context.Context, id int64) (*model.Item, error) {
	return store.GetItem(ctx, c.db, id)
}

// Stats aggregates the catalog for the dashboard.
func (c *Catalog) Stats(ctx context.Context) (*model.Stats, error) {
	return store.ItemStats(ctx, c.db)
}

// Sales returns the sale history of an item, or of every item if id <= 0.
func (c *Catalog) Sales(ctx context.Context, id int64) ([]model.Sale, error) {
	return store.ListSales(ctx, c.db, id)
}
