package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/erazemk/remarket/internal/metrics"
	"github.com/erazemk/remarket/internal/model"
	"github.com/erazemk/remarket/internal/pubsub"
	"github.com/erazemk/remarket/internal/store"
)

// Snapshot is a full, ordered copy of the catalog. Items must be treated as
// read-only: the same slice is shared by every subscriber.
type Snapshot struct {
	Items    []model.Item
	Version  uint64
	LoadedAt time.Time
}

// ItemSource is a live stream of catalog snapshots.
type ItemSource interface {
	Subscribe(fn func(Snapshot)) (unsubscribe func())
}

// Notifier spreads change notices between instances sharing a database.
type Notifier interface {
	// Notify tells other instances the catalog changed.
	Notify(ctx context.Context) error
	// Listen calls fn for every notice from another instance until ctx is
	// done.
	Listen(ctx context.Context, fn func()) error
}

// Feed publishes a fresh snapshot of the items table after every change.
type Feed struct {
	db       *sql.DB
	notifier Notifier
	topic    *pubsub.Topic[Snapshot]

	// refreshMu serializes reloads so versions are published in order.
	refreshMu sync.Mutex
	version   uint64
}

// NewFeed creates a feed over db. notifier may be nil for a single instance.
func NewFeed(db *sql.DB, notifier Notifier) *Feed {
	return &Feed{
		db:       db,
		notifier: notifier,
		topic:    pubsub.NewTopic[Snapshot](),
	}
}

// Refresh reloads the catalog and publishes it. On failure the previous
// snapshot stays current.
func (f *Feed) Refresh(ctx context.Context) error {
	f.refreshMu.Lock()
	defer f.refreshMu.Unlock()

	items, err := store.ListItems(ctx, f.db)
	if err != nil {
		metrics.CatalogRefreshFailures.Inc()
		slog.Error("catalog refresh failed", "error", err)
		return fmt.Errorf("refreshing catalog: %w", err)
	}

	f.version++
	metrics.CatalogItems.Set(float64(len(items)))
	f.topic.Publish(Snapshot{Items: items, Version: f.version, LoadedAt: time.Now()})
	return nil
}

// Changed refreshes the local snapshot and notifies other instances.
func (f *Feed) Changed(ctx context.Context) {
	if err := f.Refresh(ctx); err != nil {
		return
	}
	if f.notifier == nil {
		return
	}
	if err := f.notifier.Notify(ctx); err != nil {
		slog.Warn("failed to notify other instances", "error", err)
	}
}

// Subscribe calls fn with the current snapshot, loading it first if needed,
// and then with every new one.
func (f *Feed) Subscribe(fn func(Snapshot)) func() {
	if _, ok := f.topic.Latest(); !ok {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		f.Refresh(ctx)
		cancel()
	}
	sub := f.topic.Subscribe(fn)
	return sub.Close
}

// Latest returns the current snapshot.
func (f *Feed) Latest() (Snapshot, bool) {
	return f.topic.Latest()
}

// Current returns the latest snapshot, loading one if none exists yet.
func (f *Feed) Current(ctx context.Context) (Snapshot, error) {
	if s, ok := f.Latest(); ok {
		return s, nil
	}
	if err := f.Refresh(ctx); err != nil {
		return Snapshot{}, err
	}
	s, _ := f.Latest()
	return s, nil
}

// Run loads the first snapshot and then follows notices from other instances
// until ctx is done.
func (f *Feed) Run(ctx context.Context) error {
	if err := f.Refresh(ctx); err != nil {
		return err
	}
	if f.notifier == nil {
		<-ctx.Done()
		return nil
	}
	return f.notifier.Listen(ctx, func() {
		f.Refresh(ctx)
	})
}

// Close stops every subscription.
func (f *Feed) Close() {
	f.topic.Close()
}
