package catalog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/remarket/internal/db"
	"github.com/erazemk/remarket/internal/model"
	"github.com/erazemk/remarket/internal/store"
)

type countingNotifier struct {
	mu    sync.Mutex
	sent  int
	fires chan struct{}
}

func (n *countingNotifier) Notify(context.Context) error {
	n.mu.Lock()
	n.sent++
	n.mu.Unlock()
	return nil
}

func (n *countingNotifier) Listen(ctx context.Context, fn func()) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-n.fires:
			fn()
		}
	}
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent
}

func newTestCatalog(t *testing.T) (*Catalog, *Feed, *countingNotifier) {
	t.Helper()
	database := db.NewTestDB(t)
	notifier := &countingNotifier{fires: make(chan struct{})}
	feed := NewFeed(database, notifier)
	t.Cleanup(feed.Close)
	return New(database, feed, 0), feed, notifier
}

type snapshotRecorder struct {
	ch chan Snapshot
}

func (r *snapshotRecorder) next(t *testing.T) Snapshot {
	t.Helper()
	select {
	case s := <-r.ch:
		return s
	case <-time.After(time.Second):
		t.Fatal("no snapshot")
		return Snapshot{}
	}
}

func record(t *testing.T, feed *Feed) *snapshotRecorder {
	r := &snapshotRecorder{ch: make(chan Snapshot, 16)}
	t.Cleanup(feed.Subscribe(func(s Snapshot) { r.ch <- s }))
	return r
}

func TestFeedDeliversInitialSnapshot(t *testing.T) {
	c, feed, _ := newTestCatalog(t)
	_, err := store.CreateItem(context.Background(), c.db, model.ItemInput{Title: "Existing", Category: "Geral", Quantity: 1}, "")
	require.NoError(t, err)

	snap := record(t, feed).next(t)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "Existing", snap.Items[0].Title)
	assert.EqualValues(t, 1, snap.Version)
}

func TestMutationsPublishSnapshots(t *testing.T) {
	c, feed, notifier := newTestCatalog(t)
	ctx := context.Background()
	rec := record(t, feed)
	assert.Empty(t, rec.next(t).Items)

	item, err := c.Create(ctx, model.ItemInput{Title: "  Cadeira ", Price: decimal.NewFromInt(40), Quantity: 5}, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Cadeira", item.Title)
	assert.Equal(t, model.DefaultCategory, item.Category)

	snap := rec.next(t)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 5, snap.Items[0].Quantity)

	_, err = c.RecordSale(ctx, item.ID, model.SaleDetails{Quantity: 5, BuyerName: "Rita"}, "ana@example.com")
	require.NoError(t, err)
	snap = rec.next(t)
	assert.True(t, snap.Items[0].IsSold)
	assert.Equal(t, 5, snap.Items[0].SoldCount)

	_, err = c.ChangeStatus(ctx, item.ID, model.MarkAvailable{Quantity: 1}, "ana@example.com")
	require.NoError(t, err)
	snap = rec.next(t)
	assert.False(t, snap.Items[0].IsSold)

	require.NoError(t, c.Delete(ctx, item.ID, "ana@example.com"))
	assert.Empty(t, rec.next(t).Items)

	assert.Equal(t, 4, notifier.count())
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	c, _, notifier := newTestCatalog(t)
	ctx := context.Background()

	_, err := c.Create(ctx, model.ItemInput{Title: "   "}, "")
	assert.ErrorIs(t, err, model.ErrTitleRequired)

	_, err = c.Create(ctx, model.ItemInput{Title: "x", Price: decimal.NewFromInt(-1)}, "")
	assert.ErrorIs(t, err, model.ErrNegativePrice)

	_, err = c.Create(ctx, model.ItemInput{Title: "x", ImageURLs: []string{"a", "b", "c", "d"}}, "")
	assert.Error(t, err)

	assert.Zero(t, notifier.count())
}

func TestOversellDoesNotPublish(t *testing.T) {
	c, feed, _ := newTestCatalog(t)
	ctx := context.Background()

	item, _ := c.Create(ctx, model.ItemInput{Title: "Mesa", Quantity: 1}, "")
	rec := record(t, feed)
	before := rec.next(t)

	_, err := c.RecordSale(ctx, item.ID, model.SaleDetails{Quantity: 2}, "")
	assert.ErrorIs(t, err, store.ErrInsufficientQuantity)

	latest, _ := feed.Latest()
	assert.Equal(t, before.Version, latest.Version)
}

func TestClearAndStats(t *testing.T) {
	c, _, _ := newTestCatalog(t)
	ctx := context.Background()

	a, _ := c.Create(ctx, model.ItemInput{Title: "a", Price: decimal.RequireFromString("10.50"), Quantity: 3}, "")
	c.Create(ctx, model.ItemInput{Title: "b", Quantity: 1}, "")
	c.RecordSale(ctx, a.ID, model.SaleDetails{Quantity: 2}, "")

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalItems)
	assert.True(t, stats.Revenue.Equal(decimal.NewFromInt(21)))

	sales, err := c.Sales(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, sales, 1)

	n, err := c.Clear(ctx, "")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	latest, _ := c.Feed().Latest()
	assert.Empty(t, latest.Items)
}

func TestFeedRunFollowsNotices(t *testing.T) {
	c, feed, notifier := newTestCatalog(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx) }()
	require.Eventually(t, func() bool {
		_, ok := feed.Latest()
		return ok
	}, time.Second, time.Millisecond)

	rec := record(t, feed)
	rec.next(t)

	// Another instance wrote to the shared database.
	_, err := store.CreateItem(ctx, c.db, model.ItemInput{Title: "remote", Category: "Geral", Quantity: 1}, "")
	require.NoError(t, err)
	notifier.fires <- struct{}{}

	snap := rec.next(t)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "remote", snap.Items[0].Title)

	cancel()
	assert.NoError(t, <-done)
}
