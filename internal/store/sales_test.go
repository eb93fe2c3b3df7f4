package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/remarket/internal/db"
	"github.com/erazemk/remarket/internal/model"
)

func TestRecordSaleUpdatesCounters(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, newInput("Cadeira", 5), "")
	_, err := database.Exec(`UPDATE items SET sold_count = 2 WHERE id = ?`, item.ID)
	require.NoError(t, err)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	got, err := RecordSale(ctx, database, item.ID, model.SaleDetails{Quantity: 3, BuyerName: " João "}, "ana@example.com", at)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Quantity)
	assert.Equal(t, 5, got.SoldCount)
	assert.False(t, got.IsSold)
	assert.Equal(t, "João", got.BuyerName)
	assert.Equal(t, "ana@example.com", got.SoldBy)
	require.NotNil(t, got.SoldAt)
	assert.True(t, got.SoldAt.Equal(at))

	got, err = RecordSale(ctx, database, item.ID, model.SaleDetails{Quantity: 2}, "ana@example.com", at)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)
	assert.Equal(t, 7, got.SoldCount)
	assert.True(t, got.IsSold)

	sales, err := ListSales(ctx, database, item.ID)
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, "Cadeira", sales[0].ItemTitle)
}

func TestRecordSaleRejectsOverselling(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, newInput("Mesa", 1), "")

	_, err := RecordSale(ctx, database, item.ID, model.SaleDetails{Quantity: 2}, "", time.Now())
	assert.ErrorIs(t, err, ErrInsufficientQuantity)

	_, err = RecordSale(ctx, database, item.ID, model.SaleDetails{Quantity: 0}, "", time.Now())
	assert.ErrorIs(t, err, model.ErrInvalidSaleQuantity)

	_, err = RecordSale(ctx, database, item.ID+100, model.SaleDetails{Quantity: 1}, "", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)

	got, _ := GetItem(ctx, database, item.ID)
	assert.Equal(t, 1, got.Quantity, "failed sales must not change the item")
	assert.Equal(t, 0, got.SoldCount)
}

func TestApplyStatusChange(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, newInput("Guitarra", 3), "")

	at := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	sold, err := ApplyStatusChange(ctx, database, item.ID, model.MarkSold{Buyer: "Rita", At: at}, "ana@example.com")
	require.NoError(t, err)
	assert.True(t, sold.IsSold)
	assert.Equal(t, 0, sold.Quantity)
	assert.Equal(t, 3, sold.SoldCount)
	assert.Equal(t, "Rita", sold.BuyerName)

	available, err := ApplyStatusChange(ctx, database, item.ID, model.MarkAvailable{Quantity: 2}, "ana@example.com")
	require.NoError(t, err)
	assert.False(t, available.IsSold)
	assert.Equal(t, 2, available.Quantity)
	assert.Equal(t, 3, available.SoldCount, "sold count only grows")

	_, err = ApplyStatusChange(ctx, database, item.ID, model.MarkAvailable{Quantity: 0}, "")
	assert.ErrorIs(t, err, model.ErrInvalidRestock)

	_, err = ApplyStatusChange(ctx, database, item.ID+100, model.MarkSold{At: at}, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSalesAll(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a, _ := CreateItem(ctx, database, newInput("a", 2), "")
	b, _ := CreateItem(ctx, database, newInput("b", 2), "")
	RecordSale(ctx, database, a.ID, model.SaleDetails{Quantity: 1}, "", time.Now())
	RecordSale(ctx, database, b.ID, model.SaleDetails{Quantity: 1}, "", time.Now())

	sales, err := ListSales(ctx, database, 0)
	require.NoError(t, err)
	assert.Len(t, sales, 2)

	// Sale history goes away with the item.
	require.NoError(t, DeleteItem(ctx, database, a.ID))
	sales, err = ListSales(ctx, database, 0)
	require.NoError(t, err)
	assert.Len(t, sales, 1)
}
