package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemInputNormalize(t *testing.T) {
	in := ItemInput{Title: "  Cadeira ", Category: "   ", Brand: " Tok "}
	in.Normalize()

	assert.Equal(t, "Cadeira", in.Title)
	assert.Equal(t, DefaultCategory, in.Category)
	assert.Equal(t, "Tok", in.Brand)
}

func TestItemInputValidate(t *testing.T) {
	valid := ItemInput{Title: "Mesa", Price: decimal.NewFromInt(100), Quantity: 1}
	require.NoError(t, valid.Validate(DefaultMaxImages))

	tests := []struct {
		name   string
		mutate func(*ItemInput)
		want   error
	}{
		{"empty title", func(in *ItemInput) { in.Title = "" }, ErrTitleRequired},
		{"negative price", func(in *ItemInput) { in.Price = decimal.NewFromInt(-1) }, ErrNegativePrice},
		{"negative quantity", func(in *ItemInput) { in.Quantity = -2 }, ErrNegativeQuantity},
		{"too many images", func(in *ItemInput) { in.ImageURLs = []string{"a", "b", "c", "d"} }, ErrTooManyImages},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			assert.ErrorIs(t, in.Validate(DefaultMaxImages), tt.want)
		})
	}

	zero := valid
	zero.Quantity = 0
	assert.NoError(t, zero.Validate(DefaultMaxImages), "sold out items are still valid")

	many := valid
	many.ImageURLs = []string{"a", "b", "c", "d"}
	assert.NoError(t, many.Validate(0))
}

func TestDraftToInput(t *testing.T) {
	in := Draft{Title: "Chair", Price: 19.999, ImageURL: "http://x/a.jpg"}.ToInput()
	assert.Equal(t, "Chair", in.Title)
	assert.Equal(t, DefaultCategory, in.Category)
	assert.Equal(t, 1, in.Quantity)
	assert.True(t, in.Price.Equal(decimal.RequireFromString("20")))
	assert.Equal(t, []string{"http://x/a.jpg"}, in.ImageURLs)
}

func TestDecodeStatusChange(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	c, err := DecodeStatusChange([]byte(`{"sold": true, "buyer_name": "Ana"}`), now)
	require.NoError(t, err)
	assert.Equal(t, MarkSold{Buyer: "Ana", At: now}, c)

	c, err = DecodeStatusChange([]byte(`{"sold": false, "quantity": 3}`), now)
	require.NoError(t, err)
	assert.Equal(t, MarkAvailable{Quantity: 3}, c)

	_, err = DecodeStatusChange([]byte(`{"sold": false}`), now)
	assert.ErrorIs(t, err, ErrInvalidRestock)

	_, err = DecodeStatusChange([]byte(`{`), now)
	assert.Error(t, err)
}
