package product

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsufficientStockError_Is(t *testing.T) {
	var err error = &InsufficientStockError{ProductID: "p1", Requested: 5, Available: 2}
	wrapped := errors.Wrap(err, "decrement")

	assert.ErrorIs(t, wrapped, ErrInsufficientStock)
	assert.NotErrorIs(t, wrapped, ErrNotFound)

	var ise *InsufficientStockError
	require.ErrorAs(t, wrapped, &ise)
	assert.Equal(t, 2, ise.Available)
	assert.Equal(t, "insufficient stock for product p1: requested 5, available 2", ise.Error())
}

func TestValidateQuantity(t *testing.T) {
	p := Product{ID: "p1", MinQuantity: 5, Stock: 10}

	tests := []struct {
		name    string
		qty     int
		wantErr string
	}{
		{name: "at minimum", qty: 5},
		{name: "all stock", qty: 10},
		{name: "below minimum", qty: 4, wantErr: "product p1: quantity 4 is below the minimum order quantity 5"},
		{name: "above stock", qty: 11, wantErr: "product p1: quantity 11 exceeds available stock 10"},
		{name: "zero", qty: 0, wantErr: "product p1: quantity must be between 1 and 2147483647"},
		{name: "negative", qty: -3, wantErr: "product p1: quantity must be between 1 and 2147483647"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuantity(p, tt.qty)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			var qe *QuantityError
			require.ErrorAs(t, err, &qe)
			assert.Equal(t, tt.wantErr, qe.Error())
		})
	}
}

func TestAddQuantity(t *testing.T) {
	got, err := AddQuantity("p1", 3, 4)
	require.NoError(t, err)
	assert.Equal(t, 7, got)

	got, err = AddQuantity("p1", MaxQuantity-1, 1)
	require.NoError(t, err)
	assert.Equal(t, MaxQuantity, got)

	for _, tt := range []struct{ a, b int }{
		{MaxQuantity, 1},
		{MaxQuantity, MaxQuantity},
		{0, 1},
		{1, -1},
	} {
		_, err := AddQuantity("p1", tt.a, tt.b)
		var qe *QuantityError
		require.ErrorAs(t, err, &qe, "%d+%d", tt.a, tt.b)
		assert.True(t, qe.OutOfRange)
	}
}
