package redisx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/supplier-orders/internal/domain/draft"
)

func TestDraftCodec(t *testing.T) {
	in := draft.Draft{
		BuyerID:    "b1",
		SupplierID: "s1",
		Items:      map[string]int{"p1": 3, "p2": 12},
		UpdatedAt:  time.Date(2025, 3, 1, 10, 30, 0, 500, time.UTC),
	}

	out, err := decodeDraft(encodeDraft(in))
	require.NoError(t, err)
	assert.Equal(t, in.BuyerID, out.BuyerID)
	assert.Equal(t, in.SupplierID, out.SupplierID)
	assert.Equal(t, in.Items, out.Items)
	assert.True(t, in.UpdatedAt.Equal(out.UpdatedAt))
}

func TestDecodeDraft_IgnoresUnknownFields(t *testing.T) {
	d, err := decodeDraft([]byte(`{"buyerId":"b1","version":2,"items":{"p1":1}}`))
	require.NoError(t, err)
	assert.Equal(t, "b1", d.BuyerID)
	assert.Equal(t, map[string]int{"p1": 1}, d.Items)
}

func TestDecodeDraft_Invalid(t *testing.T) {
	_, err := decodeDraft([]byte(`{"items":{"p1":"x"}}`))
	require.Error(t, err)

	_, err = decodeDraft([]byte(`{"updatedAt":"yesterday"}`))
	require.Error(t, err)
}
