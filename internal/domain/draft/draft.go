// Package draft holds in-progress carts per (buyer, supplier) pair. Drafts are
// ephemeral: they may expire with the buyer's session and are never a
// substitute for a placed order.
package draft

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when no draft exists for the requested pair.
var ErrNotFound = errors.New("draft not found")

// Draft is a buyer's unsaved selection of quantities from one supplier.
type Draft struct {
	BuyerID    string
	SupplierID string
	// Items maps product ID to the desired quantity. Only positive
	// quantities are ever stored.
	Items     map[string]int
	UpdatedAt time.Time
}

// Store is the keyed backing of the draft holder. Implementations may be
// in-process or a shared cache; they only persist what they are given.
type Store interface {
	Put(ctx context.Context, d Draft) error
	Get(ctx context.Context, buyerID, supplierID string) (*Draft, error)
	List(ctx context.Context, buyerID string) ([]Draft, error)
	Delete(ctx context.Context, buyerID, supplierID string) error
}

// Filter returns a copy of items without entries whose quantity is not
// positive.
func Filter(items map[string]int) map[string]int {
	out := make(map[string]int, len(items))
	for id, qty := range items {
		if id == "" || qty <= 0 {
			continue
		}
		out[id] = qty
	}
	return out
}

// ParseQuantity converts a raw quantity as sent by a cart form. Anything
// that is not an integer yields 0, which Filter later drops.
func ParseQuantity(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return n
}
