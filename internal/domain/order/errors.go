package order

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/supplier-orders/internal/domain/product"
)

// Sentinel errors for the order lifecycle.
var (
	ErrNotFound          = errors.New("order not found")
	ErrEmptyOrder        = errors.New("order has no items with a positive quantity")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ProductNotFoundError indicates a requested product does not exist in the
// supplier's catalog.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// Is makes errors.Is(err, product.ErrNotFound) hold.
func (e *ProductNotFoundError) Is(target error) bool {
	return target == product.ErrNotFound
}

// InvalidTransitionError reports a status change attempted from the wrong
// state. It never has a side effect.
type InvalidTransitionError struct {
	OrderID string
	From    Status
	To      Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %s: cannot move from %s to %s", e.OrderID, e.From, e.To)
}

// Is makes errors.Is(err, ErrInvalidTransition) hold.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Shortfall describes one line that could not be covered by stock.
type Shortfall struct {
	ProductID string
	Requested int
	Available int
	Missing   int
}

// InsufficientStockError lists every short line of an order whose
// confirmation was rolled back.
type InsufficientStockError struct {
	OrderID    string
	Shortfalls []Shortfall
}

func (e *InsufficientStockError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "order %s: insufficient stock for", e.OrderID)
	for i, s := range e.Shortfalls {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, " %s (missing %d)", s.ProductID, s.Missing)
	}
	return b.String()
}

// Is makes errors.Is(err, product.ErrInsufficientStock) hold.
func (e *InsufficientStockError) Is(target error) bool {
	return target == product.ErrInsufficientStock
}
