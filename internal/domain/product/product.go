package product

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrInsufficientStock is matched by *InsufficientStockError.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// InsufficientStockError reports a conditional decrement that was refused
// because the product held less stock than requested at that instant.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Is makes errors.Is(err, ErrInsufficientStock) hold.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// Product is a catalog item owned by one supplier.
type Product struct {
	ID          string
	SupplierID  string
	Name        string
	UnitPrice   decimal.Decimal
	MinQuantity int
	Stock       int
}

// Stock is the single mutation path the ordering core uses on the catalog.
type Stock interface {
	// ConditionalDecrement subtracts qty from the product stock only if the
	// stock is at least qty, as one atomic operation. It returns ErrNotFound
	// or *InsufficientStockError and never applies a partial decrement.
	ConditionalDecrement(ctx context.Context, id string, qty int) error
}

// Repository defines catalog reads plus the conditional decrement.
type Repository interface {
	Stock
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	ListBySupplier(ctx context.Context, supplierID string) ([]Product, error)
}
