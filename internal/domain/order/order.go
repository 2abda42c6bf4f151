package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/supplier-orders/internal/domain/auth"
	"github.com/xenking/supplier-orders/internal/domain/product"
)

// Order is a durable request from one buyer to one supplier.
type Order struct {
	ID         string
	BuyerID    string
	SupplierID string
	Status     Status
	Items      []Item
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Total sums the snapshotted line prices.
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total.Round(2)
}

// Item is a line of an order. Name, price and quantity are captured when the
// order is placed and never re-read from the catalog.
type Item struct {
	ID          string
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Contact is the snapshot of a party's contact details shown next to an
// order.
type Contact struct {
	PartyID     string
	CompanyName string
	ContactName string
	Phone       string
	// OpeningTime and ClosingTime are the buyer's store hours ("HH:MM").
	// They are empty for suppliers.
	OpeningTime string
	ClosingTime string
}

// View is an order as listed to one of its parties, together with the
// contact details of the other party.
type View struct {
	Order
	Counterparty Contact
}

// Repository defines persistence operations for orders outside a unit of
// work.
type Repository interface {
	// Create persists the order and all its items atomically.
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	// ListByParty returns the orders of a buyer or a supplier, newest first.
	ListByParty(ctx context.Context, partyID string, role auth.Role) ([]View, error)
}

// StatusWriter changes order state inside a unit of work.
type StatusWriter interface {
	// Transition moves the order from one status to another only if the
	// order is currently in from. The check and the write are one atomic
	// operation. It returns the updated order with its items, ErrNotFound,
	// or *InvalidTransitionError.
	Transition(ctx context.Context, id string, from, to Status) (*Order, error)
}

// Scope exposes the stores bound to one unit of work.
type Scope interface {
	Orders() StatusWriter
	Stock() product.Stock
}

// Transactor runs fn inside a single unit of work. A nil return commits; any
// error rolls back every change made through the Scope.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, s Scope) error) error
}

// DraftClearer removes the buyer's draft once it became an order.
type DraftClearer interface {
	Clear(ctx context.Context, buyerID, supplierID string) error
}
