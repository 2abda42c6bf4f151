package order

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/supplier-orders/internal/domain/product"
)

// Reconciler commits the stock of a whole order, or none of it.
type Reconciler struct {
	tx Transactor
}

// NewReconciler creates a Reconciler running its work through tx.
func NewReconciler(tx Transactor) *Reconciler {
	return &Reconciler{tx: tx}
}

// Reconcile confirms a PLACED order inside one unit of work. The status is
// moved first, which serialises concurrent confirmations of the same order;
// then every line is decremented. All lines are attempted so that the
// returned *InsufficientStockError lists every short product, after which
// the unit of work is rolled back and the order stays PLACED.
func (r *Reconciler) Reconcile(ctx context.Context, orderID string) (*Order, error) {
	var confirmed *Order
	err := r.tx.WithinTx(ctx, func(ctx context.Context, s Scope) error {
		o, err := s.Orders().Transition(ctx, orderID, StatusPlaced, StatusConfirmed)
		if err != nil {
			return err
		}

		var shortfalls []Shortfall
		for _, it := range o.Items {
			err := s.Stock().ConditionalDecrement(ctx, it.ProductID, it.Quantity)
			if err == nil {
				continue
			}

			var ise *product.InsufficientStockError
			switch {
			case errors.As(err, &ise):
				shortfalls = append(shortfalls, Shortfall{
					ProductID: it.ProductID,
					Requested: it.Quantity,
					Available: ise.Available,
					Missing:   it.Quantity - ise.Available,
				})
			case errors.Is(err, product.ErrNotFound):
				shortfalls = append(shortfalls, Shortfall{
					ProductID: it.ProductID,
					Requested: it.Quantity,
					Missing:   it.Quantity,
				})
			default:
				return errors.Wrapf(err, "decrement product %s", it.ProductID)
			}
		}
		if len(shortfalls) > 0 {
			return &InsufficientStockError{OrderID: orderID, Shortfalls: shortfalls}
		}

		confirmed = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}
