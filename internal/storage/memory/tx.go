package memory

import (
	"context"
	"time"

	"github.com/xenking/supplier-orders/internal/domain/order"
	"github.com/xenking/supplier-orders/internal/domain/product"
)

// WithinTx runs fn as one unit of work. Status changes and stock decrements
// made through the scope are staged and only written to the store when fn
// succeeds, so readers never observe a unit of work half applied.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, sc order.Scope) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	sc := &scope{
		store:    s,
		statuses: make(map[string]stagedStatus),
		taken:    make(map[string]int),
	}
	if err := fn(ctx, sc); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return sc.commit()
}

type stagedStatus struct {
	// committed is the status the store held when the change was staged.
	committed order.Status
	to        order.Status
	at        time.Time
}

type scope struct {
	store    *Store
	statuses map[string]stagedStatus
	// taken is the pending decrement per product.
	taken map[string]int
}

func (sc *scope) Orders() order.StatusWriter { return sc }
func (sc *scope) Stock() product.Stock       { return (*scopeStock)(sc) }

// Transition implements order.StatusWriter. The returned order reflects the
// staged status.
func (sc *scope) Transition(ctx context.Context, id string, from, to order.Status) (*order.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := sc.store
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	current := o.Status
	staged, ok := sc.statuses[id]
	if ok {
		current = staged.to
	} else {
		staged.committed = o.Status
	}
	if current != from || !order.CanTransition(from, to) {
		return nil, &order.InvalidTransitionError{OrderID: id, From: current, To: to}
	}

	staged.to = to
	staged.at = s.now().UTC()
	sc.statuses[id] = staged

	c := cloneOrder(o)
	c.Status = staged.to
	c.UpdatedAt = staged.at
	return c, nil
}

type scopeStock scope

// ConditionalDecrement implements product.Stock inside the unit of work. The
// check accounts for decrements already staged in the same scope.
func (st *scopeStock) ConditionalDecrement(ctx context.Context, id string, qty int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := product.CheckRange(id, qty); err != nil {
		return err
	}

	s := st.store
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return product.ErrNotFound
	}
	available := p.Stock - st.taken[id]
	if available < qty {
		return &product.InsufficientStockError{ProductID: id, Requested: qty, Available: available}
	}
	st.taken[id] += qty
	return nil
}

// commit re-checks every staged change against the store and applies them
// all under one lock, or none of them. Writes outside units of work can move
// stock between staging and commit.
func (sc *scope) commit() error {
	s := sc.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, st := range sc.statuses {
		o, ok := s.orders[id]
		if !ok {
			return order.ErrNotFound
		}
		if o.Status != st.committed {
			return &order.InvalidTransitionError{OrderID: id, From: o.Status, To: st.to}
		}
	}
	for id, qty := range sc.taken {
		p, ok := s.products[id]
		if !ok {
			return product.ErrNotFound
		}
		if p.Stock < qty {
			return &product.InsufficientStockError{ProductID: id, Requested: qty, Available: p.Stock}
		}
	}

	for id, st := range sc.statuses {
		o := s.orders[id]
		o.Status = st.to
		o.UpdatedAt = st.at
	}
	for id, qty := range sc.taken {
		p := s.products[id]
		p.Stock -= qty
		s.products[id] = p
	}
	return nil
}
