package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/supplier-orders/internal/domain/order"
	"github.com/xenking/supplier-orders/internal/domain/product"
)

var _ order.Transactor = (*Transactor)(nil)

// Transactor runs order units of work in a database transaction.
type Transactor struct {
	pool *pgxpool.Pool
}

// NewTransactor returns a Transactor that uses the given pool.
func NewTransactor(pool *pgxpool.Pool) *Transactor {
	return &Transactor{pool: pool}
}

// WithinTx begins a transaction, hands fn a scope bound to it and commits
// when fn returns nil. Any error, including a cancelled ctx, rolls back.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, s order.Scope) error) error {
	return pgx.BeginFunc(ctx, t.pool, func(tx pgx.Tx) error {
		return fn(ctx, txScope{tx: tx})
	})
}

type txScope struct {
	tx pgx.Tx
}

func (s txScope) Orders() order.StatusWriter { return statusWriter{tx: s.tx} }
func (s txScope) Stock() product.Stock       { return &ProductRepository{q: s.tx} }
