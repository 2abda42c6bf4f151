package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/supplier-orders/internal/domain/auth"
	"github.com/xenking/supplier-orders/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, buyer_id, supplier_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	createOrderItemSQL = `INSERT INTO order_items (id, order_id, position, product_id, product_name, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	getOrderSQL = `SELECT id, buyer_id, supplier_id, status, created_at, updated_at
		FROM orders WHERE id = $1`

	orderExistsSQL = `SELECT status FROM orders WHERE id = $1`

	transitionOrderSQL = `UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING id, buyer_id, supplier_id, status, created_at, updated_at`

	listOrderItemsSQL = `SELECT id, product_id, product_name, quantity, unit_price
		FROM order_items WHERE order_id = $1 ORDER BY position`

	listOrderItemsByOrdersSQL = `SELECT order_id, id, product_id, product_name, quantity, unit_price
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`

	// The counterparty columns are selected by the caller's role.
	listBuyerOrdersSQL = `SELECT o.id, o.buyer_id, o.supplier_id, o.status, o.created_at, o.updated_at,
			p.id, p.company_name, p.contact_name, p.phone, '' AS opening_time, '' AS closing_time
		FROM orders o
		JOIN parties p ON p.id = o.supplier_id
		WHERE o.buyer_id = $1
		ORDER BY o.created_at DESC, o.id DESC`

	listSupplierOrdersSQL = `SELECT o.id, o.buyer_id, o.supplier_id, o.status, o.created_at, o.updated_at,
			p.id, p.company_name, p.contact_name, p.phone, p.opening_time, p.closing_time
		FROM orders o
		JOIN parties p ON p.id = o.buyer_id
		WHERE o.supplier_id = $1
		ORDER BY o.created_at DESC, o.id DESC`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order and its items in one transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, createOrderSQL,
			o.ID, o.BuyerID, o.SupplierID, string(o.Status), o.CreatedAt, o.UpdatedAt,
		); err != nil {
			return fmt.Errorf("inserting order row: %w", err)
		}

		batch := &pgx.Batch{}
		for i, it := range o.Items {
			batch.Queue(createOrderItemSQL,
				it.ID, o.ID, i, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting %d items: %w", len(o.Items), err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// Get returns an order with its items.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return getOrder(ctx, r.pool, id)
}

// ListByParty returns the party's orders, newest first, each with the
// contact details of the other party.
func (r *OrderRepository) ListByParty(ctx context.Context, partyID string, role auth.Role) ([]order.View, error) {
	query := listBuyerOrdersSQL
	if role == auth.RoleSupplier {
		query = listSupplierOrdersSQL
	}

	rows, err := r.pool.Query(ctx, query, partyID)
	if err != nil {
		return nil, fmt.Errorf("listing orders of %q: %w", partyID, err)
	}
	views, err := pgx.CollectRows(rows, scanView)
	if err != nil {
		return nil, fmt.Errorf("listing orders of %q: %w", partyID, err)
	}
	if len(views) == 0 {
		return views, nil
	}

	ids := make([]string, len(views))
	byID := make(map[string]*order.View, len(views))
	for i := range views {
		ids[i] = views[i].ID
		byID[views[i].ID] = &views[i]
	}

	itemRows, err := r.pool.Query(ctx, listOrderItemsByOrdersSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("listing order items: %w", err)
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var (
			orderID string
			it      order.Item
			qty     int32
		)
		if err := itemRows.Scan(&orderID, &it.ID, &it.ProductID, &it.ProductName, &qty, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
		}
		it.Quantity = int(qty)
		if v, ok := byID[orderID]; ok {
			v.Items = append(v.Items, it)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("listing order items: %w", err)
	}
	return views, nil
}

// statusWriter moves order status inside a transaction.
type statusWriter struct {
	tx pgx.Tx
}

var _ order.StatusWriter = statusWriter{}

// Transition performs a compare-and-set on the status column. The UPDATE
// takes the row lock, so a concurrent transition of the same order waits and
// then finds the status already changed.
func (w statusWriter) Transition(ctx context.Context, id string, from, to order.Status) (*order.Order, error) {
	if !order.CanTransition(from, to) {
		return nil, &order.InvalidTransitionError{OrderID: id, From: from, To: to}
	}

	rows, err := w.tx.Query(ctx, transitionOrderSQL, id, string(from), string(to))
	if err != nil {
		return nil, fmt.Errorf("transitioning order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transitioning order %q: %w", id, err)
		}

		var current string
		if err := w.tx.QueryRow(ctx, orderExistsSQL, id).Scan(&current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, order.ErrNotFound
			}
			return nil, fmt.Errorf("reading order %q: %w", id, err)
		}
		return nil, &order.InvalidTransitionError{OrderID: id, From: order.Status(current), To: to}
	}

	if o.Items, err = listItems(ctx, w.tx, id); err != nil {
		return nil, err
	}
	return &o, nil
}

func getOrder(ctx context.Context, q querier, id string) (*order.Order, error) {
	rows, err := q.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	if o.Items, err = listItems(ctx, q, id); err != nil {
		return nil, err
	}
	return &o, nil
}

func listItems(ctx context.Context, q querier, orderID string) ([]order.Item, error) {
	rows, err := q.Query(ctx, listOrderItemsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing items of order %q: %w", orderID, err)
	}
	items, err := pgx.CollectRows(rows, scanItem)
	if err != nil {
		return nil, fmt.Errorf("listing items of order %q: %w", orderID, err)
	}
	return items, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(&o.ID, &o.BuyerID, &o.SupplierID, &status, &o.CreatedAt, &o.UpdatedAt)
	o.Status = order.Status(status)
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return o, err
}

func scanItem(row pgx.CollectableRow) (order.Item, error) {
	var (
		it  order.Item
		qty int32
	)
	err := row.Scan(&it.ID, &it.ProductID, &it.ProductName, &qty, &it.UnitPrice)
	it.Quantity = int(qty)
	return it, err
}

func scanView(row pgx.CollectableRow) (order.View, error) {
	var (
		v       order.View
		status  string
		created time.Time
		updated time.Time
	)
	err := row.Scan(
		&v.ID, &v.BuyerID, &v.SupplierID, &status, &created, &updated,
		&v.Counterparty.PartyID, &v.Counterparty.CompanyName, &v.Counterparty.ContactName,
		&v.Counterparty.Phone, &v.Counterparty.OpeningTime, &v.Counterparty.ClosingTime,
	)
	v.Status = order.Status(status)
	v.CreatedAt = created.UTC()
	v.UpdatedAt = updated.UTC()
	return v, err
}
