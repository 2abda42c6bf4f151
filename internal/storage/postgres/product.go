package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/supplier-orders/internal/domain/product"
)

const (
	productColumns = `id, supplier_id, name, unit_price, min_quantity, stock`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`

	listProductsBySupplierSQL = `SELECT ` + productColumns + `
		FROM products WHERE supplier_id = $1 ORDER BY id`

	decrementStockSQL = `UPDATE products SET stock = stock - $2
		WHERE id = $1 AND stock >= $2`

	getStockSQL = `SELECT stock FROM products WHERE id = $1`

	upsertProductSQL = `INSERT INTO products (id, supplier_id, name, unit_price, min_quantity, stock)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			supplier_id = EXCLUDED.supplier_id,
			name = EXCLUDED.name,
			unit_price = EXCLUDED.unit_price,
			min_quantity = EXCLUDED.min_quantity,
			stock = EXCLUDED.stock`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	q querier
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{q: pool}
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.q.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.q.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// ListBySupplier returns the supplier's catalog ordered by ID.
func (r *ProductRepository) ListBySupplier(ctx context.Context, supplierID string) ([]product.Product, error) {
	rows, err := r.q.Query(ctx, listProductsBySupplierSQL, supplierID)
	if err != nil {
		return nil, fmt.Errorf("listing products of supplier %q: %w", supplierID, err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// ConditionalDecrement subtracts qty from the stock in a single guarded
// UPDATE. When no row matches, the current stock is read back to tell a
// missing product from a short one. Quantities outside 1..MaxQuantity are
// rejected before reaching the database.
func (r *ProductRepository) ConditionalDecrement(ctx context.Context, id string, qty int) error {
	if err := product.CheckRange(id, qty); err != nil {
		return err
	}
	tag, err := r.q.Exec(ctx, decrementStockSQL, id, qty)
	if err != nil {
		return fmt.Errorf("decrementing stock of %q: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var available int
	if err := r.q.QueryRow(ctx, getStockSQL, id).Scan(&available); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return product.ErrNotFound
		}
		return fmt.Errorf("reading stock of %q: %w", id, err)
	}
	return &product.InsufficientStockError{ProductID: id, Requested: qty, Available: available}
}

// Upsert inserts a product or replaces every column of an existing one.
func (r *ProductRepository) Upsert(ctx context.Context, p product.Product) error {
	_, err := r.q.Exec(ctx, upsertProductSQL,
		p.ID, p.SupplierID, p.Name, p.UnitPrice, p.MinQuantity, p.Stock,
	)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

// UpsertBatch upserts products in one round trip. Either every row is
// written or none is.
func (r *ProductRepository) UpsertBatch(ctx context.Context, products []product.Product) error {
	if len(products) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, r.q, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, p := range products {
			batch.Queue(upsertProductSQL, p.ID, p.SupplierID, p.Name, p.UnitPrice, p.MinQuantity, p.Stock)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upserting %d products: %w", len(products), err)
		}
		return nil
	})
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p           product.Product
		minQuantity int32
		stock       int32
	)
	err := row.Scan(&p.ID, &p.SupplierID, &p.Name, &p.UnitPrice, &minQuantity, &stock)
	p.MinQuantity = int(minQuantity)
	p.Stock = int(stock)
	return p, err
}
