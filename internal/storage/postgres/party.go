package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/supplier-orders/internal/domain/auth"
	"github.com/xenking/supplier-orders/internal/domain/order"
)

const (
	isLinkApprovedSQL = `SELECT EXISTS (
		SELECT 1 FROM owner_supplier_links
		WHERE buyer_id = $1 AND supplier_id = $2 AND status = 'APPROVED')`

	upsertLinkSQL = `INSERT INTO owner_supplier_links (buyer_id, supplier_id, status, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (buyer_id, supplier_id) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = now()`

	upsertPartySQL = `INSERT INTO parties (id, role, company_name, contact_name, phone, opening_time, closing_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			role = EXCLUDED.role,
			company_name = EXCLUDED.company_name,
			contact_name = EXCLUDED.contact_name,
			phone = EXCLUDED.phone,
			opening_time = EXCLUDED.opening_time,
			closing_time = EXCLUDED.closing_time`
)

var _ auth.LinkChecker = (*PartyRepository)(nil)

// PartyRepository stores buyers, suppliers and the links between them.
type PartyRepository struct {
	pool *pgxpool.Pool
}

// NewPartyRepository returns a PartyRepository that uses the given pool.
func NewPartyRepository(pool *pgxpool.Pool) *PartyRepository {
	return &PartyRepository{pool: pool}
}

// IsApproved reports whether the buyer has an APPROVED link to the supplier.
func (r *PartyRepository) IsApproved(ctx context.Context, buyerID, supplierID string) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, isLinkApprovedSQL, buyerID, supplierID).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking link %s -> %s: %w", buyerID, supplierID, err)
	}
	return ok, nil
}

// SetLink records the status of the buyer/supplier link.
func (r *PartyRepository) SetLink(ctx context.Context, buyerID, supplierID string, status auth.LinkStatus) error {
	if _, err := r.pool.Exec(ctx, upsertLinkSQL, buyerID, supplierID, string(status)); err != nil {
		return fmt.Errorf("setting link %s -> %s: %w", buyerID, supplierID, err)
	}
	return nil
}

// UpsertParty stores a party with its contact details.
func (r *PartyRepository) UpsertParty(ctx context.Context, role auth.Role, c order.Contact) error {
	_, err := r.pool.Exec(ctx, upsertPartySQL,
		c.PartyID, string(role), c.CompanyName, c.ContactName, c.Phone, c.OpeningTime, c.ClosingTime,
	)
	if err != nil {
		return fmt.Errorf("upserting party %q: %w", c.PartyID, err)
	}
	return nil
}
