package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/supplier-orders/internal/domain/auth"
	"github.com/xenking/supplier-orders/internal/domain/order"
	"github.com/xenking/supplier-orders/internal/domain/product"
)

// Seeder writes fixture rows through the repositories.
type Seeder struct {
	parties  *PartyRepository
	products *ProductRepository
	apikeys  *APIKeyRepository
}

// NewSeeder returns a Seeder that uses the given pool.
func NewSeeder(pool *pgxpool.Pool) *Seeder {
	return &Seeder{
		parties:  NewPartyRepository(pool),
		products: NewProductRepository(pool),
		apikeys:  NewAPIKeyRepository(pool),
	}
}

func (s *Seeder) UpsertParty(ctx context.Context, role auth.Role, c order.Contact) error {
	return s.parties.UpsertParty(ctx, role, c)
}

func (s *Seeder) SetLink(ctx context.Context, buyerID, supplierID string, status auth.LinkStatus) error {
	return s.parties.SetLink(ctx, buyerID, supplierID, status)
}

func (s *Seeder) UpsertProduct(ctx context.Context, p product.Product) error {
	return s.products.Upsert(ctx, p)
}

func (s *Seeder) UpsertAPIKey(ctx context.Context, info auth.APIKeyInfo) error {
	return s.apikeys.Upsert(ctx, info)
}
