// Package seed loads fixture files describing parties, their links,
// catalogs and API keys, and writes them into a store.
package seed

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"

	"github.com/xenking/supplier-orders/internal/domain/auth"
	"github.com/xenking/supplier-orders/internal/domain/order"
	"github.com/xenking/supplier-orders/internal/domain/product"
)

// Party is a buyer or supplier with its contact details.
type Party struct {
	Role    auth.Role
	Contact order.Contact
}

// Link is a buyer's relationship with a supplier.
type Link struct {
	BuyerID    string
	SupplierID string
	Status     auth.LinkStatus
}

// APIKey is a plain API key issued to a party. Only its hash is stored.
type APIKey struct {
	ID      string
	Key     string
	PartyID string
	Role    auth.Role
}

// Fixture is the content of one seed file.
type Fixture struct {
	Parties  []Party
	Links    []Link
	Products []product.Product
	APIKeys  []APIKey
}

// Target receives fixture rows. Both the PostgreSQL and the in-memory
// stores implement it.
type Target interface {
	UpsertParty(ctx context.Context, role auth.Role, c order.Contact) error
	SetLink(ctx context.Context, buyerID, supplierID string, status auth.LinkStatus) error
	UpsertProduct(ctx context.Context, p product.Product) error
	UpsertAPIKey(ctx context.Context, info auth.APIKeyInfo) error
}

// Stats counts the rows written by Apply.
type Stats struct {
	Parties, Links, Products, APIKeys int
}

// LoadFile reads a fixture from path. Files ending in .gz are gunzipped.
func LoadFile(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open fixture")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "gzip reader")
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read fixture")
	}
	return Decode(data)
}

// Apply writes the fixture into t: parties first, then links, products and
// API keys hashed under pepper.
func Apply(ctx context.Context, t Target, f *Fixture, pepper []byte) (Stats, error) {
	var st Stats
	for _, p := range f.Parties {
		if err := t.UpsertParty(ctx, p.Role, p.Contact); err != nil {
			return st, errors.Wrapf(err, "party %s", p.Contact.PartyID)
		}
		st.Parties++
	}
	for _, l := range f.Links {
		if err := t.SetLink(ctx, l.BuyerID, l.SupplierID, l.Status); err != nil {
			return st, errors.Wrapf(err, "link %s -> %s", l.BuyerID, l.SupplierID)
		}
		st.Links++
	}
	for _, p := range f.Products {
		if err := t.UpsertProduct(ctx, p); err != nil {
			return st, errors.Wrapf(err, "product %s", p.ID)
		}
		st.Products++
	}
	for _, k := range f.APIKeys {
		info := auth.APIKeyInfo{
			ID:      k.ID,
			KeyHash: auth.HashKey(pepper, k.Key),
			PartyID: k.PartyID,
			Role:    k.Role,
		}
		if err := t.UpsertAPIKey(ctx, info); err != nil {
			return st, errors.Wrapf(err, "api key %s", k.ID)
		}
		st.APIKeys++
	}
	return st, nil
}
