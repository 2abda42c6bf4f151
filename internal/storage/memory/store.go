// Package memory provides in-process implementations of the catalog, order
// and draft stores. They back local runs without external services and the
// domain tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/supplier-orders/internal/domain/auth"
	"github.com/xenking/supplier-orders/internal/domain/order"
	"github.com/xenking/supplier-orders/internal/domain/product"
)

var (
	_ product.Repository = (*Store)(nil)
	_ order.Repository   = (*Store)(nil)
	_ order.Transactor   = (*Store)(nil)
	_ auth.LinkChecker   = (*Store)(nil)
	_ auth.Repository    = (*Store)(nil)
)

// Store keeps products, orders, party contacts and buyer/supplier links in
// maps. Units of work run one at a time and stage their changes until they
// commit.
type Store struct {
	// txMu serialises units of work.
	txMu sync.Mutex

	mu       sync.Mutex
	products map[string]product.Product
	orders   map[string]*order.Order
	contacts map[string]order.Contact
	links    map[[2]string]bool
	apikeys  map[string]auth.APIKeyInfo
	now      func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		products: make(map[string]product.Product),
		orders:   make(map[string]*order.Order),
		contacts: make(map[string]order.Contact),
		links:    make(map[[2]string]bool),
		apikeys:  make(map[string]auth.APIKeyInfo),
		now:      time.Now,
	}
}

// PutProduct inserts or replaces a catalog entry.
func (s *Store) PutProduct(p product.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

// PutContact records the contact details of a party.
func (s *Store) PutContact(c order.Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[c.PartyID] = c
}

// ApproveLink allows the buyer to order from the supplier.
func (s *Store) ApproveLink(buyerID, supplierID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[[2]string{buyerID, supplierID}] = true
}

// SetLink records the status of the buyer/supplier link. Only approved
// links allow trading.
func (s *Store) SetLink(_ context.Context, buyerID, supplierID string, status auth.LinkStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[[2]string{buyerID, supplierID}] = status == auth.LinkApproved
	return nil
}

// UpsertParty records a party's contact details. The role is implied by the
// orders the party takes part in.
func (s *Store) UpsertParty(_ context.Context, _ auth.Role, c order.Contact) error {
	s.PutContact(c)
	return nil
}

// UpsertProduct inserts or replaces a catalog entry.
func (s *Store) UpsertProduct(_ context.Context, p product.Product) error {
	s.PutProduct(p)
	return nil
}

// UpsertAPIKey stores an API key by its hash.
func (s *Store) UpsertAPIKey(_ context.Context, info auth.APIKeyInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, k := range s.apikeys {
		if k.ID == info.ID {
			delete(s.apikeys, hash)
		}
	}
	s.apikeys[info.KeyHash] = info
	return nil
}

// FindByHash looks up an API key by its hash.
func (s *Store) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.apikeys[hash]
	if !ok {
		return nil, errors.Wrap(auth.ErrUnauthorized, "api key not found")
	}
	return &info, nil
}

// IsApproved reports whether the buyer has an approved link to the supplier.
func (s *Store) IsApproved(_ context.Context, buyerID, supplierID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.links[[2]string{buyerID, supplierID}], nil
}

// GetByID returns a single product by its identifier.
func (s *Store) GetByID(_ context.Context, id string) (*product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

// GetByIDs returns the products matching any of ids.
func (s *Store) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// ListBySupplier returns the supplier's catalog ordered by ID.
func (s *Store) ListBySupplier(_ context.Context, supplierID string) ([]product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []product.Product
	for _, p := range s.products {
		if p.SupplierID == supplierID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ConditionalDecrement subtracts qty from the stock only if enough is left.
func (s *Store) ConditionalDecrement(_ context.Context, id string, qty int) error {
	if err := product.CheckRange(id, qty); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return product.ErrNotFound
	}
	if p.Stock < qty {
		return &product.InsufficientStockError{ProductID: id, Requested: qty, Available: p.Stock}
	}
	p.Stock -= qty
	s.products[id] = p
	return nil
}

// Create persists a new order with its items.
func (s *Store) Create(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = cloneOrder(o)
	return nil
}

// Get returns an order with its items.
func (s *Store) Get(_ context.Context, id string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return cloneOrder(o), nil
}

// ListByParty returns the party's orders, newest first, with the contact
// details of the other party.
func (s *Store) ListByParty(_ context.Context, partyID string, role auth.Role) ([]order.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []order.View
	for _, o := range s.orders {
		var counterparty string
		switch {
		case role == auth.RoleBuyer && o.BuyerID == partyID:
			counterparty = o.SupplierID
		case role == auth.RoleSupplier && o.SupplierID == partyID:
			counterparty = o.BuyerID
		default:
			continue
		}
		c, ok := s.contacts[counterparty]
		if !ok {
			c = order.Contact{PartyID: counterparty}
		}
		if role == auth.RoleBuyer {
			// Store hours only describe buyers.
			c.OpeningTime, c.ClosingTime = "", ""
		}
		out = append(out, order.View{Order: *cloneOrder(o), Counterparty: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Stock returns the current stock of a product, or -1 if it is unknown.
func (s *Store) Stock(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return -1
	}
	return p.Stock
}

func cloneOrder(o *order.Order) *order.Order {
	c := *o
	c.Items = slices.Clone(o.Items)
	return &c
}
