package draft

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Service implements the draft operations on top of a keyed Store.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a draft Service backed by store.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Save overwrites the draft for the pair with the positive-quantity subset of
// items. Quantities are not checked against stock here. A selection that is
// empty after filtering removes any stored draft.
func (s *Service) Save(ctx context.Context, buyerID, supplierID string, items map[string]int) (*Draft, error) {
	d := Draft{
		BuyerID:    buyerID,
		SupplierID: supplierID,
		Items:      Filter(items),
		UpdatedAt:  s.now().UTC(),
	}
	if len(d.Items) == 0 {
		if err := s.store.Delete(ctx, buyerID, supplierID); err != nil {
			return nil, errors.Wrap(err, "delete empty draft")
		}
		return &d, nil
	}
	if err := s.store.Put(ctx, d); err != nil {
		return nil, errors.Wrap(err, "put draft")
	}
	return &d, nil
}

// Get returns the draft for the pair, or ErrNotFound.
func (s *Service) Get(ctx context.Context, buyerID, supplierID string) (*Draft, error) {
	d, err := s.store.Get(ctx, buyerID, supplierID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get draft")
	}
	return d, nil
}

// List returns every live draft of the buyer.
func (s *Service) List(ctx context.Context, buyerID string) ([]Draft, error) {
	ds, err := s.store.List(ctx, buyerID)
	if err != nil {
		return nil, errors.Wrap(err, "list drafts")
	}
	return ds, nil
}

// Clear removes the draft for the pair. Clearing a missing draft is not an
// error.
func (s *Service) Clear(ctx context.Context, buyerID, supplierID string) error {
	if err := s.store.Delete(ctx, buyerID, supplierID); err != nil {
		return errors.Wrap(err, "delete draft")
	}
	return nil
}
