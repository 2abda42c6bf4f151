package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/xenking/supplier-orders/internal/domain/draft"
)

var _ draft.Store = (*DraftStore)(nil)

type draftEntry struct {
	draft     draft.Draft
	expiresAt time.Time
}

// DraftStore keeps drafts per buyer in process memory. Entries expire ttl
// after their last save, mirroring a session lifetime; a zero ttl keeps them
// until deleted.
type DraftStore struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.RWMutex
	drafts map[string]map[string]draftEntry
}

// NewDraftStore creates an empty DraftStore.
func NewDraftStore(ttl time.Duration) *DraftStore {
	return &DraftStore{
		ttl:    ttl,
		now:    time.Now,
		drafts: make(map[string]map[string]draftEntry),
	}
}

// Put overwrites the draft of the (buyer, supplier) pair.
func (s *DraftStore) Put(_ context.Context, d draft.Draft) error {
	d.Items = maps.Clone(d.Items)

	s.mu.Lock()
	defer s.mu.Unlock()

	byBuyer, ok := s.drafts[d.BuyerID]
	if !ok {
		byBuyer = make(map[string]draftEntry)
		s.drafts[d.BuyerID] = byBuyer
	}
	e := draftEntry{draft: d}
	if s.ttl > 0 {
		e.expiresAt = s.now().Add(s.ttl)
	}
	byBuyer[d.SupplierID] = e
	return nil
}

// Get returns the live draft of the pair or draft.ErrNotFound.
func (s *DraftStore) Get(_ context.Context, buyerID, supplierID string) (*draft.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.drafts[buyerID][supplierID]
	if !ok || s.expired(e) {
		return nil, draft.ErrNotFound
	}
	d := e.draft
	d.Items = maps.Clone(d.Items)
	return &d, nil
}

// List returns the buyer's live drafts ordered by supplier.
func (s *DraftStore) List(_ context.Context, buyerID string) ([]draft.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]draft.Draft, 0, len(s.drafts[buyerID]))
	for _, e := range s.drafts[buyerID] {
		if s.expired(e) {
			continue
		}
		d := e.draft
		d.Items = maps.Clone(d.Items)
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SupplierID < out[j].SupplierID })
	return out, nil
}

// Delete removes the draft of the pair if present.
func (s *DraftStore) Delete(_ context.Context, buyerID, supplierID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byBuyer, ok := s.drafts[buyerID]
	if !ok {
		return nil
	}
	delete(byBuyer, supplierID)
	if len(byBuyer) == 0 {
		delete(s.drafts, buyerID)
	}
	return nil
}

// Sweep drops expired entries. It is safe to call concurrently with other
// operations.
func (s *DraftStore) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for buyer, byBuyer := range s.drafts {
		for supplier, e := range byBuyer {
			if s.expired(e) {
				delete(byBuyer, supplier)
			}
		}
		if len(byBuyer) == 0 {
			delete(s.drafts, buyer)
		}
	}
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
func (s *DraftStore) StartSweeper(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

func (s *DraftStore) expired(e draftEntry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}
