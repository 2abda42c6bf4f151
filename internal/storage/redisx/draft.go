// Package redisx keeps buyer drafts in Redis so they survive API restarts
// and are shared between replicas.
package redisx

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/supplier-orders/internal/domain/draft"
)

// keyDrafts is a hash per buyer: field = supplier id, value = encoded draft.
const keyDrafts = "drafts:%s"

var _ draft.Store = (*DraftStore)(nil)

// DraftStore implements draft.Store on a Redis hash per buyer. Every save
// refreshes the expiry of the whole hash, so a buyer's drafts live as long
// as their session stays active.
type DraftStore struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewDraftStore returns a DraftStore using rdb. A zero ttl never expires.
func NewDraftStore(rdb redis.UniversalClient, ttl time.Duration) *DraftStore {
	return &DraftStore{rdb: rdb, ttl: ttl}
}

func draftsKey(buyerID string) string { return fmt.Sprintf(keyDrafts, buyerID) }

// Put overwrites the draft of the (buyer, supplier) pair.
func (s *DraftStore) Put(ctx context.Context, d draft.Draft) error {
	key := draftsKey(d.BuyerID)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, d.SupplierID, encodeDraft(d))
		if s.ttl > 0 {
			p.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "hset %s", key)
	}
	return nil
}

// Get returns the draft of the pair or draft.ErrNotFound.
func (s *DraftStore) Get(ctx context.Context, buyerID, supplierID string) (*draft.Draft, error) {
	key := draftsKey(buyerID)
	raw, err := s.rdb.HGet(ctx, key, supplierID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, draft.ErrNotFound
		}
		return nil, errors.Wrapf(err, "hget %s", key)
	}
	d, err := decodeDraft(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// List returns every draft of the buyer ordered by supplier.
func (s *DraftStore) List(ctx context.Context, buyerID string) ([]draft.Draft, error) {
	key := draftsKey(buyerID)
	all, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "hgetall %s", key)
	}

	out := make([]draft.Draft, 0, len(all))
	for supplierID, raw := range all {
		d, err := decodeDraft([]byte(raw))
		if err != nil {
			return nil, errors.Wrapf(err, "supplier %s", supplierID)
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SupplierID < out[j].SupplierID })
	return out, nil
}

// Delete removes the draft of the pair if present.
func (s *DraftStore) Delete(ctx context.Context, buyerID, supplierID string) error {
	key := draftsKey(buyerID)
	if err := s.rdb.HDel(ctx, key, supplierID).Err(); err != nil {
		return errors.Wrapf(err, "hdel %s", key)
	}
	return nil
}
