// Package auth holds the identity facts the ordering core consumes from the
// authorization collaborator: who is calling, in which role, and whether a
// buyer has an approved relationship with a supplier.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/go-faster/errors"
)

// Role identifies which side of the marketplace a party acts on.
type Role string

const (
	// RoleBuyer is a store owner placing orders against supplier catalogs.
	RoleBuyer Role = "buyer"
	// RoleSupplier owns products and fulfils orders.
	RoleSupplier Role = "supplier"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleBuyer || r == RoleSupplier
}

// ErrUnauthorized is returned when a caller cannot be identified or is not
// allowed to perform an action.
var ErrUnauthorized = errors.New("unauthorized")

// Principal is an authenticated caller.
type Principal struct {
	PartyID string
	Role    Role
}

// APIKeyInfo holds the identity bound to a validated API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	PartyID string
	Role    Role
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

// HashKey returns the hex HMAC-SHA256 of an API key under pepper. Only
// hashes are stored.
func HashKey(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// LinkStatus is the state of a buyer's request to trade with a supplier.
type LinkStatus string

const (
	LinkPending  LinkStatus = "PENDING"
	LinkApproved LinkStatus = "APPROVED"
	LinkRejected LinkStatus = "REJECTED"
)

// Valid reports whether s is a known link status.
func (s LinkStatus) Valid() bool {
	return s == LinkPending || s == LinkApproved || s == LinkRejected
}

// LinkChecker answers whether a buyer may trade with a supplier.
type LinkChecker interface {
	IsApproved(ctx context.Context, buyerID, supplierID string) (bool, error)
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom extracts the caller stored by WithPrincipal.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
