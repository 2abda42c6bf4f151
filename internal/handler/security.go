package handler

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/supplier-orders/internal/domain/auth"
)

// HeaderAPIKey carries the caller's API key.
const HeaderAPIKey = "X-API-Key"

// SecurityHandler authenticates API requests via HMAC-SHA256 hashed API
// keys and binds the resulting principal to the request context.
type SecurityHandler struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurityHandler creates a SecurityHandler with the given API key
// repository and HMAC pepper.
func NewSecurityHandler(apikeys auth.Repository, pepper []byte) *SecurityHandler {
	return &SecurityHandler{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// Principal resolves an API key to the caller it belongs to.
func (s *SecurityHandler) Principal(ctx context.Context, key string) (auth.Principal, error) {
	if key == "" {
		return auth.Principal{}, auth.ErrUnauthorized
	}
	hash := auth.HashKey(s.pepper, key)
	info, err := s.apikeys.FindByHash(ctx, hash)
	if err != nil {
		return auth.Principal{}, errors.Wrap(auth.ErrUnauthorized, err.Error())
	}

	// The stored hash is compared in constant time in case the repository
	// returned a row for a different key.
	if subtle.ConstantTimeCompare([]byte(hash), []byte(info.KeyHash)) != 1 {
		return auth.Principal{}, auth.ErrUnauthorized
	}
	if !info.Role.Valid() || info.PartyID == "" {
		return auth.Principal{}, auth.ErrUnauthorized
	}
	return auth.Principal{PartyID: info.PartyID, Role: info.Role}, nil
}

// Authenticate rejects requests without a valid API key with 401.
func (s *SecurityHandler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(HeaderAPIKey)
		if key == "" {
			key = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}

		p, err := s.Principal(r.Context(), key)
		if err != nil {
			writeError(w, r, auth.ErrUnauthorized)
			return
		}

		ctx := auth.WithPrincipal(r.Context(), p)
		ctx = zctx.With(ctx, zap.String("party_id", p.PartyID), zap.String("role", string(p.Role)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects callers acting in another role with 403.
func RequireRole(role auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFrom(r.Context())
			if !ok {
				writeError(w, r, auth.ErrUnauthorized)
				return
			}
			if p.Role != role {
				writeError(w, r, errors.Wrapf(errForbidden, "requires %s role", role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// principal returns the authenticated caller. Routes are mounted behind
// Authenticate, so a missing principal is a wiring error.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFrom(r.Context())
	return p
}

// requireLink fails with 403 unless the buyer may trade with the supplier.
func (h *Handler) requireLink(ctx context.Context, buyerID, supplierID string) error {
	ok, err := h.links.IsApproved(ctx, buyerID, supplierID)
	if err != nil {
		return errors.Wrap(err, "check link")
	}
	if !ok {
		return errors.Wrapf(errForbidden, "no approved link with supplier %s", supplierID)
	}
	return nil
}
