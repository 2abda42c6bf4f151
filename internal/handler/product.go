package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/supplier-orders/internal/domain/auth"
)

// listSupplierProducts returns a supplier's catalog to linked buyers and to
// the supplier itself.
func (h *Handler) listSupplierProducts(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	supplierID := chi.URLParam(r, "supplierId")

	switch p.Role {
	case auth.RoleBuyer:
		if err := h.requireLink(r.Context(), p.PartyID, supplierID); err != nil {
			writeError(w, r, err)
			return
		}
	case auth.RoleSupplier:
		if p.PartyID != supplierID {
			writeError(w, r, errors.Wrap(errForbidden, "catalog of another supplier"))
			return
		}
	}

	products, err := h.products.ListBySupplier(r.Context(), supplierID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, item := range products {
				encodeProduct(e, item)
			}
		})
	})
}
