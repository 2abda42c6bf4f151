// Package handler exposes the ordering core over HTTP.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/supplier-orders/internal/domain/auth"
	"github.com/xenking/supplier-orders/internal/domain/draft"
	"github.com/xenking/supplier-orders/internal/domain/order"
	"github.com/xenking/supplier-orders/internal/domain/product"
)

// Handler serves the draft, order and catalog endpoints, delegating
// business logic to the domain services.
type Handler struct {
	drafts   *draft.Service
	orders   *order.Service
	products product.Repository
	links    auth.LinkChecker
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	drafts *draft.Service,
	orders *order.Service,
	products product.Repository,
	links auth.LinkChecker,
) *Handler {
	return &Handler{
		drafts:   drafts,
		orders:   orders,
		products: products,
		links:    links,
	}
}

// NewRouter mounts the API under /api behind API key authentication.
func NewRouter(h *Handler, sec *SecurityHandler) *chi.Mux {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErrorStatus(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(sec.Authenticate)

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(auth.RoleBuyer))
			r.Get("/drafts", h.listDrafts)
			r.Get("/drafts/{supplierId}", h.getDraft)
			r.Put("/drafts/{supplierId}", h.saveDraft)
			r.Delete("/drafts/{supplierId}", h.deleteDraft)
			r.Post("/orders", h.placeOrder)
			r.Post("/orders/{orderId}/complete", h.completeOrder)
		})

		r.With(RequireRole(auth.RoleSupplier)).Post("/orders/{orderId}/confirm", h.confirmOrder)

		r.Get("/orders", h.listOrders)
		r.Get("/orders/{orderId}", h.getOrder)
		r.Get("/suppliers/{supplierId}/products", h.listSupplierProducts)
	})

	return r
}
