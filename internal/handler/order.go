package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/supplier-orders/internal/domain/auth"
	"github.com/xenking/supplier-orders/internal/domain/order"
	"github.com/xenking/supplier-orders/internal/domain/product"
)

// placeOrder finalizes the buyer's selection for one supplier. Quantities
// are checked against the minimum order quantity and the stock known right
// now; stock is checked again when the supplier confirms.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	supplierID, lines, err := decodeOrderBody(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// An empty order is reported as such whatever the link status.
	if !hasPositiveLine(lines) {
		writeError(w, r, order.ErrEmptyOrder)
		return
	}
	if err := h.requireLink(r.Context(), p.PartyID, supplierID); err != nil {
		writeError(w, r, err)
		return
	}

	req := order.PlaceOrderRequest{
		BuyerID:    p.PartyID,
		SupplierID: supplierID,
		Items:      make([]order.LineRequest, 0, len(lines)),
	}
	for _, l := range lines {
		req.Items = append(req.Items, order.LineRequest{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	if err := h.validateLines(r.Context(), supplierID, req.Items); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.PlaceOrder(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func hasPositiveLine(lines []lineInput) bool {
	for _, l := range lines {
		if l.Quantity > 0 && l.ProductID != "" {
			return true
		}
	}
	return false
}

// validateLines runs the advisory quantity checks on the positive lines.
// Unknown products are left to the order service to report.
func (h *Handler) validateLines(ctx context.Context, supplierID string, items []order.LineRequest) error {
	totals := make(map[string]int, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 || it.ProductID == "" {
			continue
		}
		sum, ok := totals[it.ProductID]
		if !ok {
			ids = append(ids, it.ProductID)
			if err := product.CheckRange(it.ProductID, it.Quantity); err != nil {
				return err
			}
			totals[it.ProductID] = it.Quantity
			continue
		}
		next, err := product.AddQuantity(it.ProductID, sum, it.Quantity)
		if err != nil {
			return err
		}
		totals[it.ProductID] = next
	}
	if len(ids) == 0 {
		return nil
	}

	products, err := h.products.GetByIDs(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "get products")
	}
	for _, p := range products {
		if p.SupplierID != supplierID {
			continue
		}
		if err := product.ValidateQuantity(p, totals[p.ID]); err != nil {
			return err
		}
	}
	return nil
}

// confirmOrder commits the stock of one of the supplier's orders.
func (h *Handler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderId")
	if _, err := h.ownedOrder(r, id); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.Confirm(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// completeOrder marks one of the buyer's orders as received.
func (h *Handler) completeOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderId")
	if _, err := h.ownedOrder(r, id); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.Complete(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.ownedOrder(r, chi.URLParam(r, "orderId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	views, err := h.orders.ListOrders(r.Context(), p.PartyID, p.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range views {
				encodeView(e, &views[i])
			}
		})
	})
}

// ownedOrder loads the order if the caller is its party in their current
// role. Orders of other parties are reported as missing.
func (h *Handler) ownedOrder(r *http.Request, id string) (*order.Order, error) {
	p := principal(r)
	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	switch {
	case p.Role == auth.RoleBuyer && o.BuyerID == p.PartyID,
		p.Role == auth.RoleSupplier && o.SupplierID == p.PartyID:
		return o, nil
	}
	return nil, order.ErrNotFound
}
