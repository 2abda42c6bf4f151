package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
)

func (h *Handler) listDrafts(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	drafts, err := h.drafts.List(r.Context(), p.PartyID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, d := range drafts {
				encodeDraft(e, d)
			}
		})
	})
}

func (h *Handler) getDraft(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	d, err := h.drafts.Get(r.Context(), p.PartyID, chi.URLParam(r, "supplierId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeDraft(e, *d) })
}

// saveDraft overwrites the draft for the supplier. Quantities are not
// checked against stock or minimums here.
func (h *Handler) saveDraft(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	supplierID := chi.URLParam(r, "supplierId")
	if err := h.requireLink(r.Context(), p.PartyID, supplierID); err != nil {
		writeError(w, r, err)
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := decodeDraftBody(body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	d, err := h.drafts.Save(r.Context(), p.PartyID, supplierID, items)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeDraft(e, *d) })
}

func (h *Handler) deleteDraft(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if err := h.drafts.Clear(r.Context(), p.PartyID, chi.URLParam(r, "supplierId")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
