package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/supplier-orders/internal/domain/auth"
	"github.com/xenking/supplier-orders/internal/domain/draft"
	"github.com/xenking/supplier-orders/internal/domain/order"
	"github.com/xenking/supplier-orders/internal/domain/product"
)

const maxBodyBytes = 1 << 20

var (
	errNotFound   = errors.New("not found")
	errForbidden  = errors.New("forbidden")
	errBadRequest = errors.New("bad request")
)

// badRequest marks err as a client input error.
func badRequest(err error) error {
	return errors.Wrap(errBadRequest, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	fn(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeErrorStatus(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}

// writeError maps domain errors to HTTP responses. Anything unrecognised is
// logged and reported as 500 without leaking the cause.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		pnf *order.ProductNotFoundError
		qty *product.QuantityError
		ise *order.InsufficientStockError
	)
	switch {
	case errors.As(err, &ise):
		writeJSON(w, http.StatusConflict, func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("code", func(e *jx.Encoder) { e.Int(http.StatusConflict) })
				e.Field("message", func(e *jx.Encoder) { e.Str("insufficient stock") })
				e.Field("shortfalls", func(e *jx.Encoder) { encodeShortfalls(e, ise.Shortfalls) })
			})
		})
	case errors.As(err, &pnf), errors.As(err, &qty):
		writeErrorStatus(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, order.ErrEmptyOrder), errors.Is(err, errBadRequest):
		writeErrorStatus(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrInvalidTransition):
		writeErrorStatus(w, http.StatusConflict, err.Error())
	case errors.Is(err, order.ErrNotFound):
		writeErrorStatus(w, http.StatusNotFound, "order not found")
	case errors.Is(err, draft.ErrNotFound):
		writeErrorStatus(w, http.StatusNotFound, "draft not found")
	case errors.Is(err, errNotFound), errors.Is(err, product.ErrNotFound):
		writeErrorStatus(w, http.StatusNotFound, "not found")
	case errors.Is(err, auth.ErrUnauthorized):
		writeErrorStatus(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, errForbidden):
		writeErrorStatus(w, http.StatusForbidden, err.Error())
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeErrorStatus(w, http.StatusInternalServerError, "internal server error")
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, badRequest(errors.Wrap(err, "read body"))
	}
	return data, nil
}
