package notify

import (
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/supplier-orders/internal/domain/order"
)

// encodeEvent renders the JSON envelope published for an event.
func encodeEvent(ev order.Event) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(ev.ID) })
		e.Field("kind", func(e *jx.Encoder) { e.Str(string(ev.Kind)) })
		e.Field("orderId", func(e *jx.Encoder) { e.Str(ev.OrderID) })
		e.Field("buyerId", func(e *jx.Encoder) { e.Str(ev.BuyerID) })
		e.Field("supplierId", func(e *jx.Encoder) { e.Str(ev.SupplierID) })
		e.Field("occurredAt", func(e *jx.Encoder) { e.Str(ev.OccurredAt.UTC().Format(time.RFC3339Nano)) })
	})
	return e.Bytes()
}
