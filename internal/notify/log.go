package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/xenking/supplier-orders/internal/domain/order"
)

var _ Sink = (*LogSink)(nil)

// LogSink writes events to the log. It is used when no broker is configured.
type LogSink struct {
	lg *zap.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(lg *zap.Logger) *LogSink {
	return &LogSink{lg: lg}
}

func (s *LogSink) Deliver(_ context.Context, ev order.Event) error {
	s.lg.Info("Order event",
		zap.String("event_id", ev.ID),
		zap.String("kind", string(ev.Kind)),
		zap.String("order_id", ev.OrderID),
		zap.String("buyer_id", ev.BuyerID),
		zap.String("supplier_id", ev.SupplierID),
		zap.Time("occurred_at", ev.OccurredAt),
	)
	return nil
}

func (s *LogSink) Close() error { return nil }
