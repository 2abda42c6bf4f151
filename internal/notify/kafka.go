package notify

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"

	"github.com/xenking/supplier-orders/internal/domain/order"
)

// HeaderEventKind carries the event kind so consumers can filter without
// decoding the payload.
const HeaderEventKind = "x-event-kind"

// MessageWriter is the part of *kafka.Writer the sink needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ Sink = (*KafkaSink)(nil)

// KafkaSink publishes events keyed by order ID, so every event of one order
// lands on the same partition in order.
type KafkaSink struct {
	w MessageWriter
}

// NewKafkaSink creates a sink writing to topic on brokers.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}}
}

// NewKafkaSinkWithWriter creates a sink on an existing writer.
func NewKafkaSinkWithWriter(w MessageWriter) *KafkaSink {
	return &KafkaSink{w: w}
}

// Deliver writes one message and waits for the broker acknowledgement.
func (s *KafkaSink) Deliver(ctx context.Context, ev order.Event) error {
	err := s.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.OrderID),
		Value: encodeEvent(ev),
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: HeaderEventKind, Value: []byte(ev.Kind)},
		},
	})
	if err != nil {
		return errors.Wrapf(err, "write %s event", ev.Kind)
	}
	return nil
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error {
	return s.w.Close()
}
