// Package notify delivers order lifecycle events to external sinks without
// ever blocking or failing the operation that produced them.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/supplier-orders/internal/domain/order"
)

const instrumentationName = "github.com/xenking/supplier-orders/internal/notify"

// Sink delivers a single event to its destination.
type Sink interface {
	Deliver(ctx context.Context, ev order.Event) error
	Close() error
}

var _ order.Notifier = (*Dispatcher)(nil)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithQueueSize sets how many events may wait for delivery. Events beyond
// that are dropped.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

// WithDeliveryTimeout bounds a single Deliver call.
func WithDeliveryTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// WithMeterProvider sets the provider for the delivery counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(d *Dispatcher) { d.meterProvider = mp }
}

// Dispatcher queues events and hands them to a Sink from one worker
// goroutine. Notify never blocks: when the queue is full or the dispatcher
// is closed the event is dropped with a warning.
type Dispatcher struct {
	sink Sink
	lg   *zap.Logger

	queueSize     int
	timeout       time.Duration
	meterProvider metric.MeterProvider
	events        metric.Int64Counter

	mu     sync.RWMutex
	closed bool
	queue  chan order.Event
	done   chan struct{}
}

// NewDispatcher creates a Dispatcher delivering to sink. Call Start before
// the first event is expected and Close on shutdown.
func NewDispatcher(sink Sink, lg *zap.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sink:          sink,
		lg:            lg,
		queueSize:     1024,
		timeout:       5 * time.Second,
		meterProvider: metricnoop.NewMeterProvider(),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.queue = make(chan order.Event, d.queueSize)

	c, err := d.meterProvider.Meter(instrumentationName).Int64Counter("notify.events",
		metric.WithDescription("Lifecycle events by delivery outcome"),
	)
	if err != nil {
		otel.Handle(err)
	}
	d.events = c
	return d
}

// Start launches the delivery worker.
func (d *Dispatcher) Start() {
	go d.run()
}

// Notify implements order.Notifier.
func (d *Dispatcher) Notify(ev order.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(ev, "dispatcher closed")
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.drop(ev, "queue full")
	}
}

// Close stops accepting events, waits for the queued ones to be delivered
// or for ctx to expire, and closes the sink.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	var err error
	select {
	case <-d.done:
	case <-ctx.Done():
		err = errors.Wrapf(ctx.Err(), "drain %d events", len(d.queue))
	}
	if cerr := d.sink.Close(); cerr != nil && err == nil {
		err = errors.Wrap(cerr, "close sink")
	}
	return err
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.queue {
		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev order.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sink.Deliver(ctx, ev); err != nil {
		d.count(ev, "failed")
		d.lg.Warn("Event delivery failed",
			zap.String("event_id", ev.ID),
			zap.String("kind", string(ev.Kind)),
			zap.String("order_id", ev.OrderID),
			zap.Error(err),
		)
		return
	}
	d.count(ev, "delivered")
}

func (d *Dispatcher) drop(ev order.Event, reason string) {
	d.count(ev, "dropped")
	d.lg.Warn("Event dropped",
		zap.String("reason", reason),
		zap.String("kind", string(ev.Kind)),
		zap.String("order_id", ev.OrderID),
	)
}

func (d *Dispatcher) count(ev order.Event, outcome string) {
	d.events.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("kind", string(ev.Kind)),
		attribute.String("outcome", outcome),
	))
}
