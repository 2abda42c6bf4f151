package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/supplier-orders/internal/domain/auth"
	"github.com/xenking/supplier-orders/internal/domain/product"
)

const instrumentationName = "github.com/xenking/supplier-orders/internal/domain/order"

// LineRequest is one requested product line.
type LineRequest struct {
	ProductID string
	Quantity  int
}

// PlaceOrderRequest holds the input for finalizing a draft into an order.
type PlaceOrderRequest struct {
	BuyerID    string
	SupplierID string
	Items      []LineRequest
}

// Option configures a Service.
type Option func(*options)

type options struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithTracerProvider sets the provider used for operation spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithMeterProvider sets the provider used for lifecycle counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

type counters struct {
	placed    metric.Int64Counter
	confirmed metric.Int64Counter
	rejected  metric.Int64Counter
	completed metric.Int64Counter
}

// Service is the order ledger: it creates orders and drives their state
// machine.
type Service struct {
	products   product.Repository
	orders     Repository
	tx         Transactor
	reconciler *Reconciler
	drafts     DraftClearer
	events     Notifier

	tracer   trace.Tracer
	counters counters
	now      func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	orders Repository,
	tx Transactor,
	drafts DraftClearer,
	events Notifier,
	opts ...Option,
) *Service {
	o := options{
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	meter := o.meterProvider.Meter(instrumentationName)
	return &Service{
		products:   products,
		orders:     orders,
		tx:         tx,
		reconciler: NewReconciler(tx),
		drafts:     drafts,
		events:     events,
		tracer:     o.tracerProvider.Tracer(instrumentationName),
		counters: counters{
			placed:    newCounter(meter, "orders.placed", "Orders created from drafts"),
			confirmed: newCounter(meter, "orders.confirmed", "Orders confirmed with stock committed"),
			rejected:  newCounter(meter, "orders.confirm_rejected", "Confirmations rolled back for lack of stock"),
			completed: newCounter(meter, "orders.completed", "Orders marked as received"),
		},
		now: time.Now,
	}
}

func newCounter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		otel.Handle(err)
	}
	return c
}

// PlaceOrder filters out non-positive lines, snapshots product names and
// prices, persists the order as PLACED and clears the buyer's draft for the
// supplier. A failure to clear the draft is logged and does not undo the
// order.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder", trace.WithAttributes(
		attribute.String("order.buyer_id", req.BuyerID),
		attribute.String("order.supplier_id", req.SupplierID),
	))
	defer func() { endSpan(span, rerr) }()

	lines, err := mergeLines(req.Items)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}

	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}

	// Batch fetch all products in a single query.
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	now := s.now().UTC()
	o := &Order{
		ID:         uuid.New().String(),
		BuyerID:    req.BuyerID,
		SupplierID: req.SupplierID,
		Status:     StatusPlaced,
		Items:      make([]Item, 0, len(lines)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, l := range lines {
		p, ok := byID[l.ProductID]
		if !ok || p.SupplierID != req.SupplierID {
			return nil, &ProductNotFoundError{ProductID: l.ProductID}
		}
		o.Items = append(o.Items, Item{
			ID:          uuid.New().String(),
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    l.Quantity,
			UnitPrice:   p.UnitPrice,
		})
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	span.SetAttributes(attribute.String("order.id", o.ID))

	lg := zctx.From(ctx)
	if err := s.drafts.Clear(ctx, req.BuyerID, req.SupplierID); err != nil {
		lg.Warn("Draft not cleared after order placement",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}

	s.counters.placed.Add(ctx, 1)
	lg.Info("Order placed",
		zap.String("order_id", o.ID),
		zap.Int("items", len(o.Items)),
	)
	s.emit(EventPlaced, o)
	return o, nil
}

// Confirm commits the order's stock and moves it to CONFIRMED. When any line
// lacks stock the order stays PLACED and *InsufficientStockError lists every
// short line; no event is emitted in that case.
func (s *Service) Confirm(ctx context.Context, orderID string) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Confirm", trace.WithAttributes(
		attribute.String("order.id", orderID),
	))
	defer func() { endSpan(span, rerr) }()

	o, err := s.reconciler.Reconcile(ctx, orderID)
	if err != nil {
		var ise *InsufficientStockError
		if errors.As(err, &ise) {
			s.counters.rejected.Add(ctx, 1)
			zctx.From(ctx).Info("Order confirmation rejected",
				zap.String("order_id", orderID),
				zap.Int("short_lines", len(ise.Shortfalls)),
			)
			return nil, ise
		}
		return nil, err
	}

	s.counters.confirmed.Add(ctx, 1)
	zctx.From(ctx).Info("Order confirmed", zap.String("order_id", o.ID))
	s.emit(EventConfirmed, o)
	return o, nil
}

// Complete marks a CONFIRMED order as received. It has no stock effect.
func (s *Service) Complete(ctx context.Context, orderID string) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Complete", trace.WithAttributes(
		attribute.String("order.id", orderID),
	))
	defer func() { endSpan(span, rerr) }()

	var completed *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context, sc Scope) error {
		o, err := sc.Orders().Transition(ctx, orderID, StatusConfirmed, StatusCompleted)
		if err != nil {
			return err
		}
		completed = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.counters.completed.Add(ctx, 1)
	zctx.From(ctx).Info("Order completed", zap.String("order_id", completed.ID))
	s.emit(EventCompleted, completed)
	return completed, nil
}

// Get returns a single order with its items.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.orders.Get(ctx, orderID)
}

// ListOrders returns the orders of a party in the given role, each with the
// other party's contact details.
func (s *Service) ListOrders(ctx context.Context, partyID string, role auth.Role) ([]View, error) {
	if !role.Valid() {
		return nil, errors.Errorf("unknown role %q", role)
	}
	views, err := s.orders.ListByParty(ctx, partyID, role)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return views, nil
}

func (s *Service) emit(kind EventKind, o *Order) {
	s.events.Notify(Event{
		ID:         uuid.New().String(),
		Kind:       kind,
		OrderID:    o.ID,
		BuyerID:    o.BuyerID,
		SupplierID: o.SupplierID,
		OccurredAt: s.now().UTC(),
	})
}

// mergeLines drops non-positive quantities and sums repeated products,
// keeping the first-seen order of products. A line or sum above
// product.MaxQuantity fails with *product.QuantityError.
func mergeLines(items []LineRequest) ([]LineRequest, error) {
	out := make([]LineRequest, 0, len(items))
	idx := make(map[string]int, len(items))
	for _, it := range items {
		if it.Quantity <= 0 || it.ProductID == "" {
			continue
		}
		if i, ok := idx[it.ProductID]; ok {
			sum, err := product.AddQuantity(it.ProductID, out[i].Quantity, it.Quantity)
			if err != nil {
				return nil, err
			}
			out[i].Quantity = sum
			continue
		}
		if err := product.CheckRange(it.ProductID, it.Quantity); err != nil {
			return nil, err
		}
		idx[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
