// Package app wires configuration, storage, domain services and the HTTP
// server together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/supplier-orders/internal/domain/draft"
	"github.com/xenking/supplier-orders/internal/domain/order"
	"github.com/xenking/supplier-orders/internal/handler"
	"github.com/xenking/supplier-orders/internal/notify"
	"github.com/xenking/supplier-orders/pkg/health"
	"github.com/xenking/supplier-orders/pkg/httpmiddleware"
)

const serviceName = "supplier-orders"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m httpmiddleware.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.Bool("in_memory", cfg.InMemory()),
		zap.Bool("redis", cfg.Redis.Addr != ""),
		zap.Strings("kafka_brokers", cfg.Kafka.Brokers),
	)

	healthSvc := health.New()
	healthSvc.Add(health.Liveness, "goroutines", health.GoroutineCountCheck(10000), health.WithTimeout(time.Second))

	// Background sweepers stop with bgCtx, after the server has drained.
	bgCtx, stopBackground := context.WithCancel(context.WithoutCancel(ctx))
	defer stopBackground()

	var b backends
	defer b.close()
	if err := openLedger(ctx, lg, cfg, healthSvc, &b); err != nil {
		return err
	}
	if err := openCache(bgCtx, lg, cfg, healthSvc, &b); err != nil {
		return err
	}

	dispatcher := notify.NewDispatcher(newSink(ctx, lg, cfg), lg.Named("notify"),
		notify.WithQueueSize(cfg.Notify.QueueSize),
		notify.WithDeliveryTimeout(cfg.Notify.DeliveryTimeout),
		notify.WithMeterProvider(m.MeterProvider()),
	)
	dispatcher.Start()

	// Domain services.
	draftService := draft.NewService(b.drafts)
	orderService := order.NewService(b.products, b.orders, b.tx, draftService, dispatcher,
		order.WithTracerProvider(m.TracerProvider()),
		order.WithMeterProvider(m.MeterProvider()),
	)

	// HTTP handlers.
	h := handler.NewHandler(draftService, orderService, b.products, b.links)
	router := handler.NewRouter(h, handler.NewSecurityHandler(b.apikeys, []byte(cfg.APIKeyPepper)))
	routeFinder := httpmiddleware.MakeRouteFinder(router)

	mux := http.NewServeMux()
	healthSvc.Mount(mux)
	mux.Handle("/", router)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Recovery(),
			httpmiddleware.Instrument(serviceName, routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
			httpmiddleware.CORS(cfg.CORS),
			httpmiddleware.RateLimit(b.limiter, httpmiddleware.CallerKey),
		),
	}

	healthSvc.Start(bgCtx, 10*time.Second)
	healthSvc.SetReady(true)

	// Graceful shutdown: stop taking traffic, drain requests, then flush
	// pending events before the stores close.
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		if err := dispatcher.Close(shutdownCtx); err != nil {
			lg.Error("Event dispatcher close error", zap.Error(err))
		}
		healthSvc.Stop()
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// newSink publishes to Kafka when brokers are configured and logs events
// otherwise. Unreachable brokers are reported but do not stop startup since
// events are best effort.
func newSink(ctx context.Context, lg *zap.Logger, cfg *Config) notify.Sink {
	if len(cfg.Kafka.Brokers) == 0 {
		lg.Info("No Kafka brokers configured, lifecycle events are logged only")
		return notify.NewLogSink(lg.Named("events"))
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := health.KafkaCheck(cfg.Kafka.Brokers)(checkCtx); err != nil {
		lg.Warn("Kafka brokers unreachable at startup", zap.Error(err))
	}
	return notify.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
}
