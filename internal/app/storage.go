package app

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/supplier-orders/internal/domain/auth"
	"github.com/xenking/supplier-orders/internal/domain/draft"
	"github.com/xenking/supplier-orders/internal/domain/order"
	"github.com/xenking/supplier-orders/internal/domain/product"
	"github.com/xenking/supplier-orders/internal/seed"
	"github.com/xenking/supplier-orders/internal/storage/memory"
	"github.com/xenking/supplier-orders/internal/storage/postgres"
	"github.com/xenking/supplier-orders/internal/storage/redisx"
	"github.com/xenking/supplier-orders/pkg/health"
	"github.com/xenking/supplier-orders/pkg/httpmiddleware"
)

// backends are the stores the services run on, either PostgreSQL and Redis
// or their in-process counterparts.
type backends struct {
	products product.Repository
	orders   order.Repository
	tx       order.Transactor
	links    auth.LinkChecker
	apikeys  auth.Repository
	drafts   draft.Store
	limiter  httpmiddleware.Limiter

	closers []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openLedger connects the catalog, order, link and API key stores and
// registers their readiness checks.
func openLedger(ctx context.Context, lg *zap.Logger, cfg *Config, h *health.Health, b *backends) error {
	if cfg.InMemory() {
		lg.Warn("No database configured, orders are kept in memory and lost on restart")
		store := memory.New()
		if cfg.SeedFile != "" {
			f, err := seed.LoadFile(cfg.SeedFile)
			if err != nil {
				return errors.Wrap(err, "load seed file")
			}
			st, err := seed.Apply(ctx, store, f, []byte(cfg.APIKeyPepper))
			if err != nil {
				return errors.Wrap(err, "apply seed file")
			}
			lg.Info("Seeded in-memory store",
				zap.String("file", cfg.SeedFile),
				zap.Int("parties", st.Parties),
				zap.Int("products", st.Products),
				zap.Int("api_keys", st.APIKeys),
			)
		}
		b.products, b.orders, b.tx, b.links, b.apikeys = store, store, store, store, store
		return nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	b.closers = append(b.closers, pool.Close)

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	h.Add(health.Readiness, "postgres", health.PingCheck(pool), health.WithTimeout(5*time.Second))

	b.products = postgres.NewProductRepository(pool)
	b.orders = postgres.NewOrderRepository(pool)
	b.tx = postgres.NewTransactor(pool)
	b.links = postgres.NewPartyRepository(pool)
	b.apikeys = postgres.NewAPIKeyRepository(pool)
	return nil
}

// openCache picks the draft store and the rate limiter.
func openCache(ctx context.Context, lg *zap.Logger, cfg *Config, h *health.Health, b *backends) error {
	if cfg.Redis.Addr == "" {
		drafts := memory.NewDraftStore(cfg.Drafts.TTL)
		drafts.StartSweeper(ctx, cfg.Drafts.SweepInterval)
		limiter := httpmiddleware.NewMemoryLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window)
		limiter.StartSweeper(ctx)
		b.drafts, b.limiter = drafts, limiter
		return nil
	}

	rdb, err := redisx.New(ctx, cfg.Redis.Addr)
	if err != nil {
		return errors.Wrap(err, "connect redis")
	}
	b.closers = append(b.closers, func() {
		if err := rdb.Close(); err != nil {
			lg.Warn("Redis close error", zap.Error(err))
		}
	})
	h.Add(health.Readiness, "redis", health.RedisCheck(rdb))

	b.drafts = redisx.NewDraftStore(rdb, cfg.Drafts.TTL)
	b.limiter = httpmiddleware.NewRedisLimiter(rdb, cfg.RateLimit.Max, cfg.RateLimit.Window)
	return nil
}
