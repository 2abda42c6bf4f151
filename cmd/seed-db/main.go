// Command seed-db creates the schema and loads a fixture of parties, links,
// catalogs and API keys into PostgreSQL.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"

	"github.com/xenking/supplier-orders/internal/seed"
	"github.com/xenking/supplier-orders/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	var (
		databaseURL  string
		fixtureFile  string
		apiKeyPepper string
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or ORDERS_DATABASE_URL / DATABASE_URL env)")
	flag.StringVar(&fixtureFile, "fixture", "db/seed/fixtures.json", "path to the fixture file (.json or .json.gz)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or ORDERS_API_KEY_PEPPER env)")
	flag.Parse()

	databaseURL = firstNonEmpty(databaseURL, os.Getenv("ORDERS_DATABASE_URL"), os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url, ORDERS_DATABASE_URL or DATABASE_URL")
		os.Exit(1)
	}
	apiKeyPepper = firstNonEmpty(apiKeyPepper, os.Getenv("ORDERS_API_KEY_PEPPER"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, fixtureFile, []byte(apiKeyPepper)); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, fixtureFile string, pepper []byte) error {
	slog.Info("reading fixture", slog.String("path", fixtureFile))
	f, err := seed.LoadFile(fixtureFile)
	if err != nil {
		return errors.Wrap(err, "load fixture")
	}

	slog.Info("connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	st, err := seed.Apply(ctx, postgres.NewSeeder(pool), f, pepper)
	if err != nil {
		return errors.Wrap(err, "apply fixture")
	}
	slog.Info("fixture applied",
		slog.Int("parties", st.Parties),
		slog.Int("links", st.Links),
		slog.Int("products", st.Products),
		slog.Int("api_keys", st.APIKeys),
	)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
