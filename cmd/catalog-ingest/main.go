// Command catalog-ingest bulk-loads supplier catalog exports into the
// products table.
//
// Exports are gzip-compressed CSV files with the columns
// id,supplier_id,name,unit_price,min_quantity,stock. A product ID present in
// more than one export is ambiguous and is skipped; the first pass finds
// such IDs with one bloom filter per file so that large exports never have
// to fit in memory.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"

	"github.com/xenking/supplier-orders/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	var (
		dataDir     string
		pattern     string
		databaseURL string
		batchSize   int
		dryRun      bool
	)
	flag.StringVar(&dataDir, "data-dir", "data", "directory containing catalog exports")
	flag.StringVar(&pattern, "pattern", "*.csv.gz", "glob of export files inside data-dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or ORDERS_DATABASE_URL / DATABASE_URL env)")
	flag.IntVar(&batchSize, "batch", 500, "products per upsert batch")
	flag.BoolVar(&dryRun, "dry-run", false, "scan and report without writing")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("ORDERS_DATABASE_URL")
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url, ORDERS_DATABASE_URL or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, filepath.Join(dataDir, pattern), databaseURL, batchSize, dryRun); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, glob, databaseURL string, batchSize int, dryRun bool) error {
	files, err := filepath.Glob(glob)
	if err != nil {
		return errors.Wrap(err, "glob exports")
	}
	if len(files) == 0 {
		return errors.Errorf("no exports match %s", glob)
	}
	if len(files) > maxFiles {
		return errors.Errorf("%d exports exceed the limit of %d", len(files), maxFiles)
	}

	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))
	filters, err := buildFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: finding products listed in several exports")
	ambiguous, err := findAmbiguous(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "find ambiguous products")
	}
	slog.Info("ambiguous products", slog.Int("count", len(ambiguous)))

	if dryRun {
		return nil
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("pass 3: upserting products")
	written, err := load(ctx, files, ambiguous, batchSize, postgres.NewProductRepository(pool))
	if err != nil {
		return errors.Wrap(err, "load products")
	}
	slog.Info("products written", slog.Int("count", written))
	return nil
}
