package main

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"math/bits"
	"os"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/supplier-orders/internal/domain/product"
)

const (
	bloomCapacity = 5_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	// One bit per file in the pass 2 masks.
	maxFiles = bits.UintSize
)

// batchWriter is implemented by *postgres.ProductRepository.
type batchWriter interface {
	UpsertBatch(ctx context.Context, products []product.Product) error
}

// buildFilters adds every product ID of each file to that file's filter.
func buildFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			var n int
			err := streamExport(ctx, path, func(p product.Product) {
				filter.AddString(p.ID)
				n++
				if n%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.String("file", path), slog.Int("products", n))
				}
			})
			if err != nil {
				return errors.Wrapf(err, "scan %s", path)
			}
			slog.Info("pass 1 complete", slog.String("file", path), slog.Int("products", n))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// findAmbiguous returns the IDs that really occur in two or more files.
// Each file reports only the IDs another file's filter claims, tagged with
// its own bit, so bloom false positives never survive the merge.
func findAmbiguous(ctx context.Context, files []string, filters []*bloom.BloomFilter) (map[string]struct{}, error) {
	masks := make([]map[string]uint, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			bit := uint(1) << uint(i)
			found := make(map[string]uint)
			err := streamExport(ctx, path, func(p product.Product) {
				for j, f := range filters {
					if j != i && f.TestString(p.ID) {
						found[p.ID] |= bit
						return
					}
				}
			})
			if err != nil {
				return errors.Wrapf(err, "scan %s", path)
			}
			masks[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, m := range masks {
		for id, mask := range m {
			merged[id] |= mask
		}
	}
	out := make(map[string]struct{})
	for id, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

// load streams the files in order and upserts every unambiguous product.
func load(ctx context.Context, files []string, skip map[string]struct{}, batchSize int, w batchWriter) (int, error) {
	batchSize = max(batchSize, 1)
	batch := make([]product.Product, 0, batchSize)
	written := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := w.UpsertBatch(ctx, batch); err != nil {
			return err
		}
		written += len(batch)
		batch = batch[:0]
		return nil
	}

	for _, path := range files {
		var flushErr error
		err := streamExport(ctx, path, func(p product.Product) {
			if flushErr != nil {
				return
			}
			if _, ok := skip[p.ID]; ok {
				return
			}
			batch = append(batch, p)
			if len(batch) == batchSize {
				flushErr = flush()
			}
		})
		if err == nil {
			err = flushErr
		}
		if err != nil {
			return written, errors.Wrapf(err, "load %s", path)
		}
	}
	if err := flush(); err != nil {
		return written, err
	}
	return written, nil
}

// streamExport calls fn for each valid row of a gzip CSV export. Invalid
// rows are logged and skipped.
func streamExport(ctx context.Context, path string, fn func(p product.Product)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	return readExport(ctx, gz, func(line int, p product.Product, err error) {
		if err != nil {
			slog.Warn("skipping row", slog.String("file", path), slog.Int("line", line), slog.String("error", err.Error()))
			return
		}
		fn(p)
	})
}

func readExport(ctx context.Context, r io.Reader, fn func(line int, p product.Product, err error)) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 6
	cr.ReuseRecord = true

	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) && errors.Is(perr.Err, csv.ErrFieldCount) {
			fn(line, product.Product{}, err)
			continue
		}
		if err != nil {
			return err
		}
		if line == 1 && strings.EqualFold(rec[0], "id") {
			continue
		}
		p, err := parseRow(rec)
		fn(line, p, err)
	}
}

func parseRow(rec []string) (product.Product, error) {
	p := product.Product{
		ID:         strings.TrimSpace(rec[0]),
		SupplierID: strings.TrimSpace(rec[1]),
		Name:       strings.TrimSpace(rec[2]),
	}
	if p.ID == "" || p.SupplierID == "" || p.Name == "" {
		return p, errors.New("id, supplier_id and name are required")
	}

	price, err := decimal.NewFromString(strings.TrimSpace(rec[3]))
	if err != nil || price.IsNegative() {
		return p, errors.Errorf("invalid unit price %q", rec[3])
	}
	p.UnitPrice = price

	if p.MinQuantity, err = strconv.Atoi(strings.TrimSpace(rec[4])); err != nil || p.MinQuantity < 0 {
		return p, errors.Errorf("invalid min quantity %q", rec[4])
	}
	if p.Stock, err = strconv.Atoi(strings.TrimSpace(rec[5])); err != nil || p.Stock < 0 {
		return p, errors.Errorf("invalid stock %q", rec[5])
	}
	return p, nil
}
