package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/repository"
)

const (
	bloomCapacity = 2_000_000
	bloomFPR      = 0.001
	progressEvery = 10_000
	maxLineSize   = 1 << 20
)

// record is one line of a catalog export.
type record struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Stock         int             `json:"stock"`
	SKU           string          `json:"sku"`
	CategoryID    string          `json:"categoryId"`
	SubcategoryID *string         `json:"subcategoryId"`
	CollectionID  *string         `json:"collectionId"`
	IsFeatured    bool            `json:"isFeatured"`
	Images        []string        `json:"images"`
}

func (r record) validate() error {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return errors.New("name is required")
	case strings.TrimSpace(r.SKU) == "":
		return errors.New("sku is required")
	case r.CategoryID == "":
		return errors.New("categoryId is required")
	case r.Price.IsNegative():
		return errors.New("price must not be negative")
	case r.Stock < 0:
		return errors.New("stock must not be negative")
	}
	return nil
}

func (r record) product() *product.Product {
	p := &product.Product{
		ID:            uuid.NewString(),
		Name:          strings.TrimSpace(r.Name),
		Description:   r.Description,
		Price:         r.Price,
		Stock:         r.Stock,
		SKU:           strings.TrimSpace(r.SKU),
		CategoryID:    r.CategoryID,
		SubcategoryID: r.SubcategoryID,
		CollectionID:  r.CollectionID,
		IsActive:      true,
		IsFeatured:    r.IsFeatured,
	}
	for i, url := range r.Images {
		p.Images = append(p.Images, product.Image{
			ID:        uuid.NewString(),
			ProductID: p.ID,
			URL:       url,
			IsMain:    i == 0,
			Order:     i,
		})
	}
	return p
}

// skuIndex answers "was this SKU seen before" with a bloom filter in front of
// an exact lookup. Only bloom positives reach the lookup.
type skuIndex struct {
	filter *bloom.BloomFilter
	exists func(ctx context.Context, sku string) (bool, error)
}

func newSKUIndex(exists func(ctx context.Context, sku string) (bool, error)) *skuIndex {
	return &skuIndex{filter: bloom.NewWithEstimates(bloomCapacity, bloomFPR), exists: exists}
}

func (x *skuIndex) add(sku string) {
	x.filter.AddString(sku)
}

func (x *skuIndex) seen(ctx context.Context, sku string) (bool, error) {
	if !x.filter.TestString(sku) {
		return false, nil
	}
	return x.exists(ctx, sku)
}

type stats struct {
	inserted   int
	duplicates int
	rejected   int
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.jsonl.gz catalog exports")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "list catalog files")
	}
	if len(files) == 0 {
		slog.Info("no catalog files found", slog.String("dir", dataDir))
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	products := repository.NewProductRepository(pool)
	index := newSKUIndex(products.SKUExists)

	slog.Info("loading existing skus")

	existing := 0
	if err := products.EachSKU(ctx, func(sku string) {
		index.add(sku)
		existing++
	}); err != nil {
		return errors.Wrap(err, "load skus")
	}

	slog.Info("existing skus loaded", slog.Int("count", existing), slog.Int("files", len(files)))

	records := make(chan record, 256)
	g, gctx := errgroup.WithContext(ctx)

	readers, rctx := errgroup.WithContext(gctx)
	for _, f := range files {
		readers.Go(func() error {
			return streamRecords(rctx, f, records)
		})
	}
	g.Go(func() error {
		defer close(records)
		return readers.Wait()
	})

	var st stats
	g.Go(func() error {
		var err error
		st, err = importRecords(gctx, products, index, records)
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("import summary",
		slog.Int("inserted", st.inserted),
		slog.Int("duplicates", st.duplicates),
		slog.Int("rejected", st.rejected),
	)
	return nil
}

type productCreator interface {
	Create(ctx context.Context, p *product.Product) error
}

// importRecords inserts records not yet in the index. Domain rejections (a
// missing category, a taken SKU) skip the record; other errors abort.
func importRecords(ctx context.Context, products productCreator, index *skuIndex, records <-chan record) (stats, error) {
	var (
		st    stats
		total int
	)
	for rec := range records {
		total++
		if total%progressEvery == 0 {
			slog.Info("import progress", slog.Int("records", total), slog.Int("inserted", st.inserted))
		}

		sku := strings.TrimSpace(rec.SKU)
		dup, err := index.seen(ctx, sku)
		if err != nil {
			return st, errors.Wrapf(err, "check sku %s", sku)
		}
		if dup {
			st.duplicates++
			continue
		}

		err = products.Create(ctx, rec.product())
		switch {
		case errors.Is(err, product.ErrSKUTaken):
			st.duplicates++
		case apperr.KindOf(err) != apperr.KindUnknown:
			slog.Warn("record rejected", slog.String("sku", sku), slog.String("reason", err.Error()))
			st.rejected++
		case err != nil:
			return st, errors.Wrapf(err, "create product %s", sku)
		default:
			st.inserted++
		}
		index.add(sku)
	}
	return st, ctx.Err()
}

// streamRecords decodes a gzip-compressed JSON lines file into out. Invalid
// lines are logged and skipped.
func streamRecords(ctx context.Context, path string, out chan<- record) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(strings.TrimSpace(string(raw))) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			slog.Warn("invalid line", slog.String("file", path), slog.Int("line", line), slog.String("error", err.Error()))
			continue
		}
		if err := rec.validate(); err != nil {
			slog.Warn("invalid record", slog.String("file", path), slog.Int("line", line), slog.String("error", err.Error()))
			continue
		}
		select {
		case out <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	slog.Info("file complete", slog.String("file", path), slog.Int("lines", line))
	return nil
}
