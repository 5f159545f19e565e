package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/auth"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/repository"
)

type catalogJSON struct {
	Categories []struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		Description   string `json:"description"`
		Subcategories []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"subcategories"`
	} `json:"categories"`
	Collections []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"collections"`
	Products []productJSON `json:"products"`
}

type productJSON struct {
	ID            string          `json:"id"`
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
	Variants      []struct {
		Color string `json:"color"`
		Size  string `json:"size"`
		Stock int    `json:"stock"`
	} `json:"variants"`
}

const (
	upsertCategorySQL = `INSERT INTO categories (id, name, description) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description, updated_at = now()`
	upsertSubcategorySQL = `INSERT INTO subcategories (id, name, category_id) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, category_id = EXCLUDED.category_id, updated_at = now()`
	upsertCollectionSQL = `INSERT INTO collections (id, name, description) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description, updated_at = now()`
)

func main() {
	var (
		databaseURL   string
		catalogFile   string
		adminEmail    string
		adminPassword string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.StringVar(&adminEmail, "admin-email", "admin@example.com", "administrator email")
	flag.StringVar(&adminPassword, "admin-password", "", "administrator password (or SHOP_SEED_ADMIN_PASSWORD env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if adminPassword == "" {
		adminPassword = os.Getenv("SHOP_SEED_ADMIN_PASSWORD")
	}
	if len(adminPassword) < 6 {
		slog.Error("admin password of at least 6 characters is required: set --admin-password or SHOP_SEED_ADMIN_PASSWORD")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile, adminEmail, adminPassword); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile, adminEmail, adminPassword string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedAdmin(ctx, repository.NewUserRepository(pool), adminEmail, adminPassword); err != nil {
		return errors.Wrap(err, "seed admin")
	}

	if err := seedCatalog(ctx, pool, catalogFile); err != nil {
		return errors.Wrap(err, "seed catalog")
	}

	return nil
}

func seedAdmin(ctx context.Context, users *repository.UserRepository, email, password string) error {
	slog.Info("seeding administrator", slog.String("email", email))

	hash, err := auth.NewHasher().Hash(password)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}
	id, err := users.UpsertAdmin(ctx, email, hash, "Admin", "User")
	if err != nil {
		return err
	}

	slog.Info("upserted administrator", slog.Int64("id", id))
	return nil
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool, catalogFile string) error {
	slog.Info("reading catalog file", slog.String("path", catalogFile))

	data, err := os.ReadFile(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}

	var catalog catalogJSON
	if err := json.Unmarshal(data, &catalog); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	for _, c := range catalog.Categories {
		if _, err := pool.Exec(ctx, upsertCategorySQL, c.ID, c.Name, c.Description); err != nil {
			return errors.Wrapf(err, "upsert category %s", c.ID)
		}
		for _, s := range c.Subcategories {
			if _, err := pool.Exec(ctx, upsertSubcategorySQL, s.ID, s.Name, c.ID); err != nil {
				return errors.Wrapf(err, "upsert subcategory %s", s.ID)
			}
		}
		slog.Info("upserted category", slog.String("id", c.ID), slog.Int("subcategories", len(c.Subcategories)))
	}

	for _, c := range catalog.Collections {
		if _, err := pool.Exec(ctx, upsertCollectionSQL, c.ID, c.Name, c.Description); err != nil {
			return errors.Wrapf(err, "upsert collection %s", c.ID)
		}
		slog.Info("upserted collection", slog.String("id", c.ID))
	}

	products := repository.NewProductRepository(pool)
	created := 0
	for _, p := range catalog.Products {
		err := products.Create(ctx, p.product())
		switch {
		case errors.Is(err, product.ErrSKUTaken):
			slog.Info("product already seeded", slog.String("sku", p.SKU))
			continue
		case err != nil:
			return errors.Wrapf(err, "create product %s", p.SKU)
		}
		created++
		slog.Info("created product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	slog.Info("products seeded", slog.Int("created", created), slog.Int("total", len(catalog.Products)))
	return nil
}

func (p productJSON) product() *product.Product {
	out := &product.Product{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price,
		Stock:         p.Stock,
		SKU:           p.SKU,
		CategoryID:    p.CategoryID,
		SubcategoryID: p.SubcategoryID,
		CollectionID:  p.CollectionID,
		IsActive:      true,
		IsFeatured:    p.IsFeatured,
	}
	for i, url := range p.Images {
		out.Images = append(out.Images, product.Image{
			ID:        uuid.NewString(),
			ProductID: p.ID,
			URL:       url,
			IsMain:    i == 0,
			Order:     i,
		})
	}
	for _, v := range p.Variants {
		out.Variants = append(out.Variants, product.Variant{
			ID:        uuid.NewString(),
			ProductID: p.ID,
			Color:     v.Color,
			Size:      v.Size,
			Stock:     v.Stock,
		})
	}
	return out
}
