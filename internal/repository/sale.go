package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/sale"
)

const (
	saleColumns = `s.id, s.name, s.description, s.discount_type, s.discount_value, s.start_date,
		s.end_date, s.is_active, s.minimum_order, s.maximum_discount, s.created_at, s.updated_at`

	createSaleSQL = `INSERT INTO sales (id, name, description, discount_type, discount_value,
		start_date, end_date, is_active, minimum_order, maximum_discount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	getSaleSQL   = `SELECT ` + saleColumns + ` FROM sales s WHERE s.id = $1`
	listSalesSQL = `SELECT ` + saleColumns + ` FROM sales s ORDER BY s.created_at DESC`

	listActiveSalesSQL = `SELECT ` + saleColumns + ` FROM sales s
		WHERE s.is_active AND s.start_date <= $1 AND s.end_date > $1
		ORDER BY s.created_at DESC`

	activeSalesForProductSQL = `SELECT ` + saleColumns + ` FROM sales s
		JOIN product_sales ps ON ps.sale_id = s.id
		WHERE ps.product_id = $1 AND s.is_active AND s.start_date <= $2 AND s.end_date > $2
		ORDER BY s.created_at`

	updateSaleSQL = `UPDATE sales SET name = $2, description = $3, discount_type = $4,
		discount_value = $5, start_date = $6, end_date = $7, is_active = $8,
		minimum_order = $9, maximum_discount = $10, updated_at = now()
		WHERE id = $1 RETURNING updated_at`

	deleteSaleSQL      = `DELETE FROM sales WHERE id = $1`
	unlinkSaleSQL      = `DELETE FROM product_sales WHERE sale_id = $1`
	linkSaleProductSQL = `INSERT INTO product_sales (product_id, sale_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`

	saleProductsSQL = `SELECT ps.sale_id, p.id, p.name, p.price, ` + mainImageSubquery + `
		FROM product_sales ps JOIN products p ON p.id = ps.product_id
		WHERE ps.sale_id = ANY($1) ORDER BY p.name`
)

var _ sale.Repository = (*SaleRepository)(nil)

// SaleRepository implements sale.Repository backed by PostgreSQL. Product
// links live in product_sales.
type SaleRepository struct {
	db DB
}

func NewSaleRepository(db DB) *SaleRepository {
	return &SaleRepository{db: db}
}

func (r *SaleRepository) Create(ctx context.Context, s *sale.Sale, productIDs []string) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, createSaleSQL,
			s.ID, s.Name, s.Description, s.DiscountType, s.DiscountValue,
			s.StartDate, s.EndDate, s.IsActive, s.MinimumOrder, s.MaximumDiscount,
		).Scan(&s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return fmt.Errorf("creating sale: %w", err)
		}
		return linkProducts(ctx, tx, s.ID, productIDs)
	})
}

func (r *SaleRepository) GetByID(ctx context.Context, id string) (*sale.Sale, error) {
	rows, err := r.db.Query(ctx, getSaleSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting sale %q: %w", id, err)
	}
	s, err := pgx.CollectExactlyOneRow(rows, scanSale)
	if err != nil {
		return nil, notFound(err, sale.ErrNotFound)
	}
	list := []sale.Sale{s}
	if err := r.attachProducts(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (r *SaleRepository) List(ctx context.Context) ([]sale.Sale, error) {
	return r.list(ctx, listSalesSQL)
}

func (r *SaleRepository) ListActive(ctx context.Context, now time.Time) ([]sale.Sale, error) {
	return r.list(ctx, listActiveSalesSQL, now)
}

func (r *SaleRepository) ActiveForProduct(ctx context.Context, productID string, now time.Time) ([]sale.Sale, error) {
	rows, err := r.db.Query(ctx, activeSalesForProductSQL, productID, now)
	if err != nil {
		return nil, fmt.Errorf("listing sales of product %q: %w", productID, err)
	}
	list, err := pgx.CollectRows(rows, scanSale)
	if err != nil {
		return nil, fmt.Errorf("listing sales of product %q: %w", productID, err)
	}
	return nonNil(list), nil
}

func (r *SaleRepository) list(ctx context.Context, sql string, args ...any) ([]sale.Sale, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sales: %w", err)
	}
	list, err := pgx.CollectRows(rows, scanSale)
	if err != nil {
		return nil, fmt.Errorf("listing sales: %w", err)
	}
	if err := r.attachProducts(ctx, list); err != nil {
		return nil, err
	}
	return nonNil(list), nil
}

func (r *SaleRepository) Update(ctx context.Context, s *sale.Sale, productIDs []string) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, updateSaleSQL,
			s.ID, s.Name, s.Description, s.DiscountType, s.DiscountValue,
			s.StartDate, s.EndDate, s.IsActive, s.MinimumOrder, s.MaximumDiscount,
		).Scan(&s.UpdatedAt)
		if err != nil {
			return notFound(err, sale.ErrNotFound)
		}
		if productIDs == nil {
			return nil
		}
		if _, err := tx.Exec(ctx, unlinkSaleSQL, s.ID); err != nil {
			return fmt.Errorf("unlinking sale products: %w", err)
		}
		return linkProducts(ctx, tx, s.ID, productIDs)
	})
}

func (r *SaleRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, deleteSaleSQL, id)
	if err != nil {
		return fmt.Errorf("deleting sale %q: %w", id, err)
	}
	return affected(tag, sale.ErrNotFound)
}

func (r *SaleRepository) attachProducts(ctx context.Context, list []sale.Sale) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, len(list))
	for i := range list {
		ids[i] = list[i].ID
	}
	rows, err := r.db.Query(ctx, saleProductsSQL, ids)
	if err != nil {
		return fmt.Errorf("listing sale products: %w", err)
	}
	type linked struct {
		saleID string
		product.Summary
	}
	links, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (linked, error) {
		var l linked
		err := row.Scan(&l.saleID, &l.ID, &l.Name, &l.Price, &l.MainImage)
		return l, err
	})
	if err != nil {
		return fmt.Errorf("listing sale products: %w", err)
	}
	bySale := make(map[string][]product.Summary, len(list))
	for _, l := range links {
		bySale[l.saleID] = append(bySale[l.saleID], l.Summary)
	}
	for i := range list {
		list[i].Products = nonNil(bySale[list[i].ID])
	}
	return nil
}

func linkProducts(ctx context.Context, tx pgx.Tx, saleID string, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, id := range productIDs {
		batch.Queue(linkSaleProductSQL, id, saleID)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		if isForeignKeyViolation(err) {
			return sale.ErrProductsNotFound
		}
		return fmt.Errorf("linking sale products: %w", err)
	}
	return nil
}

func scanSale(row pgx.CollectableRow) (sale.Sale, error) {
	var s sale.Sale
	err := row.Scan(
		&s.ID, &s.Name, &s.Description, &s.DiscountType, &s.DiscountValue, &s.StartDate,
		&s.EndDate, &s.IsActive, &s.MinimumOrder, &s.MaximumDiscount, &s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}
