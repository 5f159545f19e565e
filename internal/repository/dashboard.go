package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/dashboard"
)

const (
	countActiveProductsSQL    = `SELECT count(*) FROM products WHERE is_active`
	countActiveCategoriesSQL  = `SELECT count(*) FROM categories WHERE is_active`
	countActiveCollectionsSQL = `SELECT count(*) FROM collections WHERE is_active`
	countCustomersSQL         = `SELECT count(*) FROM users WHERE role = 'USER'`
	countOrdersSQL            = `SELECT count(*) FROM orders WHERE $1::timestamptz IS NULL OR created_at >= $1`
	countOnSaleSQL            = `SELECT count(*) FROM products WHERE is_active AND is_on_sale`

	revenueSQL = `SELECT COALESCE(SUM(total), 0) FROM orders
		WHERE status <> 'CANCELLED' AND ($1::timestamptz IS NULL OR created_at >= $1)`

	recentProductsSQL = `SELECT p.id, p.name, p.price, ` + mainImageSubquery + `, p.created_at
		FROM products p ORDER BY p.created_at DESC LIMIT $1`

	recentOrdersSQL = `SELECT o.id, o.status, o.total, u.first_name, u.last_name, o.created_at
		FROM orders o JOIN users u ON u.id = o.user_id ORDER BY o.created_at DESC LIMIT $1`

	recentUsersSQL = `SELECT id, email, first_name, last_name, created_at
		FROM users ORDER BY created_at DESC LIMIT $1`
)

var _ dashboard.Repository = (*DashboardRepository)(nil)

// DashboardRepository runs the read-only aggregates behind the admin
// dashboard.
type DashboardRepository struct {
	db DB
}

func NewDashboardRepository(db DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

func (r *DashboardRepository) CountActiveProducts(ctx context.Context) (int, error) {
	return r.count(ctx, countActiveProductsSQL)
}

func (r *DashboardRepository) CountActiveCategories(ctx context.Context) (int, error) {
	return r.count(ctx, countActiveCategoriesSQL)
}

func (r *DashboardRepository) CountActiveCollections(ctx context.Context) (int, error) {
	return r.count(ctx, countActiveCollectionsSQL)
}

func (r *DashboardRepository) CountCustomers(ctx context.Context) (int, error) {
	return r.count(ctx, countCustomersSQL)
}

func (r *DashboardRepository) CountOrders(ctx context.Context, since *time.Time) (int, error) {
	return r.count(ctx, countOrdersSQL, since)
}

func (r *DashboardRepository) CountOnSale(ctx context.Context) (int, error) {
	return r.count(ctx, countOnSaleSQL)
}

func (r *DashboardRepository) count(ctx context.Context, sql string, args ...any) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting: %w", err)
	}
	return n, nil
}

func (r *DashboardRepository) Revenue(ctx context.Context, since *time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	if err := r.db.QueryRow(ctx, revenueSQL, since).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("summing revenue: %w", err)
	}
	return sum, nil
}

func (r *DashboardRepository) RecentProducts(ctx context.Context, limit int) ([]dashboard.RecentProduct, error) {
	rows, err := r.db.Query(ctx, recentProductsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent products: %w", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (dashboard.RecentProduct, error) {
		var p dashboard.RecentProduct
		err := row.Scan(&p.ID, &p.Name, &p.Price, &p.MainImage, &p.CreatedAt)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing recent products: %w", err)
	}
	return nonNil(list), nil
}

func (r *DashboardRepository) RecentOrders(ctx context.Context, limit int) ([]dashboard.RecentOrder, error) {
	rows, err := r.db.Query(ctx, recentOrdersSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent orders: %w", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (dashboard.RecentOrder, error) {
		var o dashboard.RecentOrder
		err := row.Scan(&o.ID, &o.Status, &o.Total, &o.FirstName, &o.LastName, &o.CreatedAt)
		return o, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing recent orders: %w", err)
	}
	return nonNil(list), nil
}

func (r *DashboardRepository) RecentUsers(ctx context.Context, limit int) ([]dashboard.RecentUser, error) {
	rows, err := r.db.Query(ctx, recentUsersSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent users: %w", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (dashboard.RecentUser, error) {
		var u dashboard.RecentUser
		err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.CreatedAt)
		return u, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing recent users: %w", err)
	}
	return nonNil(list), nil
}
