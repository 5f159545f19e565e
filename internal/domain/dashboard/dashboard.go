// Package dashboard aggregates store-wide statistics for administrators.
package dashboard

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// RecentLimit is the length of each "recent" list.
const RecentLimit = 5

// Counts holds the headline numbers of the store.
type Counts struct {
	Products    int `json:"totalProducts"`
	Categories  int `json:"totalCategories"`
	Collections int `json:"totalCollections"`
	Users       int `json:"totalUsers"`
	Orders      int `json:"totalOrders"`
	OnSale      int `json:"activeSales"`
	OrdersToday int `json:"todayOrders"`
}

// RecentProduct is a newly created product.
type RecentProduct struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	MainImage *string         `json:"mainImage,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// RecentOrder is a newly placed order with its customer name.
type RecentOrder struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Total     decimal.Decimal `json:"total"`
	FirstName string          `json:"firstName"`
	LastName  string          `json:"lastName"`
	CreatedAt time.Time       `json:"createdAt"`
}

// RecentUser is a newly registered account.
type RecentUser struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	CreatedAt time.Time `json:"createdAt"`
}

// Statistics is the dashboard overview.
type Statistics struct {
	Counts
	RecentProducts []RecentProduct `json:"recentProducts"`
	RecentOrders   []RecentOrder   `json:"recentOrders"`
	RecentUsers    []RecentUser    `json:"recentUsers"`
}

// Revenue sums order totals over several windows. Cancelled orders never
// count.
type Revenue struct {
	Total   decimal.Decimal `json:"totalRevenue"`
	Monthly decimal.Decimal `json:"monthlyRevenue"`
	Weekly  decimal.Decimal `json:"weeklyRevenue"`
	Today   decimal.Decimal `json:"todayRevenue"`
}

// Repository runs the aggregate queries.
type Repository interface {
	CountActiveProducts(ctx context.Context) (int, error)
	CountActiveCategories(ctx context.Context) (int, error)
	CountActiveCollections(ctx context.Context) (int, error)
	CountCustomers(ctx context.Context) (int, error)
	CountOrders(ctx context.Context, since *time.Time) (int, error)
	CountOnSale(ctx context.Context) (int, error)
	RecentProducts(ctx context.Context, limit int) ([]RecentProduct, error)
	RecentOrders(ctx context.Context, limit int) ([]RecentOrder, error)
	RecentUsers(ctx context.Context, limit int) ([]RecentUser, error)
	// Revenue sums non-cancelled order totals created at or after since.
	// A nil since covers all time.
	Revenue(ctx context.Context, since *time.Time) (decimal.Decimal, error)
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Statistics runs every count and recent list concurrently.
func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	midnight := startOfDay(s.now())

	var st Statistics
	g, ctx := errgroup.WithContext(ctx)
	count := func(name string, dst *int, fn func(context.Context) (int, error)) {
		g.Go(func() error {
			n, err := fn(ctx)
			if err != nil {
				return errors.Wrapf(err, "count %s", name)
			}
			*dst = n
			return nil
		})
	}
	count("products", &st.Products, s.repo.CountActiveProducts)
	count("categories", &st.Categories, s.repo.CountActiveCategories)
	count("collections", &st.Collections, s.repo.CountActiveCollections)
	count("users", &st.Users, s.repo.CountCustomers)
	count("on sale", &st.OnSale, s.repo.CountOnSale)
	count("orders", &st.Orders, func(ctx context.Context) (int, error) {
		return s.repo.CountOrders(ctx, nil)
	})
	count("orders today", &st.OrdersToday, func(ctx context.Context) (int, error) {
		return s.repo.CountOrders(ctx, &midnight)
	})

	g.Go(func() error {
		list, err := s.repo.RecentProducts(ctx, RecentLimit)
		if err != nil {
			return errors.Wrap(err, "recent products")
		}
		st.RecentProducts = list
		return nil
	})
	g.Go(func() error {
		list, err := s.repo.RecentOrders(ctx, RecentLimit)
		if err != nil {
			return errors.Wrap(err, "recent orders")
		}
		st.RecentOrders = list
		return nil
	})
	g.Go(func() error {
		list, err := s.repo.RecentUsers(ctx, RecentLimit)
		if err != nil {
			return errors.Wrap(err, "recent users")
		}
		st.RecentUsers = list
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &st, nil
}

// Revenue computes all-time, month-to-date, last-7-days and today's revenue.
func (s *Service) Revenue(ctx context.Context) (*Revenue, error) {
	now := s.now()
	today := startOfDay(now)
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	week := now.AddDate(0, 0, -7)

	var r Revenue
	g, ctx := errgroup.WithContext(ctx)
	sum := func(dst *decimal.Decimal, since *time.Time) {
		g.Go(func() error {
			v, err := s.repo.Revenue(ctx, since)
			if err != nil {
				return errors.Wrap(err, "revenue")
			}
			*dst = v
			return nil
		})
	}
	sum(&r.Total, nil)
	sum(&r.Monthly, &month)
	sum(&r.Weekly, &week)
	sum(&r.Today, &today)

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &r, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
