package dashboard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	mu        sync.Mutex
	since     []*time.Time
	ordersErr error
}

func (m *mockRepo) CountActiveProducts(context.Context) (int, error)    { return 12, nil }
func (m *mockRepo) CountActiveCategories(context.Context) (int, error)  { return 3, nil }
func (m *mockRepo) CountActiveCollections(context.Context) (int, error) { return 2, nil }
func (m *mockRepo) CountCustomers(context.Context) (int, error)         { return 40, nil }
func (m *mockRepo) CountOnSale(context.Context) (int, error)            { return 4, nil }

func (m *mockRepo) CountOrders(_ context.Context, since *time.Time) (int, error) {
	if m.ordersErr != nil {
		return 0, m.ordersErr
	}
	if since != nil {
		return 1, nil
	}
	return 9, nil
}

func (m *mockRepo) RecentProducts(_ context.Context, limit int) ([]RecentProduct, error) {
	return make([]RecentProduct, limit), nil
}

func (m *mockRepo) RecentOrders(_ context.Context, limit int) ([]RecentOrder, error) {
	return []RecentOrder{{ID: "o1", FirstName: "Ada", LastName: "Lovelace"}}, nil
}

func (m *mockRepo) RecentUsers(_ context.Context, limit int) ([]RecentUser, error) {
	return []RecentUser{{ID: 1}, {ID: 2}}, nil
}

func (m *mockRepo) Revenue(_ context.Context, since *time.Time) (decimal.Decimal, error) {
	m.mu.Lock()
	m.since = append(m.since, since)
	m.mu.Unlock()
	if since == nil {
		return decimal.NewFromInt(1000), nil
	}
	return decimal.NewFromInt(int64(since.Day())), nil
}

func TestStatistics(t *testing.T) {
	svc := NewService(&mockRepo{})

	st, err := svc.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Counts{
		Products:    12,
		Categories:  3,
		Collections: 2,
		Users:       40,
		Orders:      9,
		OnSale:      4,
		OrdersToday: 1,
	}, st.Counts)
	assert.Len(t, st.RecentProducts, RecentLimit)
	assert.Len(t, st.RecentOrders, 1)
	assert.Len(t, st.RecentUsers, 2)
}

func TestStatistics_Error(t *testing.T) {
	svc := NewService(&mockRepo{ordersErr: errors.New("db down")})

	_, err := svc.Statistics(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestRevenue_Windows(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)
	svc.now = func() time.Time { return time.Date(2026, 5, 20, 15, 30, 0, 0, time.UTC) }

	r, err := svc.Revenue(context.Background())
	require.NoError(t, err)

	// The mock returns the day of month of each window start.
	assert.Equal(t, "1000", r.Total.String())
	assert.Equal(t, "1", r.Monthly.String())
	assert.Equal(t, "13", r.Weekly.String())
	assert.Equal(t, "20", r.Today.String())

	var midnight bool
	for _, since := range repo.since {
		if since != nil && since.Equal(time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)) {
			midnight = true
		}
	}
	assert.True(t, midnight)
}
