package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/category"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func ptr[T any](v T) *T { return &v }

func placedOrder() *order.Order {
	return &order.Order{
		ID:            "o-1",
		UserID:        7,
		Status:        order.StatusPending,
		PaymentStatus: order.PaymentPending,
		PaymentMethod: order.PaymentCreditCard,
		Subtotal:      decimal.RequireFromString("50"),
		Shipping:      decimal.RequireFromString("5"),
		Tax:           decimal.RequireFromString("4"),
		Total:         decimal.RequireFromString("59"),
		Items: []order.Item{
			{ID: "i-1", OrderID: "o-1", ProductID: "p-1", Quantity: 2, Price: decimal.NewFromInt(10)},
			{ID: "i-2", OrderID: "o-1", ProductID: "p-2", VariantID: ptr("v-1"), Quantity: 1, Price: decimal.NewFromInt(30)},
		},
	}
}

func TestOrderRepository_Place(t *testing.T) {
	mock := newMock(t)
	repo := NewOrderRepository(mock)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(defaultAddressSQL).WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("addr-1"))
	mock.ExpectQuery(createOrderSQL).WithArgs(anyArgs(11)...).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(at, at))
	mock.ExpectExec(createOrderItemSQL).WithArgs(anyArgs(8)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(takeProductStockSQL).WithArgs("p-1", 2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(createOrderItemSQL).WithArgs(anyArgs(8)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(takeVariantStockSQL).WithArgs("v-1", 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(clearOrderedCartSQL).WithArgs(int64(7), []string{"p-1", "p-2"}).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCommit()

	o := placedOrder()
	require.NoError(t, repo.Place(ctx, o))
	assert.Equal(t, "addr-1", o.AddressID)
	assert.Equal(t, at, o.CreatedAt)
}

func TestOrderRepository_Place_Placeholder(t *testing.T) {
	mock := newMock(t)
	repo := NewOrderRepository(mock)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(defaultAddressSQL).WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectQuery(placeholderAddrSQL).WithArgs(int64(7), order.PlaceholderStreet).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectExec(createAddressSQL).WithArgs(anyArgs(8)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(createOrderSQL).WithArgs(anyArgs(11)...).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.Place(ctx, placedOrder())
	require.ErrorIs(t, err, assert.AnError)
}

func TestOrderRepository_Place_InsufficientStock(t *testing.T) {
	mock := newMock(t)
	repo := NewOrderRepository(mock)
	ctx := context.Background()
	at := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(defaultAddressSQL).WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("addr-1"))
	mock.ExpectQuery(createOrderSQL).WithArgs(anyArgs(11)...).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(at, at))
	mock.ExpectExec(createOrderItemSQL).WithArgs(anyArgs(8)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(takeProductStockSQL).WithArgs("p-1", 2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := repo.Place(ctx, placedOrder())
	var stockErr *order.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "p-1", stockErr.ProductID)
}

func TestOrderRepository_Cancel(t *testing.T) {
	mock := newMock(t)
	repo := NewOrderRepository(mock)
	ctx := context.Background()
	at := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(lockOrderSQL).WithArgs("o-1").
		WillReturnRows(pgxmock.NewRows([]string{"status", "notes"}).AddRow("PROCESSING", "leave at door"))
	mock.ExpectExec(markOrderCancelledSQL).
		WithArgs("o-1", order.StatusCancelled, order.AppendCancellation("leave at door", "changed mind", at)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(cancelledItemsSQL).WithArgs("o-1").
		WillReturnRows(pgxmock.NewRows([]string{"product_id", "variant_id", "quantity"}).
			AddRow("p-1", nil, 2).
			AddRow("p-2", ptr("v-1"), 1))
	mock.ExpectExec(restoreProductStockSQL).WithArgs("p-1", 2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(restoreVariantStockSQL).WithArgs("v-1", 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Cancel(ctx, "o-1", "changed mind", at))
}

func TestOrderRepository_Cancel_Rejected(t *testing.T) {
	for _, tt := range []struct {
		name string
		rows *pgxmock.Rows
		want error
	}{
		{
			name: "Shipped",
			rows: pgxmock.NewRows([]string{"status", "notes"}).AddRow("SHIPPED", ""),
			want: order.ErrNotCancellable,
		},
		{
			name: "Missing",
			rows: pgxmock.NewRows([]string{"status", "notes"}),
			want: order.ErrNotFound,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			repo := NewOrderRepository(mock)

			mock.ExpectBegin()
			mock.ExpectQuery(lockOrderSQL).WithArgs("o-1").WillReturnRows(tt.rows)
			mock.ExpectRollback()

			err := repo.Cancel(context.Background(), "o-1", "reason", time.Now())
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOrderRepository_UpdateStatus(t *testing.T) {
	mock := newMock(t)
	repo := NewOrderRepository(mock)

	mock.ExpectExec(updateOrderStatusSQL).WithArgs("o-1", order.StatusProcessing, order.StatusShipped).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "o-1", order.StatusProcessing, order.StatusShipped))
}

func TestOrderRepository_UpdateStatus_Changed(t *testing.T) {
	mock := newMock(t)
	repo := NewOrderRepository(mock)

	mock.ExpectExec(updateOrderStatusSQL).WithArgs("o-1", order.StatusPending, order.StatusShipped).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateStatus(context.Background(), "o-1", order.StatusPending, order.StatusShipped)
	require.ErrorIs(t, err, order.ErrStatusChanged)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestAddressRepository_SetDefault(t *testing.T) {
	mock := newMock(t)
	repo := NewAddressRepository(mock)
	ctx := context.Background()
	at := time.Now()

	cols := []string{"id", "user_id", "street", "city", "state", "zip_code", "country", "is_default", "created_at"}
	mock.ExpectBegin()
	mock.ExpectQuery(lockAddressSQL).WithArgs(int64(7), "a-2").
		WillReturnRows(pgxmock.NewRows(cols).AddRow("a-2", int64(7), "1 Main St", "Springfield", "IL", "62701", "US", false, at))
	mock.ExpectExec(clearDefaultSQL).WithArgs(int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(markDefaultSQL).WithArgs("a-2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	a, err := repo.SetDefault(ctx, 7, "a-2")
	require.NoError(t, err)
	assert.True(t, a.IsDefault)
	assert.Equal(t, "Springfield", a.City)

	mock.ExpectBegin()
	mock.ExpectQuery(lockAddressSQL).WithArgs(int64(7), "a-404").
		WillReturnRows(pgxmock.NewRows(cols))
	mock.ExpectRollback()

	_, err = repo.SetDefault(ctx, 7, "a-404")
	require.ErrorIs(t, err, order.ErrAddressNotFound)
}

func TestCategoryRepository_Delete(t *testing.T) {
	mock := newMock(t)
	repo := NewCategoryRepository(mock)
	ctx := context.Background()
	ids := []string{"p-1", "p-2"}

	mock.ExpectBegin()
	mock.ExpectQuery(selectCategoryProductIDsSQL).WithArgs("c-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("p-1").AddRow("p-2"))
	for _, stmt := range productDependents {
		mock.ExpectExec(stmt).WithArgs(ids).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	}
	mock.ExpectExec(deleteProductsSQL).WithArgs(ids).WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(deleteCategorySubsSQL).WithArgs("c-1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(deleteCategorySQL).WithArgs("c-1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	removed, err := repo.Delete(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, ids, removed)
}

func TestCategoryRepository_Delete_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewCategoryRepository(mock)

	mock.ExpectBegin()
	mock.ExpectQuery(selectCategoryProductIDsSQL).WithArgs("c-404").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectExec(deleteCategorySubsSQL).WithArgs("c-404").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(deleteCategorySQL).WithArgs("c-404").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	_, err := repo.Delete(context.Background(), "c-404")
	require.ErrorIs(t, err, category.ErrNotFound)
}

func TestProductRepository_Delete_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)
	ids := []string{"p-404"}

	mock.ExpectBegin()
	for _, stmt := range productDependents {
		mock.ExpectExec(stmt).WithArgs(ids).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	}
	mock.ExpectExec(deleteProductsSQL).WithArgs(ids).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "p-404")
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestUserRepository_Create_EmailTaken(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery(createUserSQL).WithArgs(anyArgs(8)...).
		WillReturnError(&pgconn.PgError{Code: codeUniqueViolation})

	err := repo.Create(context.Background(), &user.User{Email: "jane@example.com", Role: user.RoleUser})
	require.ErrorIs(t, err, user.ErrEmailTaken)
}

func TestDashboardRepository_Revenue(t *testing.T) {
	mock := newMock(t)
	repo := NewDashboardRepository(mock)
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(revenueSQL).WithArgs(&since).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(decimal.RequireFromString("120.50")))

	got, err := repo.Revenue(context.Background(), &since)
	require.NoError(t, err)
	assert.Equal(t, "120.5", got.String())
}

func TestProductRepository_SKUs(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)
	ctx := context.Background()

	mock.ExpectQuery(listSKUsSQL).
		WillReturnRows(pgxmock.NewRows([]string{"sku"}).AddRow("A-1").AddRow("B-2"))
	var skus []string
	require.NoError(t, repo.EachSKU(ctx, func(sku string) { skus = append(skus, sku) }))
	assert.Equal(t, []string{"A-1", "B-2"}, skus)

	mock.ExpectQuery(skuExistsSQL).WithArgs("A-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	exists, err := repo.SKUExists(ctx, "A-1")
	require.NoError(t, err)
	assert.True(t, exists)
}
