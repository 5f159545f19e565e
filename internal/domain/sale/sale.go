package sale

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/product"
)

var (
	ErrNotFound         = apperr.NotFound("Sale not found")
	ErrInvalidWindow    = apperr.BadRequest("End date must be after start date")
	ErrProductsNotFound = apperr.NotFound("One or more products not found")
	ErrInvalidType      = apperr.BadRequest("discountType must be one of: percentage, fixed")
)

// DiscountType selects how DiscountValue is interpreted.
type DiscountType string

const (
	// Percentage discounts carry the percent off in DiscountValue.
	Percentage DiscountType = "percentage"
	// Fixed discounts carry an amount off the product price.
	Fixed DiscountType = "fixed"
)

func (t DiscountType) Valid() bool {
	return t == Percentage || t == Fixed
}

// Sale is a time-bounded discount campaign linked to products. The window is
// [StartDate, EndDate).
type Sale struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	Description     *string             `json:"description"`
	DiscountType    DiscountType        `json:"discountType"`
	DiscountValue   decimal.Decimal     `json:"discountValue"`
	StartDate       time.Time           `json:"startDate"`
	EndDate         time.Time           `json:"endDate"`
	IsActive        bool                `json:"isActive"`
	MinimumOrder    decimal.NullDecimal `json:"minimumOrder"`
	MaximumDiscount decimal.NullDecimal `json:"maximumDiscount"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
	Products        []product.Summary   `json:"products"`
}

// Discount is the best discount applicable to a product, in percent.
type Discount struct {
	Discount decimal.Decimal `json:"discount"`
	SaleID   *string         `json:"saleId"`
}

// Repository defines persistence operations for sales.
type Repository interface {
	Create(ctx context.Context, s *Sale, productIDs []string) error
	GetByID(ctx context.Context, id string) (*Sale, error)
	List(ctx context.Context) ([]Sale, error)
	// ListActive returns active sales whose window contains now.
	ListActive(ctx context.Context, now time.Time) ([]Sale, error)
	// Update stores s. When productIDs is non-nil the product links are
	// replaced by it.
	Update(ctx context.Context, s *Sale, productIDs []string) error
	Delete(ctx context.Context, id string) error
	// ActiveForProduct returns the active sales linked to productID whose
	// window contains now, oldest first.
	ActiveForProduct(ctx context.Context, productID string, now time.Time) ([]Sale, error)
}

// ProductLookup reads the products sales refer to.
type ProductLookup interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]product.Product, error)
}
