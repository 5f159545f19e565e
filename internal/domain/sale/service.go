package sale

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/product"
)

var hundred = decimal.NewFromInt(100)

// Input holds sale fields. On update nil fields are left unchanged and a nil
// ProductIDs keeps the existing links.
type Input struct {
	Name            *string
	Description     *string
	DiscountType    *DiscountType
	DiscountValue   *decimal.Decimal
	StartDate       *time.Time
	EndDate         *time.Time
	IsActive        *bool
	MinimumOrder    *decimal.Decimal
	MaximumDiscount *decimal.Decimal
	ProductIDs      []string
}

// Service implements sale management and discount selection.
type Service struct {
	sales    Repository
	products ProductLookup
	now      func() time.Time
}

// NewService creates a sale Service.
func NewService(sales Repository, products ProductLookup) *Service {
	return &Service{sales: sales, products: products, now: time.Now}
}

// Create validates and stores a sale with its product links.
func (s *Service) Create(ctx context.Context, in Input) (*Sale, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, apperr.BadRequest("name is required")
	}
	if in.DiscountType == nil || !in.DiscountType.Valid() {
		return nil, ErrInvalidType
	}
	if in.DiscountValue == nil {
		return nil, apperr.BadRequest("discountValue is required")
	}
	if in.StartDate == nil || in.EndDate == nil {
		return nil, apperr.BadRequest("startDate and endDate are required")
	}
	if !in.StartDate.Before(*in.EndDate) {
		return nil, ErrInvalidWindow
	}
	if err := s.checkProducts(ctx, in.ProductIDs); err != nil {
		return nil, err
	}

	sl := &Sale{
		ID:            uuid.NewString(),
		Name:          strings.TrimSpace(*in.Name),
		Description:   in.Description,
		DiscountType:  *in.DiscountType,
		DiscountValue: *in.DiscountValue,
		StartDate:     *in.StartDate,
		EndDate:       *in.EndDate,
		IsActive:      in.IsActive == nil || *in.IsActive,
	}
	if in.MinimumOrder != nil {
		sl.MinimumOrder = decimal.NewNullDecimal(*in.MinimumOrder)
	}
	if in.MaximumDiscount != nil {
		sl.MaximumDiscount = decimal.NewNullDecimal(*in.MaximumDiscount)
	}

	if err := s.sales.Create(ctx, sl, in.ProductIDs); err != nil {
		return nil, errors.Wrap(err, "create sale")
	}
	return s.sales.GetByID(ctx, sl.ID)
}

func (s *Service) FindAll(ctx context.Context) ([]Sale, error) {
	return s.sales.List(ctx)
}

// FindActive lists the sales running now.
func (s *Service) FindActive(ctx context.Context) ([]Sale, error) {
	return s.sales.ListActive(ctx, s.now())
}

func (s *Service) FindOne(ctx context.Context, id string) (*Sale, error) {
	return s.sales.GetByID(ctx, id)
}

// Update merges in into the stored sale. The merged window must still be
// valid.
func (s *Service) Update(ctx context.Context, id string, in Input) (*Sale, error) {
	sl, err := s.sales.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, apperr.BadRequest("name is required")
		}
		sl.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		sl.Description = in.Description
	}
	if in.DiscountType != nil {
		if !in.DiscountType.Valid() {
			return nil, ErrInvalidType
		}
		sl.DiscountType = *in.DiscountType
	}
	if in.DiscountValue != nil {
		sl.DiscountValue = *in.DiscountValue
	}
	if in.StartDate != nil {
		sl.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		sl.EndDate = *in.EndDate
	}
	if !sl.StartDate.Before(sl.EndDate) {
		return nil, ErrInvalidWindow
	}
	if in.IsActive != nil {
		sl.IsActive = *in.IsActive
	}
	if in.MinimumOrder != nil {
		sl.MinimumOrder = decimal.NewNullDecimal(*in.MinimumOrder)
	}
	if in.MaximumDiscount != nil {
		sl.MaximumDiscount = decimal.NewNullDecimal(*in.MaximumDiscount)
	}
	if err := s.checkProducts(ctx, in.ProductIDs); err != nil {
		return nil, err
	}

	if err := s.sales.Update(ctx, sl, in.ProductIDs); err != nil {
		return nil, errors.Wrap(err, "update sale")
	}
	return s.sales.GetByID(ctx, id)
}

func (s *Service) Remove(ctx context.Context, id string) error {
	return s.sales.Delete(ctx, id)
}

// CalculateDiscount picks the largest discount, in percent, among the sales
// running now for productID. Sales whose minimum order exceeds orderAmount
// are skipped; a nil orderAmount skips none. Fixed discounts are converted
// to a percentage of the current product price. On ties the oldest sale
// wins.
func (s *Service) CalculateDiscount(ctx context.Context, productID string, orderAmount *decimal.Decimal) (Discount, error) {
	candidates, err := s.sales.ActiveForProduct(ctx, productID, s.now())
	if err != nil {
		return Discount{}, errors.Wrap(err, "list active sales")
	}
	best := Discount{Discount: decimal.Zero}
	if len(candidates) == 0 {
		return best, nil
	}

	var price *decimal.Decimal
	for i := range candidates {
		sl := &candidates[i]
		if sl.MinimumOrder.Valid && orderAmount != nil && orderAmount.LessThan(sl.MinimumOrder.Decimal) {
			continue
		}

		var discount decimal.Decimal
		switch sl.DiscountType {
		case Percentage:
			discount = sl.DiscountValue
		case Fixed:
			if price == nil {
				p, err := s.currentPrice(ctx, productID)
				if err != nil {
					return Discount{}, err
				}
				price = &p
			}
			if price.IsPositive() {
				discount = sl.DiscountValue.Div(*price).Mul(hundred).Round(2)
			}
		}

		if sl.MaximumDiscount.Valid && discount.GreaterThan(sl.MaximumDiscount.Decimal) {
			discount = sl.MaximumDiscount.Decimal
		}
		if discount.GreaterThan(best.Discount) {
			id := sl.ID
			best = Discount{Discount: discount, SaleID: &id}
		}
	}
	return best, nil
}

func (s *Service) currentPrice(ctx context.Context, productID string) (decimal.Decimal, error) {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, errors.Wrap(err, "get product price")
	}
	return p.Price, nil
}

func (s *Service) checkProducts(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	unique := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		unique[id] = struct{}{}
	}
	found, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "get products")
	}
	if len(found) != len(unique) {
		return ErrProductsNotFound
	}
	return nil
}
