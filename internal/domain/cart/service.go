package cart

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/domain/product"
)

// AddInput is a request to put a product in the cart.
type AddInput struct {
	ProductID string
	Quantity  int
	Color     string
	Size      string
}

// Service implements the per-user shopping cart.
type Service struct {
	items    Repository
	products product.Repository
}

// NewService creates a cart Service. Products are read from the repository
// directly so stock checks never see cached values.
func NewService(items Repository, products product.Repository) *Service {
	return &Service{items: items, products: products}
}

// AddItem adds quantity of a product to the cart, merging with an existing
// row for the same color and size.
func (s *Service) AddItem(ctx context.Context, userID int64, in AddInput) (*Item, error) {
	if in.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	p, err := s.products.GetByID(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, ErrProductUnavailable
	}

	available, variant, err := p.ResolveStock(in.Color, in.Size)
	if err != nil {
		return nil, err
	}
	if available < in.Quantity {
		return nil, ErrInsufficientStock
	}

	color, size := strings.TrimSpace(in.Color), strings.TrimSpace(in.Size)
	if variant != nil {
		color, size = variant.Color, variant.Size
	}

	existing, err := s.items.Find(ctx, userID, p.ID, color, size)
	switch {
	case err == nil:
		quantity := existing.Quantity + in.Quantity
		if available < quantity {
			return nil, ErrInsufficientStock
		}
		if err := s.items.UpdateQuantity(ctx, userID, existing.ID, quantity); err != nil {
			return nil, errors.Wrap(err, "update cart item")
		}
		return s.items.GetByID(ctx, userID, existing.ID)
	case errors.Is(err, ErrItemNotFound):
	default:
		return nil, errors.Wrap(err, "find cart item")
	}

	it := &Item{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProductID: p.ID,
		Quantity:  in.Quantity,
		Color:     color,
		Size:      size,
	}
	if err := s.items.Create(ctx, it); err != nil {
		return nil, errors.Wrap(err, "create cart item")
	}
	return s.items.GetByID(ctx, userID, it.ID)
}

// FindByUser returns the cart with its price summary.
func (s *Service) FindByUser(ctx context.Context, userID int64) (*View, error) {
	items, err := s.items.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list cart items")
	}
	if items == nil {
		items = []Item{}
	}
	lines := make([]pricing.Line, 0, len(items))
	for _, it := range items {
		if it.Product == nil {
			continue
		}
		lines = append(lines, pricing.Line{UnitPrice: it.Product.EffectivePrice(), Quantity: it.Quantity})
	}
	return &View{Items: items, Summary: pricing.Calculate(lines)}, nil
}

// UpdateItem sets the quantity of a cart row. The stock check uses the
// variant stock when the row names a variant.
func (s *Service) UpdateItem(ctx context.Context, userID int64, id string, quantity int) (*Item, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	it, err := s.items.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	p, err := s.products.GetByID(ctx, it.ProductID)
	if err != nil {
		return nil, err
	}

	available := p.Stock
	if v, ok := p.FindVariant(it.Color, it.Size); ok && p.HasVariants() {
		available = v.Stock
	}
	if available < quantity {
		return nil, ErrInsufficientStock
	}

	if err := s.items.UpdateQuantity(ctx, userID, id, quantity); err != nil {
		return nil, errors.Wrap(err, "update cart item")
	}
	return s.items.GetByID(ctx, userID, id)
}

// RemoveItem deletes one row from the user's cart.
func (s *Service) RemoveItem(ctx context.Context, userID int64, id string) error {
	return s.items.Delete(ctx, userID, id)
}

// Clear empties the user's cart.
func (s *Service) Clear(ctx context.Context, userID int64) error {
	return s.items.Clear(ctx, userID)
}

// Count returns the total quantity across the user's cart.
func (s *Service) Count(ctx context.Context, userID int64) (int, error) {
	return s.items.Count(ctx, userID)
}
