package cart

import (
	"context"
	"time"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/domain/product"
)

var (
	ErrItemNotFound       = apperr.NotFound("Cart item not found")
	ErrProductUnavailable = apperr.BadRequest("Product is not available")
	ErrInsufficientStock  = apperr.BadRequest("Insufficient stock")
	ErrInvalidQuantity    = apperr.BadRequest("quantity must be at least 1")
)

// Item is one cart row: a product, optionally narrowed to a color and size.
type Item struct {
	ID        string        `json:"id"`
	UserID    int64         `json:"userId"`
	ProductID string        `json:"productId"`
	Quantity  int           `json:"quantity"`
	Color     string        `json:"color,omitempty"`
	Size      string        `json:"size,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Product   *product.Card `json:"product,omitempty"`
}

// View is a priced cart.
type View struct {
	Items   []Item          `json:"items"`
	Summary pricing.Summary `json:"summary"`
}

// Repository defines persistence operations for cart rows. Reads embed the
// product projection.
type Repository interface {
	// Find returns the row for the exact (user, product, color, size) key.
	Find(ctx context.Context, userID int64, productID, color, size string) (*Item, error)
	GetByID(ctx context.Context, userID int64, id string) (*Item, error)
	Create(ctx context.Context, it *Item) error
	UpdateQuantity(ctx context.Context, userID int64, id string, quantity int) error
	ListByUser(ctx context.Context, userID int64) ([]Item, error)
	Delete(ctx context.Context, userID int64, id string) error
	Clear(ctx context.Context, userID int64) error
	Count(ctx context.Context, userID int64) (int, error)
}
