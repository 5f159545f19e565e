// Package favorite keeps the per-user set of liked products.
package favorite

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/product"
)

var (
	ErrNotFound      = apperr.NotFound("Favorite not found")
	ErrAlreadyExists = apperr.Conflict("Product already in favorites")
)

// Favorite links a user to a product they liked.
type Favorite struct {
	ID        string        `json:"id"`
	UserID    int64         `json:"userId"`
	ProductID string        `json:"productId"`
	CreatedAt time.Time     `json:"createdAt"`
	Product   *product.Card `json:"product,omitempty"`
}

// Status answers whether a product is in the user's favorites.
type Status struct {
	IsFavorite bool `json:"isFavorite"`
}

// Repository defines persistence operations for favorites. Reads embed the
// product projection.
type Repository interface {
	// Create fails with ErrAlreadyExists when the pair is already stored.
	Create(ctx context.Context, f *Favorite) error
	GetByProduct(ctx context.Context, userID int64, productID string) (*Favorite, error)
	ListByUser(ctx context.Context, userID int64) ([]Favorite, error)
	DeleteByProduct(ctx context.Context, userID int64, productID string) error
	Delete(ctx context.Context, userID int64, id string) error
}

// ProductLookup checks that a product exists.
type ProductLookup interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
}

// Service implements favorites.
type Service struct {
	favorites Repository
	products  ProductLookup
}

func NewService(favorites Repository, products ProductLookup) *Service {
	return &Service{favorites: favorites, products: products}
}

// Add marks a product as favorite.
func (s *Service) Add(ctx context.Context, userID int64, productID string) (*Favorite, error) {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	f := &Favorite{ID: uuid.NewString(), UserID: userID, ProductID: productID}
	if err := s.favorites.Create(ctx, f); err != nil {
		return nil, errors.Wrap(err, "create favorite")
	}
	return s.favorites.GetByProduct(ctx, userID, productID)
}

func (s *Service) FindByUser(ctx context.Context, userID int64) ([]Favorite, error) {
	return s.favorites.ListByUser(ctx, userID)
}

// FindOne returns the favorite entry for a product.
func (s *Service) FindOne(ctx context.Context, userID int64, productID string) (*Favorite, error) {
	return s.favorites.GetByProduct(ctx, userID, productID)
}

func (s *Service) RemoveByProduct(ctx context.Context, userID int64, productID string) error {
	return s.favorites.DeleteByProduct(ctx, userID, productID)
}

func (s *Service) Remove(ctx context.Context, userID int64, id string) error {
	return s.favorites.Delete(ctx, userID, id)
}

func (s *Service) IsFavorite(ctx context.Context, userID int64, productID string) (Status, error) {
	_, err := s.favorites.GetByProduct(ctx, userID, productID)
	switch {
	case err == nil:
		return Status{IsFavorite: true}, nil
	case errors.Is(err, ErrNotFound):
		return Status{}, nil
	default:
		return Status{}, err
	}
}
