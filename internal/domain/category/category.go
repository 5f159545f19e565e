package category

import (
	"context"
	"time"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/product"
)

var (
	ErrNotFound             = apperr.NotFound("Category not found")
	ErrNameTaken            = apperr.Conflict("Category with this name already exists")
	ErrSubcategoryNotFound  = apperr.NotFound("Subcategory not found")
	ErrSubcategoryNameTaken = apperr.Conflict("Subcategory with this name already exists in this category")
)

// Category groups products at the top level of the catalog.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Image       *string   `json:"image"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	Subcategories []Subcategory     `json:"subcategories"`
	Products      []product.Summary `json:"products"`
}

// Subcategory is a named group of products inside a category.
type Subcategory struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Image       *string   `json:"image"`
	CategoryID  string    `json:"categoryId"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	Category *product.Ref      `json:"category,omitempty"`
	Products []product.Summary `json:"products,omitempty"`
}

// Repository defines persistence operations for categories.
type Repository interface {
	Create(ctx context.Context, c *Category) error
	// GetByID loads the category with its subcategories and products.
	GetByID(ctx context.Context, id string) (*Category, error)
	List(ctx context.Context) ([]Category, error)
	Update(ctx context.Context, c *Category) error
	// Delete removes the category, its subcategories, its products and every
	// row that depends on those products in one transaction. It returns the
	// ids of the removed products.
	Delete(ctx context.Context, id string) ([]string, error)
}

// SubcategoryRepository defines persistence operations for subcategories.
type SubcategoryRepository interface {
	Create(ctx context.Context, s *Subcategory) error
	GetByID(ctx context.Context, id string) (*Subcategory, error)
	List(ctx context.Context) ([]Subcategory, error)
	ListByCategory(ctx context.Context, categoryID string) ([]Subcategory, error)
	Update(ctx context.Context, s *Subcategory) error
	Delete(ctx context.Context, id string) error
	CountProducts(ctx context.Context, id string) (int, error)
}
