package category

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/apperr"
)

// ProductCache drops cached catalog entries after products change.
type ProductCache interface {
	Invalidate(ctx context.Context, ids ...string)
}

// Input holds the writable fields of a category or subcategory. Nil fields
// are left unchanged on update.
type Input struct {
	Name        *string
	Description *string
	Image       *string
	IsActive    *bool
	CategoryID  *string
}

// Service implements category and subcategory management.
type Service struct {
	categories    Repository
	subcategories SubcategoryRepository
	products      ProductCache
}

// NewService creates a category Service.
func NewService(categories Repository, subcategories SubcategoryRepository, products ProductCache) *Service {
	return &Service{categories: categories, subcategories: subcategories, products: products}
}

// Create adds a category.
func (s *Service) Create(ctx context.Context, in Input) (*Category, error) {
	name, err := requireName(in.Name)
	if err != nil {
		return nil, err
	}
	c := &Category{
		ID:          uuid.NewString(),
		Name:        name,
		Description: in.Description,
		Image:       in.Image,
		IsActive:    in.IsActive == nil || *in.IsActive,
	}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create category")
	}
	return c, nil
}

// FindAll lists categories with their subcategories and product summaries.
func (s *Service) FindAll(ctx context.Context) ([]Category, error) {
	return s.categories.List(ctx)
}

// FindOne returns a category with its subcategories and products.
func (s *Service) FindOne(ctx context.Context, id string) (*Category, error) {
	return s.categories.GetByID(ctx, id)
}

// Update applies in to the category.
func (s *Service) Update(ctx context.Context, id string, in Input) (*Category, error) {
	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name, err := requireName(in.Name)
		if err != nil {
			return nil, err
		}
		c.Name = name
	}
	if in.Description != nil {
		c.Description = in.Description
	}
	if in.Image != nil {
		c.Image = in.Image
	}
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
	if err := s.categories.Update(ctx, c); err != nil {
		return nil, errors.Wrap(err, "update category")
	}
	return c, nil
}

// SetImage points the category image at url.
func (s *Service) SetImage(ctx context.Context, id, url string) (*Category, error) {
	return s.Update(ctx, id, Input{Image: &url})
}

// Remove deletes the category together with its subcategories and products.
// Any failure of the cascade is reported as a conflict.
func (s *Service) Remove(ctx context.Context, id string) error {
	if _, err := s.categories.GetByID(ctx, id); err != nil {
		return err
	}
	removed, err := s.categories.Delete(ctx, id)
	if err != nil {
		return apperr.Conflict("Cannot delete category. There may be complex relationships preventing deletion. " +
			"Please try deleting the products individually first. Error: " + err.Error())
	}
	s.products.Invalidate(ctx, removed...)
	return nil
}

// CreateSubcategory adds a subcategory to an existing category.
func (s *Service) CreateSubcategory(ctx context.Context, in Input) (*Subcategory, error) {
	name, err := requireName(in.Name)
	if err != nil {
		return nil, err
	}
	if in.CategoryID == nil {
		return nil, apperr.BadRequest("categoryId is required")
	}
	if _, err := s.categories.GetByID(ctx, *in.CategoryID); err != nil {
		return nil, err
	}
	sub := &Subcategory{
		ID:          uuid.NewString(),
		Name:        name,
		Description: in.Description,
		Image:       in.Image,
		CategoryID:  *in.CategoryID,
		IsActive:    in.IsActive == nil || *in.IsActive,
	}
	if err := s.subcategories.Create(ctx, sub); err != nil {
		return nil, errors.Wrap(err, "create subcategory")
	}
	return sub, nil
}

// FindAllSubcategories lists every subcategory with its parent.
func (s *Service) FindAllSubcategories(ctx context.Context) ([]Subcategory, error) {
	return s.subcategories.List(ctx)
}

// FindSubcategoriesByCategory lists the subcategories of one category.
func (s *Service) FindSubcategoriesByCategory(ctx context.Context, categoryID string) ([]Subcategory, error) {
	return s.subcategories.ListByCategory(ctx, categoryID)
}

// FindSubcategory returns a subcategory with its parent and products.
func (s *Service) FindSubcategory(ctx context.Context, id string) (*Subcategory, error) {
	return s.subcategories.GetByID(ctx, id)
}

// UpdateSubcategory applies in to the subcategory. A new parent must exist.
func (s *Service) UpdateSubcategory(ctx context.Context, id string, in Input) (*Subcategory, error) {
	sub, err := s.subcategories.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.CategoryID != nil {
		if _, err := s.categories.GetByID(ctx, *in.CategoryID); err != nil {
			return nil, err
		}
		sub.CategoryID = *in.CategoryID
	}
	if in.Name != nil {
		name, err := requireName(in.Name)
		if err != nil {
			return nil, err
		}
		sub.Name = name
	}
	if in.Description != nil {
		sub.Description = in.Description
	}
	if in.Image != nil {
		sub.Image = in.Image
	}
	if in.IsActive != nil {
		sub.IsActive = *in.IsActive
	}
	if err := s.subcategories.Update(ctx, sub); err != nil {
		return nil, errors.Wrap(err, "update subcategory")
	}
	return sub, nil
}

// RemoveSubcategory deletes a subcategory that has no products.
func (s *Service) RemoveSubcategory(ctx context.Context, id string) error {
	if _, err := s.subcategories.GetByID(ctx, id); err != nil {
		return err
	}
	n, err := s.subcategories.CountProducts(ctx, id)
	if err != nil {
		return errors.Wrap(err, "count subcategory products")
	}
	if n > 0 {
		return apperr.Conflict(fmt.Sprintf("Cannot delete subcategory. There are %d product(s) associated "+
			"with this subcategory. Please move or delete the products first.", n))
	}
	return s.subcategories.Delete(ctx, id)
}

func requireName(name *string) (string, error) {
	if name == nil || strings.TrimSpace(*name) == "" {
		return "", apperr.BadRequest("name is required")
	}
	return strings.TrimSpace(*name), nil
}
