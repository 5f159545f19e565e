// Package collection manages curated product groupings that cut across
// categories.
package collection

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/product"
)

var (
	ErrNotFound  = apperr.NotFound("Collection not found")
	ErrNameTaken = apperr.Conflict("Collection with this name already exists")
)

// Collection is a curated set of products.
type Collection struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description *string           `json:"description"`
	Image       *string           `json:"image"`
	IsActive    bool              `json:"isActive"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	Products    []product.Summary `json:"products"`
}

// Repository defines persistence operations for collections.
type Repository interface {
	Create(ctx context.Context, c *Collection) error
	GetByID(ctx context.Context, id string) (*Collection, error)
	List(ctx context.Context) ([]Collection, error)
	Update(ctx context.Context, c *Collection) error
	// Delete removes the collection and detaches its products.
	Delete(ctx context.Context, id string) ([]string, error)
}

// ProductCache drops cached catalog entries after products change.
type ProductCache interface {
	Invalidate(ctx context.Context, ids ...string)
}

// Input holds the writable fields of a collection. Nil fields are left
// unchanged on update.
type Input struct {
	Name        *string
	Description *string
	Image       *string
	IsActive    *bool
}

// Service implements collection management.
type Service struct {
	repo     Repository
	products ProductCache
}

func NewService(repo Repository, products ProductCache) *Service {
	return &Service{repo: repo, products: products}
}

func (s *Service) Create(ctx context.Context, in Input) (*Collection, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, apperr.BadRequest("name is required")
	}
	c := &Collection{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(*in.Name),
		Description: in.Description,
		Image:       in.Image,
		IsActive:    in.IsActive == nil || *in.IsActive,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create collection")
	}
	return c, nil
}

func (s *Service) FindAll(ctx context.Context) ([]Collection, error) {
	return s.repo.List(ctx)
}

func (s *Service) FindOne(ctx context.Context, id string) (*Collection, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, id string, in Input) (*Collection, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, apperr.BadRequest("name is required")
		}
		c.Name = strings.TrimSpace(*in.Name)
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
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, errors.Wrap(err, "update collection")
	}
	return c, nil
}

// SetImage points the collection image at url.
func (s *Service) SetImage(ctx context.Context, id, url string) (*Collection, error) {
	return s.Update(ctx, id, Input{Image: &url})
}

// Remove deletes the collection. Its products stay in the catalog with the
// collection link cleared.
func (s *Service) Remove(ctx context.Context, id string) error {
	detached, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.products.Invalidate(ctx, detached...)
	return nil
}
