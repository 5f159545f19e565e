package product

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
)

var (
	ErrNotFound            = apperr.NotFound("Product not found")
	ErrSKUTaken            = apperr.Conflict("Product with this SKU already exists")
	ErrImageNotFound       = apperr.NotFound("Image not found")
	ErrVariantNotFound     = apperr.NotFound("Variant not found")
	ErrVariantSKUTaken     = apperr.Conflict("Variant with this SKU already exists")
	ErrCategoryNotFound    = apperr.NotFound("Category not found")
	ErrSubcategoryNotFound = apperr.NotFound("Subcategory not found")
	ErrCollectionNotFound  = apperr.NotFound("Collection not found")

	// ErrColorSizeRequired is returned when a product has variants but the
	// line does not name one.
	ErrColorSizeRequired = apperr.BadRequest("Color and size are required for this product")
	// ErrNoSuchVariant is returned when color and size match no variant.
	ErrNoSuchVariant = apperr.BadRequest("Product variant not found")
)

// Product represents a catalog item available for purchase.
type Product struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Description   string              `json:"description"`
	Price         decimal.Decimal     `json:"price"`
	Stock         int                 `json:"stock"`
	SKU           string              `json:"sku"`
	CategoryID    string              `json:"categoryId"`
	SubcategoryID *string             `json:"subcategoryId"`
	CollectionID  *string             `json:"collectionId"`
	IsActive      bool                `json:"isActive"`
	IsFeatured    bool                `json:"isFeatured"`
	IsOnSale      bool                `json:"isOnSale"`
	SalePrice     decimal.NullDecimal `json:"salePrice"`
	SaleBadge     *string             `json:"saleBadge"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`

	Category    *Ref      `json:"category,omitempty"`
	Subcategory *Ref      `json:"subcategory,omitempty"`
	Collection  *Ref      `json:"collection,omitempty"`
	Images      []Image   `json:"images"`
	Variants    []Variant `json:"variants"`
}

// Ref is a lightweight id/name projection of a related entity.
type Ref struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Image is an ordered product picture, optionally tagged with a color.
type Image struct {
	ID        string  `json:"id"`
	ProductID string  `json:"productId"`
	URL       string  `json:"url"`
	Color     *string `json:"color"`
	IsMain    bool    `json:"isMain"`
	Order     int     `json:"order"`
}

// Variant is a color and size combination with its own stock.
type Variant struct {
	ID        string              `json:"id"`
	ProductID string              `json:"productId"`
	Color     string              `json:"color"`
	Size      string              `json:"size"`
	Stock     int                 `json:"stock"`
	Price     decimal.NullDecimal `json:"price"`
	SKU       *string             `json:"sku"`
}

// Summary is the projection of a product embedded in other resources.
type Summary struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	MainImage *string         `json:"mainImage,omitempty"`
}

// Card is the product projection embedded in cart rows and favorites.
type Card struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Price     decimal.Decimal     `json:"price"`
	SalePrice decimal.NullDecimal `json:"salePrice"`
	IsOnSale  bool                `json:"isOnSale"`
	IsActive  bool                `json:"isActive"`
	Stock     int                 `json:"stock"`
	MainImage *string             `json:"mainImage"`
	Category  *Ref                `json:"category,omitempty"`
}

// EffectivePrice returns the sale price when the product is on sale and has
// one, otherwise the regular price.
func (c *Card) EffectivePrice() decimal.Decimal {
	if c.IsOnSale && c.SalePrice.Valid {
		return c.SalePrice.Decimal
	}
	return c.Price
}

// EffectivePrice returns the sale price when the product is on sale and has
// one, otherwise the regular price.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.IsOnSale && p.SalePrice.Valid {
		return p.SalePrice.Decimal
	}
	return p.Price
}

// HasVariants reports whether stock is tracked per variant.
func (p *Product) HasVariants() bool {
	return len(p.Variants) > 0
}

// FindVariant matches color and size case-insensitively, ignoring
// surrounding whitespace.
func (p *Product) FindVariant(color, size string) (*Variant, bool) {
	c := normalizeOption(color)
	s := normalizeOption(size)
	for i := range p.Variants {
		v := &p.Variants[i]
		if normalizeOption(v.Color) == c && normalizeOption(v.Size) == s {
			return v, true
		}
	}
	return nil, false
}

// ResolveStock returns the stock that governs a line for this product. When
// the product has variants, color and size are required and must match one;
// the matched variant is returned alongside its stock.
func (p *Product) ResolveStock(color, size string) (int, *Variant, error) {
	if !p.HasVariants() {
		return p.Stock, nil, nil
	}
	if strings.TrimSpace(color) == "" || strings.TrimSpace(size) == "" {
		return 0, nil, ErrColorSizeRequired
	}
	v, ok := p.FindVariant(color, size)
	if !ok {
		return 0, nil, ErrNoSuchVariant
	}
	return v.Stock, v, nil
}

// MainImageURL returns the first main image, falling back to the first image.
func (p *Product) MainImageURL() *string {
	for i := range p.Images {
		if p.Images[i].IsMain {
			return &p.Images[i].URL
		}
	}
	if len(p.Images) > 0 {
		return &p.Images[0].URL
	}
	return nil
}

// Summary returns the embedded projection of p.
func (p *Product) Summary() Summary {
	return Summary{ID: p.ID, Name: p.Name, Price: p.Price, MainImage: p.MainImageURL()}
}

// ImagesByColor returns the images tagged with color (case-insensitive). When
// none match it returns the main images.
func (p *Product) ImagesByColor(color string) []Image {
	want := strings.ToLower(color)
	var out []Image
	for _, img := range p.Images {
		if img.Color != nil && strings.ToLower(*img.Color) == want {
			out = append(out, img)
		}
	}
	if len(out) > 0 {
		return out
	}
	out = []Image{}
	for _, img := range p.Images {
		if img.IsMain {
			out = append(out, img)
		}
	}
	return out
}

// AvailableColors returns the distinct colors present in variants and images,
// variants first.
func (p *Product) AvailableColors() []string {
	seen := make(map[string]struct{})
	out := []string{}
	add := func(c string) {
		if c == "" {
			return
		}
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	for _, v := range p.Variants {
		add(v.Color)
	}
	for _, img := range p.Images {
		if img.Color != nil {
			add(*img.Color)
		}
	}
	return out
}

func normalizeOption(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SortField is a column products can be ordered by.
type SortField string

const (
	SortByName      SortField = "name"
	SortByPrice     SortField = "price"
	SortByCreatedAt SortField = "createdAt"
	SortByUpdatedAt SortField = "updatedAt"
)

// Filter narrows and pages a product listing.
type Filter struct {
	CategoryID    string              `json:"categoryId,omitempty"`
	SubcategoryID string              `json:"subcategoryId,omitempty"`
	CollectionID  string              `json:"collectionId,omitempty"`
	IsActive      *bool               `json:"isActive,omitempty"`
	IsFeatured    *bool               `json:"isFeatured,omitempty"`
	IsOnSale      *bool               `json:"isOnSale,omitempty"`
	Search        string              `json:"search,omitempty"`
	MinPrice      decimal.NullDecimal `json:"minPrice"`
	MaxPrice      decimal.NullDecimal `json:"maxPrice"`
	Page          int                 `json:"page,omitempty"`
	Limit         int                 `json:"limit,omitempty"`
	Offset        *int                `json:"offset,omitempty"`
	SortBy        SortField           `json:"sortBy,omitempty"`
	SortDesc      bool                `json:"sortDesc,omitempty"`
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Normalize applies paging defaults and bounds.
func (f *Filter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset != nil && *f.Offset < 0 {
		zero := 0
		f.Offset = &zero
	}
	switch f.SortBy {
	case SortByName, SortByPrice, SortByCreatedAt, SortByUpdatedAt:
	default:
		f.SortBy = SortByCreatedAt
	}
}

// Skip returns the number of rows to skip.
func (f *Filter) Skip() int {
	if f.Offset != nil {
		return *f.Offset
	}
	return (f.Page - 1) * f.Limit
}

// Page is one page of a product listing.
type Page struct {
	Data       []Product  `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Pagination describes the position of a Page.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	List(ctx context.Context, f Filter) ([]Product, int, error)
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error

	AddImages(ctx context.Context, productID string, images []Image) ([]Image, error)
	DeleteImage(ctx context.Context, productID, imageID string) error
	AddVariant(ctx context.Context, v *Variant) error
	DeleteVariant(ctx context.Context, productID, variantID string) error
}

// References checks the catalog entities a product points at.
type References interface {
	CategoryExists(ctx context.Context, id string) (bool, error)
	SubcategoryExists(ctx context.Context, id string) (bool, error)
	CollectionExists(ctx context.Context, id string) (bool, error)
}
