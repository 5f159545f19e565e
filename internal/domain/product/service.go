package product

import (
	"context"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/cache"
	"github.com/xenking/storefront/internal/domain/apperr"
)

const (
	DefaultProductTTL = 600 * time.Second
	DefaultListTTL    = 300 * time.Second
)

// CreateInput holds the fields of a new product.
type CreateInput struct {
	Name          string
	Description   string
	Price         decimal.Decimal
	Stock         int
	SKU           string
	CategoryID    string
	SubcategoryID *string
	CollectionID  *string
	IsActive      *bool
	IsFeatured    bool
	IsOnSale      bool
	SalePrice     decimal.NullDecimal
	SaleBadge     *string
	Images        []ImageInput
	Variants      []VariantInput
}

// ImageInput describes an image to attach. A nil Order is replaced by the
// image position.
type ImageInput struct {
	URL    string
	Color  *string
	IsMain bool
	Order  *int
}

// VariantInput describes a variant to attach.
type VariantInput struct {
	Color string
	Size  string
	Stock int
	Price decimal.NullDecimal
	SKU   *string
}

// Patch holds optional product changes. Nil fields are left unchanged.
type Patch struct {
	Name          *string
	Description   *string
	Price         *decimal.Decimal
	Stock         *int
	SKU           *string
	CategoryID    *string
	SubcategoryID *string
	CollectionID  *string
	IsActive      *bool
	IsFeatured    *bool
	IsOnSale      *bool
	SalePrice     *decimal.Decimal
	SaleBadge     *string
}

// Service implements the product catalog with a cache-aside read path.
type Service struct {
	repo       Repository
	refs       References
	cache      cache.Provider
	productTTL time.Duration
	listTTL    time.Duration
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTTL overrides the cache lifetimes of single products and listings.
func WithTTL(product, list time.Duration) Option {
	return func(s *Service) {
		if product > 0 {
			s.productTTL = product
		}
		if list > 0 {
			s.listTTL = list
		}
	}
}

// NewService creates a product Service. A nil cache disables caching.
func NewService(repo Repository, refs References, c cache.Provider, opts ...Option) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	s := &Service{
		repo:       repo,
		refs:       refs,
		cache:      c,
		productTTL: DefaultProductTTL,
		listTTL:    DefaultListTTL,
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create validates references, fills defaults and persists the product with
// its images and variants.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Product, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperr.BadRequest("name is required")
	}
	if in.Price.IsNegative() {
		return nil, apperr.BadRequest("price must not be negative")
	}
	if in.Stock < 0 {
		return nil, apperr.BadRequest("stock must not be negative")
	}
	if err := s.checkRefs(ctx, &in.CategoryID, in.SubcategoryID, in.CollectionID); err != nil {
		return nil, err
	}

	sku := strings.TrimSpace(in.SKU)
	if sku == "" {
		sku = s.generateSKU()
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	p := &Product{
		ID:            uuid.NewString(),
		Name:          strings.TrimSpace(in.Name),
		Description:   in.Description,
		Price:         in.Price,
		Stock:         in.Stock,
		SKU:           sku,
		CategoryID:    in.CategoryID,
		SubcategoryID: in.SubcategoryID,
		CollectionID:  in.CollectionID,
		IsActive:      active,
		IsFeatured:    in.IsFeatured,
		IsOnSale:      in.IsOnSale,
		SalePrice:     in.SalePrice,
		SaleBadge:     in.SaleBadge,
	}
	p.Images = buildImages(p.ID, in.Images, 0)
	for _, v := range in.Variants {
		if v.Stock < 0 {
			return nil, apperr.BadRequest("variant stock must not be negative")
		}
		p.Variants = append(p.Variants, Variant{
			ID:        uuid.NewString(),
			ProductID: p.ID,
			Color:     strings.TrimSpace(v.Color),
			Size:      strings.TrimSpace(v.Size),
			Stock:     v.Stock,
			Price:     v.Price,
			SKU:       v.SKU,
		})
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	s.Invalidate(ctx)
	return s.repo.GetByID(ctx, p.ID)
}

// FindAll returns one page of products matching f.
func (s *Service) FindAll(ctx context.Context, f Filter) (*Page, error) {
	f.Normalize()
	key := cache.ProductListKey(f)

	var cached Page
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	if items == nil {
		items = []Product{}
	}
	page := &Page{
		Data: items,
		Pagination: Pagination{
			Page:       f.Page,
			Limit:      f.Limit,
			Total:      total,
			TotalPages: (total + f.Limit - 1) / f.Limit,
		},
	}
	s.cacheSet(ctx, key, page, s.listTTL)
	return page, nil
}

// FindOne returns the product with its relations.
func (s *Service) FindOne(ctx context.Context, id string) (*Product, error) {
	key := cache.ProductKey(id)

	var cached Product
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, p, s.productTTL)
	return p, nil
}

// GetImagesByColor returns the images tagged with color, or the main images
// when none match.
func (s *Service) GetImagesByColor(ctx context.Context, id, color string) ([]Image, error) {
	p, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.ImagesByColor(color), nil
}

// GetAvailableColors returns the distinct colors of the product variants and
// images.
func (s *Service) GetAvailableColors(ctx context.Context, id string) ([]string, error) {
	p, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.AvailableColors(), nil
}

// Update applies patch to the product.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.CategoryID != nil || patch.SubcategoryID != nil || patch.CollectionID != nil {
		if err := s.checkRefs(ctx, patch.CategoryID, patch.SubcategoryID, patch.CollectionID); err != nil {
			return nil, err
		}
	}

	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return nil, apperr.BadRequest("name must not be empty")
		}
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		if patch.Price.IsNegative() {
			return nil, apperr.BadRequest("price must not be negative")
		}
		p.Price = *patch.Price
	}
	if patch.Stock != nil {
		if *patch.Stock < 0 {
			return nil, apperr.BadRequest("stock must not be negative")
		}
		p.Stock = *patch.Stock
	}
	if patch.SKU != nil && strings.TrimSpace(*patch.SKU) != "" {
		p.SKU = strings.TrimSpace(*patch.SKU)
	}
	if patch.CategoryID != nil {
		p.CategoryID = *patch.CategoryID
	}
	if patch.SubcategoryID != nil {
		p.SubcategoryID = patch.SubcategoryID
	}
	if patch.CollectionID != nil {
		p.CollectionID = patch.CollectionID
	}
	if patch.IsActive != nil {
		p.IsActive = *patch.IsActive
	}
	if patch.IsFeatured != nil {
		p.IsFeatured = *patch.IsFeatured
	}
	if patch.IsOnSale != nil {
		p.IsOnSale = *patch.IsOnSale
	}
	if patch.SalePrice != nil {
		p.SalePrice = decimal.NewNullDecimal(*patch.SalePrice)
	}
	if patch.SaleBadge != nil {
		p.SaleBadge = patch.SaleBadge
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, errors.Wrap(err, "update product")
	}
	s.Invalidate(ctx, id)
	return s.repo.GetByID(ctx, id)
}

// Remove deletes the product and every row that depends on it.
func (s *Service) Remove(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.Invalidate(ctx, id)
	return nil
}

// AddImage attaches one image. Without an explicit order the image is placed
// after the existing ones.
func (s *Service) AddImage(ctx context.Context, productID string, in ImageInput) (*Image, error) {
	p, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	added, err := s.repo.AddImages(ctx, productID, buildImages(productID, []ImageInput{in}, len(p.Images)))
	if err != nil {
		return nil, errors.Wrap(err, "add image")
	}
	s.Invalidate(ctx, productID)
	return &added[0], nil
}

// AddImages attaches several images, ordered by position when unset.
func (s *Service) AddImages(ctx context.Context, productID string, in []ImageInput) ([]Image, error) {
	if len(in) == 0 {
		return []Image{}, nil
	}
	if _, err := s.repo.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	added, err := s.repo.AddImages(ctx, productID, buildImages(productID, in, 0))
	if err != nil {
		return nil, errors.Wrap(err, "add images")
	}
	s.Invalidate(ctx, productID)
	return added, nil
}

// RemoveImage detaches an image from the product.
func (s *Service) RemoveImage(ctx context.Context, productID, imageID string) error {
	if err := s.repo.DeleteImage(ctx, productID, imageID); err != nil {
		return err
	}
	s.Invalidate(ctx, productID)
	return nil
}

// AddVariant attaches a color/size variant.
func (s *Service) AddVariant(ctx context.Context, productID string, in VariantInput) (*Variant, error) {
	if strings.TrimSpace(in.Color) == "" || strings.TrimSpace(in.Size) == "" {
		return nil, apperr.BadRequest("color and size are required")
	}
	if in.Stock < 0 {
		return nil, apperr.BadRequest("variant stock must not be negative")
	}
	if _, err := s.repo.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	v := &Variant{
		ID:        uuid.NewString(),
		ProductID: productID,
		Color:     strings.TrimSpace(in.Color),
		Size:      strings.TrimSpace(in.Size),
		Stock:     in.Stock,
		Price:     in.Price,
		SKU:       in.SKU,
	}
	if err := s.repo.AddVariant(ctx, v); err != nil {
		return nil, err
	}
	s.Invalidate(ctx, productID)
	return v, nil
}

// RemoveVariant detaches a variant from the product.
func (s *Service) RemoveVariant(ctx context.Context, productID, variantID string) error {
	if err := s.repo.DeleteVariant(ctx, productID, variantID); err != nil {
		return err
	}
	s.Invalidate(ctx, productID)
	return nil
}

// Invalidate drops the cached products with the given ids and every cached
// listing.
func (s *Service) Invalidate(ctx context.Context, ids ...string) {
	lg := zctx.From(ctx)
	if len(ids) > 0 {
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = cache.ProductKey(id)
		}
		if err := s.cache.Delete(ctx, keys...); err != nil {
			lg.Warn("Invalidate product cache", zap.Strings("ids", ids), zap.Error(err))
		}
	}
	if err := s.cache.DeletePrefix(ctx, cache.ProductListPrefix); err != nil {
		lg.Warn("Invalidate product listings", zap.Error(err))
	}
}

func (s *Service) cacheGet(ctx context.Context, key string, dst any) bool {
	ok, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		zctx.From(ctx).Warn("Cache read", zap.String("key", key), zap.Error(err))
		return false
	}
	return ok
}

func (s *Service) cacheSet(ctx context.Context, key string, value any, ttl time.Duration) {
	if err := s.cache.Set(ctx, key, value, ttl); err != nil {
		zctx.From(ctx).Warn("Cache write", zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) checkRefs(ctx context.Context, categoryID, subcategoryID, collectionID *string) error {
	if categoryID != nil {
		ok, err := s.refs.CategoryExists(ctx, *categoryID)
		if err != nil {
			return errors.Wrap(err, "check category")
		}
		if !ok {
			return ErrCategoryNotFound
		}
	}
	if subcategoryID != nil {
		ok, err := s.refs.SubcategoryExists(ctx, *subcategoryID)
		if err != nil {
			return errors.Wrap(err, "check subcategory")
		}
		if !ok {
			return ErrSubcategoryNotFound
		}
	}
	if collectionID != nil {
		ok, err := s.refs.CollectionExists(ctx, *collectionID)
		if err != nil {
			return errors.Wrap(err, "check collection")
		}
		if !ok {
			return ErrCollectionNotFound
		}
	}
	return nil
}

// skuSuffixSpace is 36^5, the number of 5 character base36 suffixes.
const skuSuffixSpace = 36 * 36 * 36 * 36 * 36

func (s *Service) generateSKU() string {
	suffix := strings.ToUpper(strconv.FormatInt(rand.Int64N(skuSuffixSpace), 36))
	suffix = strings.Repeat("0", 5-len(suffix)) + suffix
	return "PROD-" + strconv.FormatInt(s.now().UnixMilli(), 10) + "-" + suffix
}

func buildImages(productID string, in []ImageInput, base int) []Image {
	out := make([]Image, len(in))
	for i, img := range in {
		order := base + i
		if img.Order != nil {
			order = *img.Order
		}
		out[i] = Image{
			ID:        uuid.NewString(),
			ProductID: productID,
			URL:       img.URL,
			Color:     img.Color,
			IsMain:    img.IsMain,
			Order:     order,
		}
	}
	return out
}
