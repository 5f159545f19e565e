package product

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/cache"
)

// --- Mock implementations ---

type mockRepo struct {
	byID      map[string]*Product
	getCalls  int
	listCalls int
	created   *Product
	updated   *Product
	deleted   []string
}

func newMockRepo(products ...Product) *mockRepo {
	m := &mockRepo{byID: make(map[string]*Product)}
	for i := range products {
		p := products[i]
		m.byID[p.ID] = &p
	}
	return m
}

func (m *mockRepo) Create(_ context.Context, p *Product) error {
	m.created = p
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*Product, error) {
	m.getCalls++
	p, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) GetByIDs(_ context.Context, ids []string) ([]Product, error) {
	var out []Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockRepo) List(_ context.Context, f Filter) ([]Product, int, error) {
	m.listCalls++
	var out []Product
	for _, p := range m.byID {
		if f.CategoryID != "" && p.CategoryID != f.CategoryID {
			continue
		}
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (m *mockRepo) Update(_ context.Context, p *Product) error {
	m.updated = p
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockRepo) AddImages(_ context.Context, productID string, images []Image) ([]Image, error) {
	p := m.byID[productID]
	p.Images = append(p.Images, images...)
	return images, nil
}

func (m *mockRepo) DeleteImage(_ context.Context, productID, imageID string) error {
	p := m.byID[productID]
	for i, img := range p.Images {
		if img.ID == imageID {
			p.Images = append(p.Images[:i], p.Images[i+1:]...)
			return nil
		}
	}
	return ErrImageNotFound
}

func (m *mockRepo) AddVariant(_ context.Context, v *Variant) error {
	p := m.byID[v.ProductID]
	p.Variants = append(p.Variants, *v)
	return nil
}

func (m *mockRepo) DeleteVariant(_ context.Context, productID, variantID string) error {
	p := m.byID[productID]
	for i, v := range p.Variants {
		if v.ID == variantID {
			p.Variants = append(p.Variants[:i], p.Variants[i+1:]...)
			return nil
		}
	}
	return ErrVariantNotFound
}

type mockRefs struct {
	categories   map[string]bool
	subcategores map[string]bool
	collections  map[string]bool
}

func (m mockRefs) CategoryExists(_ context.Context, id string) (bool, error) {
	return m.categories[id], nil
}

func (m mockRefs) SubcategoryExists(_ context.Context, id string) (bool, error) {
	return m.subcategores[id], nil
}

func (m mockRefs) CollectionExists(_ context.Context, id string) (bool, error) {
	return m.collections[id], nil
}

// --- Helpers ---

func strPtr(s string) *string { return &s }

func testRefs() mockRefs {
	return mockRefs{
		categories:   map[string]bool{"cat-1": true},
		subcategores: map[string]bool{"sub-1": true},
		collections:  map[string]bool{"col-1": true},
	}
}

func newTestService(t *testing.T, repo *mockRepo) (*Service, *cache.Memory) {
	t.Helper()
	mem := cache.NewMemory(context.Background(), 0, false)
	t.Cleanup(mem.Close)
	return NewService(repo, testRefs(), mem), mem
}

func shirt() Product {
	return Product{
		ID:         "p1",
		Name:       "Shirt",
		Price:      decimal.RequireFromString("25.00"),
		Stock:      4,
		SKU:        "SHIRT-1",
		CategoryID: "cat-1",
		IsActive:   true,
		Images: []Image{
			{ID: "i1", URL: "/uploads/products/main.jpg", IsMain: true},
			{ID: "i2", URL: "/uploads/products/red.jpg", Color: strPtr("Red"), Order: 1},
			{ID: "i3", URL: "/uploads/products/blue.jpg", Color: strPtr("Blue"), Order: 2},
		},
		Variants: []Variant{
			{ID: "v1", ProductID: "p1", Color: "Red", Size: "M", Stock: 3},
			{ID: "v2", ProductID: "p1", Color: "Green", Size: "L", Stock: 0},
		},
	}
}

// --- Tests ---

func TestCreate_GeneratesSKUAndImageOrder(t *testing.T) {
	repo := newMockRepo()
	svc, _ := newTestService(t, repo)
	svc.now = func() time.Time { return time.UnixMilli(1700000000123) }

	p, err := svc.Create(context.Background(), CreateInput{
		Name:       "Mug",
		Price:      decimal.RequireFromString("7.50"),
		Stock:      10,
		CategoryID: "cat-1",
		Images: []ImageInput{
			{URL: "a.jpg", IsMain: true},
			{URL: "b.jpg"},
			{URL: "c.jpg", Order: func() *int { v := 9; return &v }()},
		},
		Variants: []VariantInput{{Color: " Red ", Size: "S", Stock: 2}},
	})
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^PROD-1700000000123-[0-9A-Z]{5}$`), p.SKU)
	assert.True(t, p.IsActive)
	require.Len(t, p.Images, 3)
	assert.Equal(t, 0, p.Images[0].Order)
	assert.Equal(t, 1, p.Images[1].Order)
	assert.Equal(t, 9, p.Images[2].Order)
	require.Len(t, p.Variants, 1)
	assert.Equal(t, "Red", p.Variants[0].Color)
}

func TestCreate_References(t *testing.T) {
	tests := []struct {
		name string
		in   CreateInput
		want error
	}{
		{
			name: "missing category",
			in:   CreateInput{Name: "x", CategoryID: "nope"},
			want: ErrCategoryNotFound,
		},
		{
			name: "missing subcategory",
			in:   CreateInput{Name: "x", CategoryID: "cat-1", SubcategoryID: strPtr("nope")},
			want: ErrSubcategoryNotFound,
		},
		{
			name: "missing collection",
			in:   CreateInput{Name: "x", CategoryID: "cat-1", CollectionID: strPtr("nope")},
			want: ErrCollectionNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, newMockRepo())
			_, err := svc.Create(context.Background(), tt.in)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreate_KeepsExplicitSKU(t *testing.T) {
	svc, _ := newTestService(t, newMockRepo())
	p, err := svc.Create(context.Background(), CreateInput{Name: "x", SKU: " OWN-1 ", CategoryID: "cat-1"})
	require.NoError(t, err)
	assert.Equal(t, "OWN-1", p.SKU)
}

func TestFindOne_CachesProduct(t *testing.T) {
	repo := newMockRepo(shirt())
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	first, err := svc.FindOne(ctx, "p1")
	require.NoError(t, err)
	second, err := svc.FindOne(ctx, "p1")
	require.NoError(t, err)

	assert.Equal(t, 1, repo.getCalls)
	assert.Equal(t, first.Name, second.Name)
	assert.True(t, first.Price.Equal(second.Price))
}

func TestFindOne_NotFound(t *testing.T) {
	svc, _ := newTestService(t, newMockRepo())
	_, err := svc.FindOne(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFindAll_CachesPerFilter(t *testing.T) {
	repo := newMockRepo(shirt())
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	page, err := svc.FindAll(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Pagination.Total)
	assert.Equal(t, 1, page.Pagination.TotalPages)
	assert.Equal(t, DefaultLimit, page.Pagination.Limit)

	_, err = svc.FindAll(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.listCalls)

	_, err = svc.FindAll(ctx, Filter{CategoryID: "other"})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls)
}

func TestUpdate_InvalidatesCache(t *testing.T) {
	repo := newMockRepo(shirt())
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	_, err := svc.FindOne(ctx, "p1")
	require.NoError(t, err)
	_, err = svc.FindAll(ctx, Filter{})
	require.NoError(t, err)

	price := decimal.RequireFromString("30.00")
	updated, err := svc.Update(ctx, "p1", Patch{Price: &price})
	require.NoError(t, err)
	assert.True(t, updated.Price.Equal(price))

	got, err := svc.FindOne(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(price))

	_, err = svc.FindAll(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls)
}

func TestUpdate_RechecksReferences(t *testing.T) {
	svc, _ := newTestService(t, newMockRepo(shirt()))
	_, err := svc.Update(context.Background(), "p1", Patch{CollectionID: strPtr("nope")})
	require.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestGetImagesByColor(t *testing.T) {
	svc, _ := newTestService(t, newMockRepo(shirt()))
	ctx := context.Background()

	red, err := svc.GetImagesByColor(ctx, "p1", "red")
	require.NoError(t, err)
	require.Len(t, red, 1)
	assert.Equal(t, "i2", red[0].ID)

	fallback, err := svc.GetImagesByColor(ctx, "p1", "purple")
	require.NoError(t, err)
	require.Len(t, fallback, 1)
	assert.Equal(t, "i1", fallback[0].ID)
}

func TestGetAvailableColors(t *testing.T) {
	svc, _ := newTestService(t, newMockRepo(shirt()))
	colors, err := svc.GetAvailableColors(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Red", "Green", "Blue"}, colors)
}

func TestAddImage_AppendsAfterExisting(t *testing.T) {
	svc, _ := newTestService(t, newMockRepo(shirt()))
	img, err := svc.AddImage(context.Background(), "p1", ImageInput{URL: "new.jpg"})
	require.NoError(t, err)
	assert.Equal(t, 3, img.Order)
	assert.Equal(t, "p1", img.ProductID)
}

func TestRemoveImage_NotFound(t *testing.T) {
	svc, _ := newTestService(t, newMockRepo(shirt()))
	err := svc.RemoveImage(context.Background(), "p1", "missing")
	require.ErrorIs(t, err, ErrImageNotFound)
}

func TestAddVariant_RequiresColorAndSize(t *testing.T) {
	svc, _ := newTestService(t, newMockRepo(shirt()))
	_, err := svc.AddVariant(context.Background(), "p1", VariantInput{Color: "Red"})
	require.Error(t, err)

	v, err := svc.AddVariant(context.Background(), "p1", VariantInput{Color: "Blue", Size: "S", Stock: 1})
	require.NoError(t, err)
	assert.NotEmpty(t, v.ID)
}

func TestRemove(t *testing.T) {
	repo := newMockRepo(shirt())
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	_, err := svc.FindOne(ctx, "p1")
	require.NoError(t, err)
	require.NoError(t, svc.Remove(ctx, "p1"))

	_, err = svc.FindOne(ctx, "p1")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{"p1"}, repo.deleted)
}

func TestResolveStock(t *testing.T) {
	p := shirt()
	tests := []struct {
		name        string
		color, size string
		wantStock   int
		wantErr     error
	}{
		{name: "variant match ignores case and spaces", color: " red ", size: "m", wantStock: 3},
		{name: "missing size", color: "Red", wantErr: ErrColorSizeRequired},
		{name: "unknown combination", color: "Red", size: "XL", wantErr: ErrNoSuchVariant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stock, _, err := p.ResolveStock(tt.color, tt.size)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStock, stock)
		})
	}

	plain := Product{Stock: 7}
	stock, v, err := plain.ResolveStock("", "")
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.Equal(t, 7, stock)
}

func TestEffectivePrice(t *testing.T) {
	p := Product{Price: decimal.NewFromInt(20), SalePrice: decimal.NewNullDecimal(decimal.NewFromInt(15))}
	assert.True(t, p.EffectivePrice().Equal(decimal.NewFromInt(20)))
	p.IsOnSale = true
	assert.True(t, p.EffectivePrice().Equal(decimal.NewFromInt(15)))
}
