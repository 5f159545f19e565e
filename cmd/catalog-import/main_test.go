package main

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/product"
)

type fakeCreator struct {
	created []*product.Product
	errs    map[string]error
}

func (f *fakeCreator) Create(_ context.Context, p *product.Product) error {
	if err := f.errs[p.SKU]; err != nil {
		return err
	}
	f.created = append(f.created, p)
	return nil
}

func feed(recs ...record) <-chan record {
	ch := make(chan record, len(recs))
	for _, r := range recs {
		ch <- r
	}
	close(ch)
	return ch
}

func rec(sku string) record {
	return record{Name: "Item " + sku, SKU: sku, CategoryID: "cat-1", Price: decimal.NewFromInt(10), Images: []string{"/a.jpg", "/b.jpg"}}
}

func TestImportRecords(t *testing.T) {
	db := map[string]bool{"OLD-1": true}
	lookups := 0
	index := newSKUIndex(func(_ context.Context, sku string) (bool, error) {
		lookups++
		return db[sku], nil
	})
	index.add("OLD-1")

	creator := &fakeCreator{errs: map[string]error{
		"BAD-CAT": product.ErrCategoryNotFound,
		"RACE":    product.ErrSKUTaken,
	}}

	st, err := importRecords(context.Background(), creator, index,
		feed(rec("NEW-1"), rec("OLD-1"), rec("BAD-CAT"), rec("RACE"), rec("NEW-2")))
	require.NoError(t, err)

	assert.Equal(t, stats{inserted: 2, duplicates: 2, rejected: 1}, st)
	require.Len(t, creator.created, 2)
	assert.Equal(t, "NEW-1", creator.created[0].SKU)
	assert.Len(t, creator.created[0].Images, 2)
	assert.True(t, creator.created[0].Images[0].IsMain)
	assert.Equal(t, creator.created[0].ID, creator.created[0].Images[1].ProductID)
	assert.GreaterOrEqual(t, lookups, 1)
}

func TestImportRecords_WithinRunDuplicate(t *testing.T) {
	inserted := map[string]bool{}
	index := newSKUIndex(func(_ context.Context, sku string) (bool, error) {
		return inserted[sku], nil
	})
	creator := &fakeCreator{}

	records := make(chan record, 2)
	records <- rec("DUP")
	records <- rec("DUP")
	close(records)

	// Mirror the database: the first insert makes the SKU exist.
	wrapped := creatorFunc(func(ctx context.Context, p *product.Product) error {
		inserted[p.SKU] = true
		return creator.Create(ctx, p)
	})
	st, err := importRecords(context.Background(), wrapped, index, records)
	require.NoError(t, err)
	assert.Equal(t, stats{inserted: 1, duplicates: 1}, st)
}

type creatorFunc func(ctx context.Context, p *product.Product) error

func (f creatorFunc) Create(ctx context.Context, p *product.Product) error { return f(ctx, p) }

func TestRecordValidate(t *testing.T) {
	for _, tt := range []struct {
		name string
		mod  func(*record)
		ok   bool
	}{
		{name: "Valid", mod: func(*record) {}, ok: true},
		{name: "NoName", mod: func(r *record) { r.Name = " " }},
		{name: "NoSKU", mod: func(r *record) { r.SKU = "" }},
		{name: "NoCategory", mod: func(r *record) { r.CategoryID = "" }},
		{name: "NegativePrice", mod: func(r *record) { r.Price = decimal.NewFromInt(-1) }},
		{name: "NegativeStock", mod: func(r *record) { r.Stock = -1 }},
	} {
		t.Run(tt.name, func(t *testing.T) {
			r := rec("SKU-1")
			tt.mod(&r)
			if tt.ok {
				assert.NoError(t, r.validate())
			} else {
				assert.Error(t, r.validate())
			}
		})
	}
}
