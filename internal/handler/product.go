package handler

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/product"
)

type imageRequest struct {
	URL    string  `json:"url"`
	Color  *string `json:"color"`
	IsMain bool    `json:"isMain"`
	Order  *int    `json:"order"`
}

type variantRequest struct {
	Color string              `json:"color"`
	Size  string              `json:"size"`
	Stock int                 `json:"stock"`
	Price decimal.NullDecimal `json:"price"`
	SKU   *string             `json:"sku"`
}

type productRequest struct {
	Name          string              `json:"name"`
	Description   string              `json:"description"`
	Price         decimal.Decimal     `json:"price"`
	Stock         int                 `json:"stock"`
	SKU           string              `json:"sku"`
	CategoryID    string              `json:"categoryId"`
	SubcategoryID *string             `json:"subcategoryId"`
	CollectionID  *string             `json:"collectionId"`
	IsActive      *bool               `json:"isActive"`
	IsFeatured    bool                `json:"isFeatured"`
	IsOnSale      bool                `json:"isOnSale"`
	SalePrice     decimal.NullDecimal `json:"salePrice"`
	SaleBadge     *string             `json:"saleBadge"`
	Images        []imageRequest      `json:"images"`
	Variants      []variantRequest    `json:"variants"`
}

func (p productRequest) input() product.CreateInput {
	in := product.CreateInput{
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price,
		Stock:         p.Stock,
		SKU:           p.SKU,
		CategoryID:    p.CategoryID,
		SubcategoryID: p.SubcategoryID,
		CollectionID:  p.CollectionID,
		IsActive:      p.IsActive,
		IsFeatured:    p.IsFeatured,
		IsOnSale:      p.IsOnSale,
		SalePrice:     p.SalePrice,
		SaleBadge:     p.SaleBadge,
		Images:        make([]product.ImageInput, 0, len(p.Images)),
		Variants:      make([]product.VariantInput, 0, len(p.Variants)),
	}
	for _, img := range p.Images {
		in.Images = append(in.Images, product.ImageInput(img))
	}
	for _, v := range p.Variants {
		in.Variants = append(in.Variants, product.VariantInput(v))
	}
	return in
}

type productPatch struct {
	Name          *string          `json:"name"`
	Description   *string          `json:"description"`
	Price         *decimal.Decimal `json:"price"`
	Stock         *int             `json:"stock"`
	SKU           *string          `json:"sku"`
	CategoryID    *string          `json:"categoryId"`
	SubcategoryID *string          `json:"subcategoryId"`
	CollectionID  *string          `json:"collectionId"`
	IsActive      *bool            `json:"isActive"`
	IsFeatured    *bool            `json:"isFeatured"`
	IsOnSale      *bool            `json:"isOnSale"`
	SalePrice     *decimal.Decimal `json:"salePrice"`
	SaleBadge     *string          `json:"saleBadge"`
}

type imagesRequest struct {
	Images []imageRequest `json:"images"`
}

// productFilter reads the listing query. Unparsable numbers are rejected,
// boolean flags are true only for "true".
func productFilter(q url.Values) (product.Filter, error) {
	f := product.Filter{
		CategoryID:    q.Get("categoryId"),
		SubcategoryID: q.Get("subcategoryId"),
		CollectionID:  q.Get("collectionId"),
		Search:        strings.TrimSpace(q.Get("search")),
		SortBy:        product.SortField(q.Get("sortBy")),
		SortDesc:      !strings.EqualFold(q.Get("sortOrder"), "asc"),
	}
	flags := []struct {
		name string
		dst  **bool
	}{
		{"isActive", &f.IsActive},
		{"isFeatured", &f.IsFeatured},
		{"isOnSale", &f.IsOnSale},
	}
	for _, flag := range flags {
		if v := q.Get(flag.name); v != "" {
			b := v == "true"
			*flag.dst = &b
		}
	}
	prices := []struct {
		name string
		dst  *decimal.NullDecimal
	}{
		{"minPrice", &f.MinPrice},
		{"maxPrice", &f.MaxPrice},
	}
	for _, p := range prices {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return f, apperr.BadRequest("Invalid " + p.name)
		}
		*p.dst = decimal.NewNullDecimal(d)
	}
	ints := []struct {
		name string
		dst  *int
	}{
		{"page", &f.Page},
		{"limit", &f.Limit},
	}
	for _, i := range ints {
		v := q.Get(i.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, apperr.BadRequest("Invalid " + i.name)
		}
		*i.dst = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, apperr.BadRequest("Invalid offset")
		}
		f.Offset = &n
	}
	return f, nil
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	p, err := h.Products.Create(r.Context(), req.input())
	created(w, r, p, err)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	f, err := productFilter(r.URL.Query())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	page, err := h.Products.FindAll(r.Context(), f)
	respond(w, r, page, err)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Products.FindOne(r.Context(), param(r, "id"))
	respond(w, r, p, err)
}

func (h *Handler) productColors(w http.ResponseWriter, r *http.Request) {
	colors, err := h.Products.GetAvailableColors(r.Context(), param(r, "id"))
	respond(w, r, colors, err)
}

func (h *Handler) productImagesByColor(w http.ResponseWriter, r *http.Request) {
	color, err := url.PathUnescape(param(r, "color"))
	if err != nil {
		color = param(r, "color")
	}
	images, err := h.Products.GetImagesByColor(r.Context(), param(r, "id"), color)
	respond(w, r, images, err)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var p productPatch
	if err := decode(w, r, &p); err != nil {
		WriteError(w, r, err)
		return
	}
	updated, err := h.Products.Update(r.Context(), param(r, "id"), product.Patch(p))
	respond(w, r, updated, err)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	noContent(w, r, h.Products.Remove(r.Context(), param(r, "id")))
}

func (h *Handler) addProductImage(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	img, err := h.Products.AddImage(r.Context(), param(r, "id"), product.ImageInput(req))
	created(w, r, img, err)
}

func (h *Handler) addProductImages(w http.ResponseWriter, r *http.Request) {
	var req imagesRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	in := make([]product.ImageInput, 0, len(req.Images))
	for _, img := range req.Images {
		in = append(in, product.ImageInput(img))
	}
	images, err := h.Products.AddImages(r.Context(), param(r, "id"), in)
	created(w, r, images, err)
}

func (h *Handler) deleteProductImage(w http.ResponseWriter, r *http.Request) {
	noContent(w, r, h.Products.RemoveImage(r.Context(), param(r, "id"), param(r, "imageId")))
}

func (h *Handler) addProductVariant(w http.ResponseWriter, r *http.Request) {
	var req variantRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	v, err := h.Products.AddVariant(r.Context(), param(r, "id"), product.VariantInput(req))
	created(w, r, v, err)
}

func (h *Handler) deleteProductVariant(w http.ResponseWriter, r *http.Request) {
	noContent(w, r, h.Products.RemoveVariant(r.Context(), param(r, "id"), param(r, "variantId")))
}
