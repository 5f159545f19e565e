//go:build integration

package integration

import (
	"net/http"
	"strconv"
	"testing"
)

func TestListProducts(t *testing.T) {
	resp := doGet(t, "/api/products")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	page := decodeJSON[productPage](t, resp)
	if page.Pagination.Total != seededProducts {
		t.Fatalf("expected %d products, got %d", seededProducts, page.Pagination.Total)
	}
	if len(page.Data) != seededProducts {
		t.Errorf("expected %d products on the first page, got %d", seededProducts, len(page.Data))
	}
}

func TestListProducts_Pagination(t *testing.T) {
	resp := doGet(t, "/api/products?page=2&limit=2")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	page := decodeJSON[productPage](t, resp)
	if len(page.Data) != 2 {
		t.Fatalf("expected 2 products, got %d", len(page.Data))
	}
	if page.Pagination.Page != 2 || page.Pagination.Limit != 2 {
		t.Errorf("pagination: got page=%d limit=%d", page.Pagination.Page, page.Pagination.Limit)
	}
	if page.Pagination.TotalPages != 3 {
		t.Errorf("totalPages: got %d, want 3", page.Pagination.TotalPages)
	}
}

func TestListProducts_FilterByCategory(t *testing.T) {
	resp := doGet(t, "/api/products?categoryId=cat-accessories")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	page := decodeJSON[productPage](t, resp)
	if page.Pagination.Total != 2 {
		t.Fatalf("expected 2 accessories, got %d", page.Pagination.Total)
	}
	for _, p := range page.Data {
		if p.CategoryID != "cat-accessories" {
			t.Errorf("product %s: categoryId %q", p.ID, p.CategoryID)
		}
	}
}

func TestGetProduct(t *testing.T) {
	resp := doGet(t, "/api/products/prd-chino")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	p := decodeJSON[productResponse](t, resp)
	if p.Name != "Slim Chino" {
		t.Errorf("name: got %q, want %q", p.Name, "Slim Chino")
	}
	if price, err := strconv.ParseFloat(p.Price, 64); err != nil || price != 54 {
		t.Errorf("price: got %q, want 54", p.Price)
	}
	if p.Stock != 40 {
		t.Errorf("stock: got %d, want 40", p.Stock)
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	resp := doGet(t, "/api/products/does-not-exist")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	body := decodeJSON[errorResponse](t, resp)
	if body.Message != "Product not found" {
		t.Errorf("message: got %q", body.Message)
	}
}

func TestProductColors(t *testing.T) {
	resp := doGet(t, "/api/products/prd-linen-shirt/colors")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	colors := decodeJSON[[]string](t, resp)
	want := map[string]bool{"White": true, "Light Blue": true}
	if len(colors) != len(want) {
		t.Fatalf("colors: got %v", colors)
	}
	for _, c := range colors {
		if !want[c] {
			t.Errorf("unexpected color %q", c)
		}
	}
}

func TestCreateProduct_RequiresAdmin(t *testing.T) {
	body := map[string]any{
		"name":       "Forbidden Scarf",
		"price":      "12.00",
		"sku":        "ACC-SCA-001",
		"categoryId": "cat-accessories",
	}

	resp := doRequest(t, http.MethodPost, "/api/products", "", body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous: expected 401, got %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodPost, "/api/products", registerCustomer(t), body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("customer: expected 403, got %d", resp.StatusCode)
	}
}
