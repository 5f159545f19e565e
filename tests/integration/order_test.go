//go:build integration

package integration

import (
	"net/http"
	"regexp"
	"strconv"
	"testing"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func chinoOrder(total string) orderRequest {
	return orderRequest{
		Items:           []orderLine{{ProductID: "prd-chino", Quantity: 1, Price: "54.00"}},
		ShippingAddress: "1 Test Street, Springfield",
		PaymentMethod:   "CreditCard",
		TotalAmount:     total,
	}
}

func assertAmount(t *testing.T, field, got string, want float64) {
	t.Helper()
	v, err := strconv.ParseFloat(got, 64)
	if err != nil || v != want {
		t.Errorf("%s: got %q, want %v", field, got, want)
	}
}

func TestPlaceOrder_NoAuth(t *testing.T) {
	resp := doRequest(t, http.MethodPost, "/api/orders", "", chinoOrder("59.40"))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestPlaceOrder_InvalidToken(t *testing.T) {
	resp := doRequest(t, http.MethodPost, "/api/orders", "not-a-token", chinoOrder("59.40"))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestListOrders_AdminOnly(t *testing.T) {
	resp := doRequest(t, http.MethodGet, "/api/orders", registerCustomer(t), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("customer: expected 403, got %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodGet, "/api/orders", adminToken, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin: expected 200, got %d", resp.StatusCode)
	}
}

func TestPlaceOrder_Validation(t *testing.T) {
	token := registerCustomer(t)

	noItems := chinoOrder("59.40")
	noItems.Items = nil
	noAddress := chinoOrder("59.40")
	noAddress.ShippingAddress = ""
	badMethod := chinoOrder("59.40")
	badMethod.PaymentMethod = "Barter"
	unknownProduct := chinoOrder("59.40")
	unknownProduct.Items[0].ProductID = "does-not-exist"

	tests := []struct {
		name   string
		req    orderRequest
		status int
	}{
		{"EmptyItems", noItems, http.StatusBadRequest},
		{"MissingAddress", noAddress, http.StatusBadRequest},
		{"InvalidPaymentMethod", badMethod, http.StatusBadRequest},
		{"TotalMismatch", chinoOrder("54.00"), http.StatusBadRequest},
		{"UnknownProduct", unknownProduct, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, http.MethodPost, "/api/orders", token, tt.req)
			defer resp.Body.Close()

			if resp.StatusCode != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, resp.StatusCode)
			}
			body := decodeJSON[errorResponse](t, resp)
			if body.Message == "" {
				t.Error("expected an error message")
			}
		})
	}
}

func TestPlaceOrder_Lifecycle(t *testing.T) {
	token := registerCustomer(t)

	resp := doRequest(t, http.MethodPost, "/api/orders", token, chinoOrder("59.40"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	placed := decodeJSON[orderResponse](t, resp)
	if !uuidPattern.MatchString(placed.ID) {
		t.Errorf("order id %q is not a UUID", placed.ID)
	}
	if placed.Status != "PENDING" {
		t.Errorf("status: got %q, want PENDING", placed.Status)
	}
	assertAmount(t, "subtotal", placed.Subtotal, 54)
	assertAmount(t, "shipping", placed.Shipping, 0)
	assertAmount(t, "tax", placed.Tax, 5.4)
	assertAmount(t, "total", placed.Total, 59.4)
	if len(placed.Items) != 1 || placed.Items[0].ProductID != "prd-chino" {
		t.Fatalf("items: got %+v", placed.Items)
	}

	mine := doRequest(t, http.MethodGet, "/api/orders/my-orders", token, nil)
	defer mine.Body.Close()
	if mine.StatusCode != http.StatusOK {
		t.Fatalf("my-orders: expected 200, got %d", mine.StatusCode)
	}
	orders := decodeJSON[[]orderResponse](t, mine)
	if len(orders) != 1 || orders[0].ID != placed.ID {
		t.Fatalf("my-orders: got %+v", orders)
	}

	other := doRequest(t, http.MethodGet, "/api/orders/"+placed.ID, registerCustomer(t), nil)
	other.Body.Close()
	if other.StatusCode != http.StatusForbidden {
		t.Errorf("foreign order: expected 403, got %d", other.StatusCode)
	}

	cancel := doRequest(t, http.MethodPatch, "/api/orders/"+placed.ID+"/cancel", token, map[string]string{
		"reason": "changed my mind",
	})
	defer cancel.Body.Close()
	if cancel.StatusCode != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", cancel.StatusCode)
	}
	cancelled := decodeJSON[orderResponse](t, cancel)
	if cancelled.Status != "CANCELLED" {
		t.Errorf("status after cancel: got %q, want CANCELLED", cancelled.Status)
	}

	again := doRequest(t, http.MethodPatch, "/api/orders/"+placed.ID+"/cancel", token, map[string]string{
		"reason": "twice",
	})
	again.Body.Close()
	if again.StatusCode != http.StatusBadRequest {
		t.Errorf("second cancel: expected 400, got %d", again.StatusCode)
	}
}

func chinoStock(t *testing.T) int {
	t.Helper()
	resp := doGet(t, "/api/products/prd-chino")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get product: expected 200, got %d", resp.StatusCode)
	}
	return decodeJSON[productResponse](t, resp).Stock
}

func TestPlaceOrder_RefreshesCachedStock(t *testing.T) {
	token := registerCustomer(t)
	before := chinoStock(t)
	// Served from the cache the first read filled.
	if got := chinoStock(t); got != before {
		t.Fatalf("cached stock: got %d, want %d", got, before)
	}

	resp := doRequest(t, http.MethodPost, "/api/orders", token, chinoOrder("59.40"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	placed := decodeJSON[orderResponse](t, resp)

	if got := chinoStock(t); got != before-1 {
		t.Errorf("stock after order: got %d, want %d", got, before-1)
	}

	cancel := doRequest(t, http.MethodPatch, "/api/orders/"+placed.ID+"/cancel", token, map[string]string{
		"reason": "stock check",
	})
	cancel.Body.Close()
	if cancel.StatusCode != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", cancel.StatusCode)
	}
	if got := chinoStock(t); got != before {
		t.Errorf("stock after cancel: got %d, want %d", got, before)
	}
}
