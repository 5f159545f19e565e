//go:build integration

package integration

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"testing"
)

func TestGuard_MissingToken(t *testing.T) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, baseURL+"/api/cart", nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("X-Request-ID", "cart-without-token")

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}
	if got := resp.Header.Get("X-Request-ID"); got != "cart-without-token" {
		t.Errorf("X-Request-ID: got %q", got)
	}
	body := decodeJSON[errorResponse](t, resp)
	if body.Code != http.StatusUnauthorized || body.Message != "Unauthorized" {
		t.Errorf("body: got %+v", body)
	}
}

func TestGuard_PublicRouteIgnoresBadToken(t *testing.T) {
	resp := doRequest(t, http.MethodGet, "/api/products/prd-chino", "garbage", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestGuard_CustomerOnAdminRoute(t *testing.T) {
	resp := doRequest(t, http.MethodGet, "/api/dashboard/statistics", registerCustomer(t), nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	body := decodeJSON[errorResponse](t, resp)
	if body.Message != "Forbidden resource" {
		t.Errorf("message: got %q", body.Message)
	}
}

func TestCORS_PreflightWithAuthorization(t *testing.T) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodOptions, baseURL+"/api/orders", nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Origin", "http://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "authorization, content-type")

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	// Credentials are allowed, so the origin is reflected instead of "*".
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://shop.example.com" {
		t.Errorf("Access-Control-Allow-Origin: got %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Access-Control-Allow-Credentials: got %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Authorization") {
		t.Errorf("Access-Control-Allow-Headers: got %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPost) {
		t.Errorf("Access-Control-Allow-Methods: got %q", got)
	}
}

func TestRateLimit_AuthenticatedRoute(t *testing.T) {
	token := registerCustomer(t)

	resp := doRequest(t, http.MethodGet, "/api/cart/count", token, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-RateLimit-Limit"); got != "1000" {
		t.Errorf("X-RateLimit-Limit: got %q", got)
	}
	remaining, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining"))
	if err != nil || remaining >= 1000 {
		t.Errorf("X-RateLimit-Remaining: got %q", resp.Header.Get("X-RateLimit-Remaining"))
	}
	if resp.Header.Get("X-RateLimit-Reset") == "" {
		t.Error("X-RateLimit-Reset header not present")
	}
}

func TestUnknownRoute(t *testing.T) {
	resp := doGet(t, "/api/nope")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not present")
	}
	body := decodeJSON[errorResponse](t, resp)
	if body.Message != "Cannot GET /api/nope" {
		t.Errorf("message: got %q", body.Message)
	}
}
