package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/sale"
)

type saleRequest struct {
	Name            *string            `json:"name"`
	Description     *string            `json:"description"`
	DiscountType    *sale.DiscountType `json:"discountType"`
	DiscountValue   *decimal.Decimal   `json:"discountValue"`
	StartDate       *time.Time         `json:"startDate"`
	EndDate         *time.Time         `json:"endDate"`
	IsActive        *bool              `json:"isActive"`
	MinimumOrder    *decimal.Decimal   `json:"minimumOrder"`
	MaximumDiscount *decimal.Decimal   `json:"maximumDiscount"`
	ProductIDs      []string           `json:"productIds"`
}

func (h *Handler) saleInput(w http.ResponseWriter, r *http.Request) (sale.Input, bool) {
	var req saleRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return sale.Input{}, false
	}
	return sale.Input(req), true
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	in, ok := h.saleInput(w, r)
	if !ok {
		return
	}
	s, err := h.Sales.Create(r.Context(), in)
	created(w, r, s, err)
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	list, err := h.Sales.FindAll(r.Context())
	respond(w, r, list, err)
}

func (h *Handler) listActiveSales(w http.ResponseWriter, r *http.Request) {
	list, err := h.Sales.FindActive(r.Context())
	respond(w, r, list, err)
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sales.FindOne(r.Context(), param(r, "id"))
	respond(w, r, s, err)
}

func (h *Handler) updateSale(w http.ResponseWriter, r *http.Request) {
	in, ok := h.saleInput(w, r)
	if !ok {
		return
	}
	s, err := h.Sales.Update(r.Context(), param(r, "id"), in)
	respond(w, r, s, err)
}

func (h *Handler) deleteSale(w http.ResponseWriter, r *http.Request) {
	noContent(w, r, h.Sales.Remove(r.Context(), param(r, "id")))
}

func (h *Handler) saleDiscount(w http.ResponseWriter, r *http.Request) {
	var amount *decimal.Decimal
	if v := r.URL.Query().Get("orderAmount"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			WriteError(w, r, apperr.BadRequest("Invalid orderAmount"))
			return
		}
		amount = &d
	}
	d, err := h.Sales.CalculateDiscount(r.Context(), param(r, "productId"), amount)
	respond(w, r, d, err)
}
