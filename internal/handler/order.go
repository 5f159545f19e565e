package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/order"
)

type orderLineRequest struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Color     string          `json:"color"`
	Size      string          `json:"size"`
}

type orderRequest struct {
	UserID          int64               `json:"userId"`
	Items           []orderLineRequest  `json:"items"`
	ShippingAddress string              `json:"shippingAddress"`
	PaymentMethod   order.PaymentMethod `json:"paymentMethod"`
	TotalAmount     decimal.Decimal     `json:"totalAmount"`
	Notes           string              `json:"notes"`
}

// request converts the body to the domain request.
func (o orderRequest) request() order.PlaceOrderRequest {
	req := order.PlaceOrderRequest{
		UserID:          o.UserID,
		Items:           make([]order.LineInput, len(o.Items)),
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		TotalAmount:     o.TotalAmount,
		Notes:           o.Notes,
	}
	for i, item := range o.Items {
		req.Items[i] = order.LineInput(item)
	}
	return req
}

type statusRequest struct {
	Status order.Status `json:"status"`
}

type paymentStatusRequest struct {
	PaymentStatus order.PaymentStatus `json:"paymentStatus"`
}

type notesRequest struct {
	Notes string `json:"notes"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type addressRequest struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var req orderRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	o, err := h.Orders.Create(r.Context(), a, req.request())
	created(w, r, o, err)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var status *order.Status
	if v := r.URL.Query().Get("status"); v != "" {
		s := order.Status(v)
		status = &s
	}
	list, err := h.Orders.FindAll(r.Context(), a, status)
	respond(w, r, list, err)
}

func (h *Handler) myOrders(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	list, err := h.Orders.FindByUser(r.Context(), id.UserID)
	respond(w, r, list, err)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	o, err := h.Orders.FindOne(r.Context(), a, param(r, "id"))
	respond(w, r, o, err)
}

func (h *Handler) updateOrderNotes(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var req notesRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	o, err := h.Orders.UpdateNotes(r.Context(), a, param(r, "id"), req.Notes)
	respond(w, r, o, err)
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var req statusRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	o, err := h.Orders.UpdateStatus(r.Context(), a, param(r, "id"), req.Status)
	respond(w, r, o, err)
}

func (h *Handler) updatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var req paymentStatusRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	o, err := h.Orders.UpdatePaymentStatus(r.Context(), a, param(r, "id"), req.PaymentStatus)
	respond(w, r, o, err)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var req cancelRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	o, err := h.Orders.Cancel(r.Context(), a, param(r, "id"), req.Reason)
	respond(w, r, o, err)
}

func (h *Handler) createAddress(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var req addressRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	a, err := h.Orders.CreateAddress(r.Context(), id.UserID, order.AddressInput(req))
	created(w, r, a, err)
}

func (h *Handler) myAddresses(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	list, err := h.Orders.FindUserAddresses(r.Context(), id.UserID)
	respond(w, r, list, err)
}

func (h *Handler) setDefaultAddress(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	a, err := h.Orders.SetDefaultAddress(r.Context(), id.UserID, param(r, "id"))
	respond(w, r, a, err)
}
