package handler

import (
	"net/http"

	"github.com/xenking/storefront/internal/domain/cart"
)

type cartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Color     string `json:"color"`
	Size      string `json:"size"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type favoriteRequest struct {
	ProductID string `json:"productId"`
}

type countResponse struct {
	Count int `json:"count"`
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var req cartItemRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	item, err := h.Carts.AddItem(r.Context(), id.UserID, cart.AddInput(req))
	created(w, r, item, err)
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	view, err := h.Carts.FindByUser(r.Context(), id.UserID)
	respond(w, r, view, err)
}

func (h *Handler) cartCount(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	n, err := h.Carts.Count(r.Context(), id.UserID)
	respond(w, r, countResponse{Count: n}, err)
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var req quantityRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	item, err := h.Carts.UpdateItem(r.Context(), id.UserID, param(r, "id"), req.Quantity)
	respond(w, r, item, err)
}

func (h *Handler) deleteCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	noContent(w, r, h.Carts.RemoveItem(r.Context(), id.UserID, param(r, "id")))
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	noContent(w, r, h.Carts.Clear(r.Context(), id.UserID))
}

func (h *Handler) addFavorite(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var req favoriteRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	f, err := h.Favorites.Add(r.Context(), id.UserID, req.ProductID)
	created(w, r, f, err)
}

func (h *Handler) listFavorites(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	list, err := h.Favorites.FindByUser(r.Context(), id.UserID)
	respond(w, r, list, err)
}

func (h *Handler) checkFavorite(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	status, err := h.Favorites.IsFavorite(r.Context(), id.UserID, param(r, "productId"))
	respond(w, r, status, err)
}

func (h *Handler) deleteFavoriteByProduct(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	noContent(w, r, h.Favorites.RemoveByProduct(r.Context(), id.UserID, param(r, "productId")))
}

func (h *Handler) deleteFavorite(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	noContent(w, r, h.Favorites.Remove(r.Context(), id.UserID, param(r, "id")))
}
