package handler

import (
	"net/http"

	"github.com/xenking/storefront/internal/domain/category"
	"github.com/xenking/storefront/internal/domain/collection"
)

type categoryRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Image       *string `json:"image"`
	IsActive    *bool   `json:"isActive"`
	CategoryID  *string `json:"categoryId"`
}

type collectionRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Image       *string `json:"image"`
	IsActive    *bool   `json:"isActive"`
}

func (h *Handler) categoryInput(w http.ResponseWriter, r *http.Request) (category.Input, bool) {
	var req categoryRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return category.Input{}, false
	}
	return category.Input(req), true
}

func (h *Handler) collectionInput(w http.ResponseWriter, r *http.Request) (collection.Input, bool) {
	var req collectionRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return collection.Input{}, false
	}
	return collection.Input(req), true
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	in, ok := h.categoryInput(w, r)
	if !ok {
		return
	}
	c, err := h.Categories.Create(r.Context(), in)
	created(w, r, c, err)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	list, err := h.Categories.FindAll(r.Context())
	respond(w, r, list, err)
}

func (h *Handler) getCategory(w http.ResponseWriter, r *http.Request) {
	c, err := h.Categories.FindOne(r.Context(), param(r, "id"))
	respond(w, r, c, err)
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request) {
	in, ok := h.categoryInput(w, r)
	if !ok {
		return
	}
	c, err := h.Categories.Update(r.Context(), param(r, "id"), in)
	respond(w, r, c, err)
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	noContent(w, r, h.Categories.Remove(r.Context(), param(r, "id")))
}

func (h *Handler) createSubcategory(w http.ResponseWriter, r *http.Request) {
	in, ok := h.categoryInput(w, r)
	if !ok {
		return
	}
	s, err := h.Categories.CreateSubcategory(r.Context(), in)
	created(w, r, s, err)
}

func (h *Handler) listSubcategories(w http.ResponseWriter, r *http.Request) {
	list, err := h.Categories.FindAllSubcategories(r.Context())
	respond(w, r, list, err)
}

func (h *Handler) listSubcategoriesByCategory(w http.ResponseWriter, r *http.Request) {
	list, err := h.Categories.FindSubcategoriesByCategory(r.Context(), param(r, "categoryId"))
	respond(w, r, list, err)
}

func (h *Handler) getSubcategory(w http.ResponseWriter, r *http.Request) {
	s, err := h.Categories.FindSubcategory(r.Context(), param(r, "id"))
	respond(w, r, s, err)
}

func (h *Handler) updateSubcategory(w http.ResponseWriter, r *http.Request) {
	in, ok := h.categoryInput(w, r)
	if !ok {
		return
	}
	s, err := h.Categories.UpdateSubcategory(r.Context(), param(r, "id"), in)
	respond(w, r, s, err)
}

func (h *Handler) deleteSubcategory(w http.ResponseWriter, r *http.Request) {
	noContent(w, r, h.Categories.RemoveSubcategory(r.Context(), param(r, "id")))
}

func (h *Handler) createCollection(w http.ResponseWriter, r *http.Request) {
	in, ok := h.collectionInput(w, r)
	if !ok {
		return
	}
	c, err := h.Collections.Create(r.Context(), in)
	created(w, r, c, err)
}

func (h *Handler) listCollections(w http.ResponseWriter, r *http.Request) {
	list, err := h.Collections.FindAll(r.Context())
	respond(w, r, list, err)
}

func (h *Handler) getCollection(w http.ResponseWriter, r *http.Request) {
	c, err := h.Collections.FindOne(r.Context(), param(r, "id"))
	respond(w, r, c, err)
}

func (h *Handler) updateCollection(w http.ResponseWriter, r *http.Request) {
	in, ok := h.collectionInput(w, r)
	if !ok {
		return
	}
	c, err := h.Collections.Update(r.Context(), param(r, "id"), in)
	respond(w, r, c, err)
}

func (h *Handler) deleteCollection(w http.ResponseWriter, r *http.Request) {
	noContent(w, r, h.Collections.Remove(r.Context(), param(r, "id")))
}
