package handler

import (
	"net/http"

	"github.com/xenking/storefront/internal/domain/user"
)

type userRequest struct {
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Phone     *string   `json:"phone"`
	Role      user.Role `json:"role"`
	Avatar    *string   `json:"avatar"`
}

func (u userRequest) input() user.CreateInput {
	return user.CreateInput{
		Email:     u.Email,
		Password:  u.Password,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		Role:      u.Role,
		Avatar:    u.Avatar,
	}
}

type userPatch struct {
	Email     *string    `json:"email"`
	Password  *string    `json:"password"`
	FirstName *string    `json:"firstName"`
	LastName  *string    `json:"lastName"`
	Phone     *string    `json:"phone"`
	Role      *user.Role `json:"role"`
	Avatar    *string    `json:"avatar"`
	IsActive  *bool      `json:"isActive"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	in := req.input()
	in.Role = user.RoleUser
	u, err := h.Users.Register(r.Context(), in)
	created(w, r, u, err)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	s, err := h.Users.Login(r.Context(), req.Email, req.Password)
	respond(w, r, s, err)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	u, err := h.Users.FindOne(r.Context(), a, a.UserID)
	respond(w, r, u, err)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var req userRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	u, err := h.Users.Create(r.Context(), a, req.input())
	created(w, r, u, err)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	users, err := h.Users.FindAll(r.Context(), a)
	respond(w, r, users, err)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	id, err := int64Param(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	u, err := h.Users.FindOne(r.Context(), a, id)
	respond(w, r, u, err)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	id, err := int64Param(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var p userPatch
	if err := decode(w, r, &p); err != nil {
		WriteError(w, r, err)
		return
	}
	u, err := h.Users.Update(r.Context(), a, id, user.UpdateInput(p))
	respond(w, r, u, err)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	id, err := int64Param(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	noContent(w, r, h.Users.Remove(r.Context(), a, id))
}
