package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/auth"
	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/user"
)

const maxJSONBody = 1 << 20

var (
	errInvalidBody = apperr.BadRequest("Invalid request body")
	errNoIdentity  = apperr.Unauthorized("Unauthorized")
)

func errRouteNotFound(r *http.Request) error {
	return apperr.NotFound("Cannot " + r.Method + " " + r.URL.Path)
}

func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindBadRequest:
		return http.StatusBadRequest
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err as {"code": status, "message": "..."}. Errors without
// a domain kind are logged and answered with 500.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(apperr.KindOf(err))
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}
	writeMessage(w, status, apperr.Message(err, "Internal server error"))
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		WriteError(w, r, errors.Wrap(err, "encode response"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// respond writes v with 200, or the error.
func respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, v)
}

// created writes v with 201, or the error.
func created(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, v)
}

// noContent writes 204, or the error.
func noContent(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	d := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := d.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		zctx.From(r.Context()).Debug("Invalid body", zap.Error(err))
		return errInvalidBody
	}
	return nil
}

// identity returns the caller. Routes behind an authenticated policy always
// have one.
func identity(r *http.Request) (auth.Identity, error) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		return auth.Identity{}, errNoIdentity
	}
	return id, nil
}

func actor(r *http.Request) (user.Actor, error) {
	id, err := identity(r)
	if err != nil {
		return user.Actor{}, err
	}
	return id.Actor(), nil
}

func param(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

func int64Param(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, apperr.BadRequest("Invalid " + name)
	}
	return v, nil
}
