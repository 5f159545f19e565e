// Package apperr classifies domain errors so transports can map them to
// status codes without knowing every sentinel.
package apperr

import (
	"github.com/go-faster/errors"
)

// Kind is the category of a domain error.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindBadRequest
	KindForbidden
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindBadRequest:
		return "bad_request"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Error is a domain error with a client-safe message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports equality by kind and message so that sentinels declared with the
// constructors below can be matched with errors.Is after re-creation.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

func NotFound(msg string) *Error     { return &Error{Kind: KindNotFound, Message: msg} }
func Conflict(msg string) *Error     { return &Error{Kind: KindConflict, Message: msg} }
func BadRequest(msg string) *Error   { return &Error{Kind: KindBadRequest, Message: msg} }
func Forbidden(msg string) *Error    { return &Error{Kind: KindForbidden, Message: msg} }
func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Message: msg} }

// Kinded is implemented by typed domain errors that carry extra fields
// (product ids, quantities) but still belong to one Kind.
type Kinded interface {
	error
	Kind() Kind
}

// KindOf returns the Kind of the first classified error in the chain, or
// KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ke Kinded
	if errors.As(err, &ke) {
		return ke.Kind()
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Message returns the client-safe message of the first classified error in the
// chain. Unclassified errors yield the fallback.
func Message(err error, fallback string) string {
	var ke Kinded
	if errors.As(err, &ke) {
		return ke.Error()
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return fallback
}
