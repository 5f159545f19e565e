// Package auth issues bearer tokens and enforces the route-role policy.
package auth

import (
	"context"

	"github.com/xenking/storefront/internal/domain/user"
)

// Identity is the authenticated principal of a request.
type Identity struct {
	UserID int64
	Email  string
	Role   user.Role
}

// Actor converts the identity to the domain actor.
func (i Identity) Actor() user.Actor {
	return user.Actor{UserID: i.UserID, Role: i.Role}
}

type identityKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored in ctx, if any.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
