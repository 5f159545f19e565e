package auth

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/apperr"
)

var (
	errUnauthorized = apperr.Unauthorized("Unauthorized")
	errForbidden    = apperr.Forbidden("Forbidden resource")
)

// TokenParser verifies bearer tokens.
type TokenParser interface {
	Parse(raw string) (Identity, error)
}

// ErrorWriter renders a domain error as an HTTP response.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Guard authenticates requests and enforces the policy per route.
type Guard struct {
	policy   *Policy
	tokens   TokenParser
	writeErr ErrorWriter
}

func NewGuard(policy *Policy, tokens TokenParser, writeErr ErrorWriter) *Guard {
	if writeErr == nil {
		writeErr = func(w http.ResponseWriter, _ *http.Request, err error) {
			code := http.StatusUnauthorized
			if apperr.KindOf(err) == apperr.KindForbidden {
				code = http.StatusForbidden
			}
			http.Error(w, err.Error(), code)
		}
	}
	return &Guard{policy: policy, tokens: tokens, writeErr: writeErr}
}

// Require returns the middleware enforcing the rule for method and pattern.
// Routes missing from the policy are rejected at registration.
func (g *Guard) Require(method, pattern string) (func(http.Handler) http.Handler, error) {
	access, ok := g.policy.Lookup(method, pattern)
	if !ok {
		return nil, errors.Errorf("no access policy for %s %s", method, pattern)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, hasToken := bearer(r)
			if !hasToken {
				if access.Public {
					next.ServeHTTP(w, r)
					return
				}
				g.writeErr(w, r, errUnauthorized)
				return
			}

			id, err := g.tokens.Parse(raw)
			if err != nil {
				if access.Public {
					next.ServeHTTP(w, r)
					return
				}
				zctx.From(r.Context()).Debug("Rejected token", zap.Error(err))
				g.writeErr(w, r, errUnauthorized)
				return
			}
			if !access.Public && !access.Allows(id.Role) {
				g.writeErr(w, r, errForbidden)
				return
			}

			ctx := WithIdentity(r.Context(), id)
			ctx = zctx.With(ctx, zap.Int64("user_id", id.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}, nil
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
