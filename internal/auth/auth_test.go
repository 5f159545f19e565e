package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/storefront/internal/domain/user"
)

func newTestTokens(t *testing.T) *Tokens {
	t.Helper()
	tk, err := NewTokens("test-secret", "storefront", time.Hour)
	require.NoError(t, err)
	return tk
}

func TestTokens_RoundTrip(t *testing.T) {
	tk := newTestTokens(t)

	raw, exp, err := tk.Issue(&user.User{ID: 42, Email: "a@b.c", Role: user.RoleAdmin})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	id, err := tk.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: 42, Email: "a@b.c", Role: user.RoleAdmin}, id)
	assert.Equal(t, user.Actor{UserID: 42, Role: user.RoleAdmin}, id.Actor())
}

func TestTokens_Rejects(t *testing.T) {
	tk := newTestTokens(t)
	raw, _, err := tk.Issue(&user.User{ID: 1, Role: user.RoleUser})
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		late := newTestTokens(t)
		late.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := late.Parse(raw)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
	t.Run("other secret", func(t *testing.T) {
		other, err := NewTokens("different", "storefront", time.Hour)
		require.NoError(t, err)
		_, err = other.Parse(raw)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
	t.Run("other issuer", func(t *testing.T) {
		other, err := NewTokens("test-secret", "someone-else", time.Hour)
		require.NoError(t, err)
		_, err = other.Parse(raw)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
	t.Run("garbage", func(t *testing.T) {
		_, err := tk.Parse("not.a.token")
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestNewTokens_Validation(t *testing.T) {
	_, err := NewTokens("", "x", time.Hour)
	require.Error(t, err)
	_, err = NewTokens("s", "x", 0)
	require.Error(t, err)
}

func TestHasher(t *testing.T) {
	h := Hasher{Cost: bcrypt.MinCost}

	hash, err := h.Hash("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", hash)
	require.NoError(t, h.Compare(hash, "secret123"))
	require.Error(t, h.Compare(hash, "wrong"))
}

func TestDefaultPolicy(t *testing.T) {
	p, err := DefaultPolicy()
	require.NoError(t, err)

	a, ok := p.Lookup("get", "/api/products")
	require.True(t, ok)
	assert.True(t, a.Public)

	a, ok = p.Lookup(http.MethodGet, "/api/dashboard/statistics")
	require.True(t, ok)
	assert.False(t, a.Public)
	assert.True(t, a.Allows(user.RoleAdmin))
	assert.False(t, a.Allows(user.RoleUser))

	a, ok = p.Lookup(http.MethodGet, "/api/cart")
	require.True(t, ok)
	assert.True(t, a.Authenticated)
	assert.True(t, a.Allows(user.RoleUser))

	_, ok = p.Lookup(http.MethodPut, "/api/cart")
	assert.False(t, ok)
}

func TestParsePolicy_Invalid(t *testing.T) {
	for name, doc := range map[string]string{
		"unknown keyword": "routes:\n  GET /x: everyone\n",
		"unknown role":    "routes:\n  GET /x: [ROOT]\n",
		"empty roles":     "routes:\n  GET /x: []\n",
		"mapping":         "routes:\n  GET /x: {a: b}\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePolicy([]byte(doc))
			require.Error(t, err)
		})
	}
}

type stubParser map[string]Identity

func (s stubParser) Parse(raw string) (Identity, error) {
	id, ok := s[raw]
	if !ok {
		return Identity{}, errors.Wrap(ErrInvalidToken, "unknown")
	}
	return id, nil
}

func TestGuard(t *testing.T) {
	policy, err := ParsePolicy([]byte(`
routes:
  GET /open: public
  GET /me: authenticated
  GET /admin: [ADMIN]
`))
	require.NoError(t, err)
	g := NewGuard(policy, stubParser{
		"admin": {UserID: 1, Role: user.RoleAdmin},
		"user":  {UserID: 2, Role: user.RoleUser},
	}, nil)

	var seen *Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = nil
		if id, ok := IdentityFrom(r.Context()); ok {
			seen = &id
		}
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name     string
		pattern  string
		token    string
		wantCode int
		wantUser int64
	}{
		{"public anonymous", "/open", "", http.StatusNoContent, 0},
		{"public with token", "/open", "user", http.StatusNoContent, 2},
		{"public bad token", "/open", "bogus", http.StatusNoContent, 0},
		{"authenticated anonymous", "/me", "", http.StatusUnauthorized, 0},
		{"authenticated bad token", "/me", "bogus", http.StatusUnauthorized, 0},
		{"authenticated user", "/me", "user", http.StatusNoContent, 2},
		{"admin as user", "/admin", "user", http.StatusForbidden, 0},
		{"admin as admin", "/admin", "admin", http.StatusNoContent, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw, err := g.Require(http.MethodGet, tt.pattern)
			require.NoError(t, err)

			seen = nil
			req := httptest.NewRequest(http.MethodGet, tt.pattern, http.NoBody)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			mw(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantUser == 0 {
				assert.Nil(t, seen)
			} else {
				require.NotNil(t, seen)
				assert.Equal(t, tt.wantUser, seen.UserID)
			}
		})
	}

	_, err = g.Require(http.MethodPost, "/open")
	require.Error(t, err)
}
