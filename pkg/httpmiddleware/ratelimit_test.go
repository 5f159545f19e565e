package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

type storeFactory func(t *testing.T, max int) RateLimitStore

func stores() map[string]storeFactory {
	return map[string]storeFactory{
		"Memory": func(_ *testing.T, max int) RateLimitStore {
			return NewMemoryStore(max, time.Minute)
		},
		"Redis": func(t *testing.T, max int) RateLimitStore {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return NewRedisStore(client, "test:", max, time.Minute)
		},
	}
}

func serve(h http.Handler, remoteAddr string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit(t *testing.T) {
	for name, newStore := range stores() {
		t.Run(name, func(t *testing.T) {
			t.Run("UnderLimit", func(t *testing.T) {
				h := RateLimit(RateLimitConfig{Max: 5, Window: time.Minute, Store: newStore(t, 5)})(okHandler())
				for i := range 5 {
					w := serve(h, "192.168.1.1:12345", nil)
					assert.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
					assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
					assert.Equal(t, strconv.Itoa(4-i), w.Header().Get("X-RateLimit-Remaining"))
					assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
				}
			})
			t.Run("OverLimit", func(t *testing.T) {
				h := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute, Store: newStore(t, 2)})(okHandler())
				for range 2 {
					require.Equal(t, http.StatusOK, serve(h, "10.0.0.1:9999", nil).Code)
				}

				w := serve(h, "10.0.0.1:9999", nil)
				assert.Equal(t, http.StatusTooManyRequests, w.Code)
				assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
				assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
				assert.NotEmpty(t, w.Header().Get("Retry-After"))
				assert.JSONEq(t, `{"code":429,"message":"rate limit exceeded"}`, w.Body.String())
			})
			t.Run("KeysAreIndependent", func(t *testing.T) {
				h := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute, Store: newStore(t, 1)})(okHandler())

				assert.Equal(t, http.StatusOK, serve(h, "10.0.0.1:1234", nil).Code)
				assert.Equal(t, http.StatusOK, serve(h, "10.0.0.2:1234", nil).Code)
				assert.Equal(t, http.StatusTooManyRequests, serve(h, "10.0.0.1:5678", nil).Code)
			})
		})
	}
}

func TestRateLimit_CustomKeyFunc(t *testing.T) {
	h := RateLimit(RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		KeyFunc: func(r *http.Request) string {
			return r.Header.Get("Authorization")
		},
	})(okHandler())

	a := map[string]string{"Authorization": "Bearer a"}
	b := map[string]string{"Authorization": "Bearer b"}
	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.1:1", a).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, "10.0.0.2:1", a).Code)
	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.1:1", b).Code)
}

func TestRateLimit_XForwardedFor(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())
	xff := map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}

	assert.Equal(t, http.StatusOK, serve(h, "192.168.1.1:4444", xff).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, "192.168.1.2:5555", xff).Code)
}

type failingStore struct{}

func (failingStore) Allow(context.Context, string, time.Time) (Decision, error) {
	return Decision{}, errors.New("connection refused")
}

func TestRateLimit_StoreFailureLetsRequestThrough(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute, Store: failingStore{}})(okHandler())
	for range 3 {
		w := serve(h, "10.0.0.1:1", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestMemoryStore_Cleanup(t *testing.T) {
	s := newMemoryStore(1, time.Second)
	now := time.Now()
	_, err := s.Allow(context.Background(), "k", now)
	require.NoError(t, err)
	require.Len(t, s.entries, 1)

	s.cleanup(now.Add(time.Second))
	assert.Len(t, s.entries, 1)
	s.cleanup(now.Add(2 * time.Second))
	assert.Empty(t, s.entries)
}
