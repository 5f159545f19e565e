package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig configures the rate limiter.
type RateLimitConfig struct {
	// Max is the maximum number of requests allowed per window.
	Max int
	// Window is the duration of each window.
	Window time.Duration
	// KeyFunc extracts the rate limit key from a request.
	// If nil, the client IP address is used.
	KeyFunc func(*http.Request) string
	// Store keeps the counters. If nil, an in-process sliding window is used.
	Store RateLimitStore
}

// Decision is the outcome of a single rate limit check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RateLimitStore counts requests per key.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, now time.Time) (Decision, error)
}

// entry tracks request counts across two adjacent windows for the sliding
// window algorithm.
type entry struct {
	prevCount float64
	prevStart time.Time
	currCount float64
	currStart time.Time
}

// memoryStore is a sliding window limiter local to the process.
type memoryStore struct {
	max     int
	window  time.Duration
	mu      sync.Mutex
	entries map[string]*entry
}

// NewMemoryStore returns an in-process sliding window store.
func NewMemoryStore(max int, window time.Duration) RateLimitStore {
	return newMemoryStore(max, window)
}

func newMemoryStore(max int, window time.Duration) *memoryStore {
	return &memoryStore{
		max:     max,
		window:  window,
		entries: make(map[string]*entry),
	}
}

func (s *memoryStore) Allow(_ context.Context, key string, now time.Time) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = &entry{currStart: now}
		s.entries[key] = e
	}

	if now.Sub(e.currStart) >= s.window {
		e.prevCount = e.currCount
		e.prevStart = e.currStart
		e.currCount = 0
		e.currStart = now.Truncate(s.window)
		if now.Sub(e.prevStart) >= 2*s.window {
			e.prevCount = 0
		}
	}

	// Weight the previous window by its overlap with the sliding window.
	elapsed := now.Sub(e.currStart)
	overlap := 1.0 - elapsed.Seconds()/s.window.Seconds()
	if overlap < 0 {
		overlap = 0
	}
	effective := e.prevCount*overlap + e.currCount
	d := Decision{ResetAt: e.currStart.Add(s.window)}

	if effective >= float64(s.max) {
		return d, nil
	}

	e.currCount++
	effective++

	d.Allowed = true
	d.Remaining = max(int(float64(s.max)-effective), 0)
	return d, nil
}

// cleanup removes entries whose windows have fully expired.
func (s *memoryStore) cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.entries {
		if now.Sub(e.currStart) >= 2*s.window {
			delete(s.entries, key)
		}
	}
}

func (s *memoryStore) startCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(2 * s.window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.cleanup(now)
			}
		}
	}()
}

// RedisStore is a fixed window limiter shared by every API instance.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	max    int
	window time.Duration
}

// NewRedisStore returns a store keeping counters in Redis under prefix.
func NewRedisStore(client redis.UniversalClient, prefix string, max int, window time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, max: max, window: window}
}

func (s *RedisStore) Allow(ctx context.Context, key string, now time.Time) (Decision, error) {
	start := now.Truncate(s.window)
	d := Decision{ResetAt: start.Add(s.window)}

	k := s.prefix + "ratelimit:" + key + ":" + strconv.FormatInt(start.Unix(), 10)
	var incr *redis.IntCmd
	if _, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.PExpire(ctx, k, s.window)
		return nil
	}); err != nil {
		return d, errors.Wrap(err, "count request")
	}

	count := int(incr.Val())
	if count > s.max {
		return d, nil
	}
	d.Allowed = true
	d.Remaining = s.max - count
	return d, nil
}

// RateLimit returns a middleware that enforces a per-key rate limit. When the
// limit is exceeded, it responds with 429 Too Many Requests and a JSON body.
// Every response includes X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset headers.
//
// Store failures are logged and the request is let through.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Store == nil {
		cfg.Store = newMemoryStore(cfg.Max, cfg.Window)
	}
	return rateLimitMiddleware(cfg)
}

// RateLimitWithCleanup is like RateLimit but, for the in-process store, also
// evicts expired entries every two windows until ctx is cancelled.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	if cfg.Store == nil {
		s := newMemoryStore(cfg.Max, cfg.Window)
		s.startCleanup(ctx)
		cfg.Store = s
	}
	return rateLimitMiddleware(cfg)
}

func rateLimitMiddleware(cfg RateLimitConfig) Middleware {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = defaultKeyFunc
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			d, err := cfg.Store.Allow(ctx, keyFunc(r), time.Now())
			if err != nil {
				zctx.From(ctx).Warn("Rate limit store failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Max))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

			if !d.Allowed {
				retryAfter := max(time.Until(d.ResetAt), 0)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// defaultKeyFunc extracts the client IP from the request, checking
// X-Forwarded-For first, then X-Real-IP, then falling back to RemoteAddr.
func defaultKeyFunc(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// X-Forwarded-For may contain a comma-separated list; use the first.
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
