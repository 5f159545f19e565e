package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func passing() CheckFunc {
	return func(context.Context) error { return nil }
}

func get(t *testing.T, endpoint http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	endpoint(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	return w
}

func runAll(h *Health, times int) {
	for range times {
		for _, p := range h.probes {
			p.run(context.Background())
		}
	}
}

func TestLiveEndpoint(t *testing.T) {
	for _, tt := range []struct {
		name   string
		checks map[string]CheckFunc
		runs   int
		status int
		body   string
	}{
		{
			name:   "NoChecks",
			status: http.StatusOK,
			body:   `{"status":"ok"}`,
		},
		{
			name:   "Passing",
			checks: map[string]CheckFunc{"goroutines": passing()},
			runs:   1,
			status: http.StatusOK,
			body:   `{"status":"ok"}`,
		},
		{
			name:   "BelowThreshold",
			checks: map[string]CheckFunc{"flaky": failing("temporary")},
			runs:   2,
			status: http.StatusOK,
			body:   `{"status":"ok"}`,
		},
		{
			name:   "Failing",
			checks: map[string]CheckFunc{"gc": failing("pause too long"), "goroutines": passing()},
			runs:   3,
			status: http.StatusServiceUnavailable,
			body:   `{"status":"unhealthy","checks":{"gc":"pause too long"}}`,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			h := New(Options{})
			for name, fn := range tt.checks {
				h.Add(Liveness, name, time.Second, fn)
			}
			runAll(h, tt.runs)

			w := get(t, h.LiveEndpoint)
			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}

func TestReadyEndpoint(t *testing.T) {
	h := New(Options{FailureThreshold: 1})
	h.Add(Readiness, "postgres", time.Second, passing())
	h.Add(Readiness, "redis", time.Second, failing("dial tcp: connection refused"))
	h.Add(Liveness, "goroutines", time.Second, failing("ignored by readiness"))

	w := get(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"_readiness":"service is not ready"}}`, w.Body.String())

	h.SetReady(true)
	assert.True(t, h.IsReady())
	assert.Equal(t, http.StatusOK, get(t, h.ReadyEndpoint).Code)

	runAll(h, 1)
	assert.False(t, h.IsReady())
	w = get(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"redis":"dial tcp: connection refused"}}`, w.Body.String())
}

func TestProbe_Recovery(t *testing.T) {
	var broken atomic.Bool
	broken.Store(true)

	h := New(Options{FailureThreshold: 2, SuccessThreshold: 2})
	h.Add(Readiness, "kafka", time.Second, func(context.Context) error {
		if broken.Load() {
			return errors.New("no brokers")
		}
		return nil
	})
	h.SetReady(true)

	runAll(h, 2)
	require.False(t, h.IsReady())

	broken.Store(false)
	runAll(h, 1)
	assert.False(t, h.IsReady(), "one success is below the threshold")
	runAll(h, 1)
	assert.True(t, h.IsReady())
}

func TestProbe_Timeout(t *testing.T) {
	h := New(Options{FailureThreshold: 1})
	h.Add(Readiness, "slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	runAll(h, 1)
	assert.Equal(t, context.DeadlineExceeded.Error(), h.failures(Readiness)["slow"])
}

func TestStartStop(t *testing.T) {
	var calls atomic.Int32
	h := New(Options{})
	h.Add(Liveness, "count", time.Second, func(context.Context) error {
		calls.Add(1)
		return nil
	})

	h.Start(context.Background(), 5*time.Millisecond)
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	h.Stop()
	h.Stop()

	time.Sleep(20 * time.Millisecond)
	stopped := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, calls.Load())
}

func TestConcurrentAccess(t *testing.T) {
	h := New(Options{})
	h.Add(Readiness, "postgres", time.Second, passing())
	h.SetReady(true)
	h.Start(context.Background(), time.Millisecond)
	defer h.Stop()

	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			for range 50 {
				_ = h.IsReady()
				h.ReadyEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		})
	}
	wg.Wait()
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestCheckers(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, PingCheck(pinger{})(ctx))
	assert.EqualError(t, PingCheck(pinger{err: errors.New("down")})(ctx), "down")

	assert.NoError(t, GoroutineCountCheck(1_000_000)(ctx))
	assert.Error(t, GoroutineCountCheck(0)(ctx))

	assert.NoError(t, GCMaxPauseCheck(time.Hour)(ctx))

	dir := t.TempDir()
	require.NoError(t, DirWritableCheck(dir)(ctx))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch file must be removed")

	assert.Error(t, DirWritableCheck(filepath.Join(dir, "missing"))(ctx))
}
