package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	q, err := New(zap.NewNop(), noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	return q
}

func TestNext_PriorityThenFIFO(t *testing.T) {
	q := newTestQueue(t)

	q.Add(Job{Type: "a", Priority: 0})
	q.Add(Job{Type: "b", Priority: 5})
	q.Add(Job{Type: "c", Priority: 5})
	q.Add(Job{Type: "d", Priority: 1})

	var order []string
	for {
		j, _ := q.next()
		if j == nil {
			break
		}
		order = append(order, j.Type)
	}
	assert.Equal(t, []string{"b", "c", "d", "a"}, order)
}

func TestNext_HonorsDelay(t *testing.T) {
	q := newTestQueue(t)
	now := time.Unix(1700000000, 0)
	q.now = func() time.Time { return now }

	q.Add(Job{Type: "later", Priority: 10, Delay: time.Minute})
	q.Add(Job{Type: "now"})

	j, _ := q.next()
	require.NotNil(t, j)
	assert.Equal(t, "now", j.Type)

	j, wait := q.next()
	assert.Nil(t, j)
	assert.Equal(t, time.Minute, wait)

	now = now.Add(time.Minute)
	j, _ = q.next()
	require.NotNil(t, j)
	assert.Equal(t, "later", j.Type)
}

func TestStatus(t *testing.T) {
	q := newTestQueue(t)
	low := q.Add(Job{Type: TypeGenerateReport})
	high := q.Add(Job{Type: TypeSendEmail, Priority: 3})

	st := q.Status()
	assert.Equal(t, 2, st.TotalJobs)
	assert.False(t, st.Processing)
	require.Len(t, st.Jobs, 2)
	assert.Equal(t, high, st.Jobs[0].ID)
	assert.Equal(t, low, st.Jobs[1].ID)
	assert.Equal(t, 3, st.Jobs[0].Priority)
}

func TestRun_ExecutesJobs(t *testing.T) {
	q := newTestQueue(t)

	var (
		mu   sync.Mutex
		seen []string
		done = make(chan struct{})
	)
	q.Handle("work", func(_ context.Context, job Job) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, job.Data["n"].(string))
		if len(seen) == 2 {
			close(done)
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- q.Run(ctx) }()

	q.Add(Job{Type: "unknown"})
	q.Add(Job{Type: "work", Data: map[string]any{"n": "1"}})
	q.Add(Job{Type: "work", Data: map[string]any{"n": "2"}})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("jobs were not processed")
	}
	cancel()
	require.NoError(t, <-errc)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"1", "2"}, seen)
	assert.Zero(t, q.Status().TotalJobs)
}

func TestCall_RecoversPanic(t *testing.T) {
	err := call(context.Background(), func(context.Context, Job) error {
		panic("nil map")
	}, Job{Type: "boom"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: nil map")
}

func TestRun_SurvivesPanickingHandler(t *testing.T) {
	q := newTestQueue(t)

	done := make(chan struct{})
	q.Handle("boom", func(context.Context, Job) error {
		var m map[string]int
		m["x"]++
		return nil
	})
	q.Handle("work", func(context.Context, Job) error {
		close(done)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- q.Run(ctx) }()

	q.Add(Job{Type: "boom", Priority: 1})
	q.Add(Job{Type: "work"})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker stopped after a panicking job")
	}
	cancel()
	require.NoError(t, <-errc)
	assert.False(t, q.Status().Processing)
}

func TestDefaultHandlers(t *testing.T) {
	q := newTestQueue(t)
	RegisterDefaults(q)

	for _, typ := range []string{TypeSendEmail, TypeProcessImage, TypeUpdateInventory, TypeGenerateReport} {
		_, ok := q.handlers[typ]
		assert.True(t, ok, typ)
	}

	err := q.handlers[TypeSendEmail](context.Background(), Job{ID: "j1", Data: map[string]any{}})
	require.Error(t, err)
	err = q.handlers[TypeSendEmail](context.Background(), Job{ID: "j2", Data: map[string]any{"to": "a@b.c"}})
	require.NoError(t, err)
}
