// Package queue runs background jobs in process on a single worker.
//
// Jobs are not persisted: anything still queued when the process stops is
// lost.
package queue

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Known job types.
const (
	TypeSendEmail       = "send-email"
	TypeProcessImage    = "process-image"
	TypeUpdateInventory = "update-inventory"
	TypeGenerateReport  = "generate-report"
)

// Job is a unit of background work.
type Job struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Data       map[string]any `json:"data,omitempty"`
	Priority   int            `json:"priority"`
	Delay      time.Duration  `json:"delay,omitempty"`
	EnqueuedAt time.Time      `json:"enqueuedAt"`

	seq     uint64
	readyAt time.Time
}

// Handler executes one job.
type Handler func(ctx context.Context, job Job) error

// Status is a snapshot of the queue.
type Status struct {
	TotalJobs  int         `json:"totalJobs"`
	Processing bool        `json:"processing"`
	Jobs       []JobStatus `json:"jobs"`
}

// JobStatus describes one pending job.
type JobStatus struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Priority int    `json:"priority"`
}

// Queue is a priority queue drained by one worker. Higher priorities run
// first and equal priorities run in insertion order. A job with a Delay is
// not eligible before EnqueuedAt+Delay.
type Queue struct {
	lg  *zap.Logger
	now func() time.Time

	mu         sync.Mutex
	jobs       []*Job
	seq        uint64
	processing bool
	handlers   map[string]Handler
	wake       chan struct{}

	processed metric.Int64Counter
	failed    metric.Int64Counter
}

// New creates a Queue reporting metrics to meter.
func New(lg *zap.Logger, meter metric.Meter) (*Queue, error) {
	q := &Queue{
		lg:       lg,
		now:      time.Now,
		handlers: make(map[string]Handler),
		wake:     make(chan struct{}, 1),
	}

	var err error
	if q.processed, err = meter.Int64Counter("queue.jobs.processed",
		metric.WithDescription("Jobs completed successfully"),
	); err != nil {
		return nil, errors.Wrap(err, "processed counter")
	}
	if q.failed, err = meter.Int64Counter("queue.jobs.failed",
		metric.WithDescription("Jobs that returned an error"),
	); err != nil {
		return nil, errors.Wrap(err, "failed counter")
	}
	if _, err = meter.Int64ObservableGauge("queue.depth",
		metric.WithDescription("Jobs waiting to run"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			q.mu.Lock()
			n := len(q.jobs)
			q.mu.Unlock()
			o.Observe(int64(n))
			return nil
		}),
	); err != nil {
		return nil, errors.Wrap(err, "depth gauge")
	}
	return q, nil
}

// Handle registers the handler for a job type, replacing any previous one.
func (q *Queue) Handle(jobType string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = h
}

// Add enqueues job and returns its id.
func (q *Queue) Add(job Job) string {
	now := q.now()

	q.mu.Lock()
	q.seq++
	job.ID = "job_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + uuid.NewString()[:8]
	job.EnqueuedAt = now
	job.seq = q.seq
	job.readyAt = now.Add(job.Delay)
	q.jobs = append(q.jobs, &job)
	q.mu.Unlock()

	q.lg.Info("Job added to queue", zap.String("job_id", job.ID), zap.String("type", job.Type))
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return job.ID
}

// Status returns the pending jobs in the order they will run if all are
// ready.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := make([]*Job, len(q.jobs))
	copy(pending, q.jobs)
	sort.Slice(pending, func(i, k int) bool { return before(pending[i], pending[k]) })

	st := Status{TotalJobs: len(pending), Processing: q.processing, Jobs: make([]JobStatus, len(pending))}
	for i, j := range pending {
		st.Jobs[i] = JobStatus{ID: j.ID, Type: j.Type, Priority: j.Priority}
	}
	return st
}

// Run drains the queue until ctx is done.
func (q *Queue) Run(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		job, wait := q.next()
		if job != nil {
			q.execute(ctx, *job)
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		if wait <= 0 {
			wait = time.Hour
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return nil
		case <-q.wake:
		case <-timer.C:
		}
	}
}

// next pops the job to run now. When none is ready it returns how long until
// the earliest delayed job becomes ready, or zero if the queue is empty.
func (q *Queue) next() (*Job, time.Duration) {
	now := q.now()

	q.mu.Lock()
	defer q.mu.Unlock()

	best := -1
	var wait time.Duration
	for i, j := range q.jobs {
		if j.readyAt.After(now) {
			if d := j.readyAt.Sub(now); wait == 0 || d < wait {
				wait = d
			}
			continue
		}
		if best < 0 || before(j, q.jobs[best]) {
			best = i
		}
	}
	if best < 0 {
		q.processing = false
		return nil, wait
	}

	job := q.jobs[best]
	q.jobs = append(q.jobs[:best], q.jobs[best+1:]...)
	q.processing = true
	return job, 0
}

func (q *Queue) execute(ctx context.Context, job Job) {
	q.mu.Lock()
	h, ok := q.handlers[job.Type]
	q.mu.Unlock()

	lg := q.lg.With(zap.String("job_id", job.ID), zap.String("type", job.Type))
	attrs := metric.WithAttributes(attribute.String("type", job.Type))
	if !ok {
		lg.Warn("Unknown job type")
		q.failed.Add(ctx, 1, attrs)
		return
	}

	start := q.now()
	if err := call(ctx, h, job); err != nil {
		lg.Error("Job failed", zap.Error(err))
		q.failed.Add(ctx, 1, attrs)
		return
	}
	lg.Info("Job completed", zap.Duration("duration", q.now().Sub(start)))
	q.processed.Add(ctx, 1, attrs)
}

// call runs h, turning a panic into an error so one job cannot stop the
// worker.
func call(ctx context.Context, h Handler, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()
	return h(ctx, job)
}

func before(a, b *Job) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.seq < b.seq
}
