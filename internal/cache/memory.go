package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultCapacity bounds a Memory cache created with a non-positive capacity.
const DefaultCapacity = 10_000

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// Memory is an in-process Provider backed by ttlcache. It holds at most
// capacity entries and evicts the least recently used one when full.
type Memory struct {
	items *ttlcache.Cache[string, memoryEntry]
	now   func() time.Time

	started bool
	once    sync.Once
}

var _ Provider = (*Memory)(nil)

// NewMemory creates a Memory cache. With cleanup set, expired entries are
// reclaimed in the background until ctx is cancelled or Close is called;
// otherwise they are dropped on read.
func NewMemory(ctx context.Context, capacity int, cleanup bool) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	m := &Memory{
		items: ttlcache.New[string, memoryEntry](
			ttlcache.WithCapacity[string, memoryEntry](uint64(capacity)),
			ttlcache.WithDisableTouchOnHit[string, memoryEntry](),
		),
		now: time.Now,
	}
	if cleanup {
		m.started = true
		go m.items.Start()
		go func() {
			<-ctx.Done()
			m.Close()
		}()
	}
	return m
}

// Close stops background cleanup.
func (m *Memory) Close() {
	m.once.Do(func() {
		if m.started {
			m.items.Stop()
		}
	})
}

func (m *Memory) Get(_ context.Context, key string, dst any) (bool, error) {
	it := m.items.Get(key)
	if it == nil {
		return false, nil
	}
	e := it.Value()
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		m.items.Delete(key)
		return false, nil
	}
	if err := decode(e.data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	e := memoryEntry{data: data}
	expire := ttlcache.NoTTL
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
		expire = ttl
	}
	m.items.Set(key, e, expire)
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.items.Delete(k)
	}
	return nil
}

func (m *Memory) DeletePrefix(_ context.Context, prefix string) error {
	for _, k := range m.items.Keys() {
		if strings.HasPrefix(k, prefix) {
			m.items.Delete(k)
		}
	}
	return nil
}

// Len reports the number of stored entries, expired ones included until
// they are reclaimed.
func (m *Memory) Len() int {
	return m.items.Len()
}

func (m *Memory) Enabled() bool { return true }
