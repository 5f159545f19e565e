// Package cache provides the optional TTL cache fronting catalog reads.
//
// Callers always receive a Provider. When caching is disabled the Noop
// provider is selected at startup, so call sites never check for presence.
package cache

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
)

// Provider is a key/value store with per-entry TTL. Values are stored as
// JSON and decoded into dst on Get.
type Provider interface {
	// Get decodes the value stored under key into dst and reports whether
	// the key was present.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
	Enabled() bool
}

// Driver selects a Provider implementation.
type Driver string

const (
	DriverNone   Driver = "none"
	DriverMemory Driver = "memory"
	DriverRedis  Driver = "redis"
)

// Config selects and configures the cache backend.
type Config struct {
	Driver    Driver
	RedisURL  string
	KeyPrefix string
	// Capacity bounds the number of entries of the memory driver.
	Capacity  int
}

// New returns the Provider selected by cfg. The returned close function
// releases backend resources and is never nil.
func New(ctx context.Context, cfg Config) (Provider, func() error, error) {
	switch cfg.Driver {
	case "", DriverNone:
		return Noop{}, func() error { return nil }, nil
	case DriverMemory:
		m := NewMemory(ctx, cfg.Capacity, true)
		return m, func() error { m.Close(); return nil }, nil
	case DriverRedis:
		r, err := DialRedis(ctx, cfg.RedisURL, cfg.KeyPrefix)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown cache driver %q", cfg.Driver)
	}
}

// Key builders shared by the catalog.

// ProductKey is the cache key of a single product.
func ProductKey(id string) string {
	return "product:" + id
}

// ProductListPrefix prefixes every cached product listing.
const ProductListPrefix = "products:"

// ProductListKey derives a listing key from its filter. The filter is JSON
// encoded and base64'd so distinct filters never collide.
func ProductListKey(filter any) string {
	data, err := json.Marshal(filter)
	if err != nil {
		data = []byte("{}")
	}
	return ProductListPrefix + base64.StdEncoding.EncodeToString(data)
}

func encode(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, errors.Wrap(err, "encode cache value")
	}
	return data, nil
}

func decode(data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return errors.Wrap(err, "decode cache value")
	}
	return nil
}
