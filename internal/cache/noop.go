package cache

import (
	"context"
	"time"
)

// Noop is the Provider used when caching is disabled. Reads always miss and
// writes always succeed.
type Noop struct{}

var _ Provider = Noop{}

func (Noop) Get(context.Context, string, any) (bool, error)         { return false, nil }
func (Noop) Set(context.Context, string, any, time.Duration) error { return nil }
func (Noop) Delete(context.Context, ...string) error               { return nil }
func (Noop) DeletePrefix(context.Context, string) error            { return nil }
func (Noop) Enabled() bool                                         { return false }
