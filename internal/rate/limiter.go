// Package rate implements a fixed-window request limiter over the cache
// backend, so limits are shared across instances when Redis backs the cache.
package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/authgrid/internal/cache"
)

type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	CurrentHits int64
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// FixedWindow counts hits per window-aligned bucket. The bucket key embeds
// the window start so expiry and rollover need no coordination.
type FixedWindow struct {
	Cache  cache.Client
	Prefix string
	Max    int64
	Window time.Duration
}

func NewFixedWindow(c cache.Client, prefix string, max int, window time.Duration) *FixedWindow {
	if prefix == "" {
		prefix = "rl"
	}
	if window <= 0 {
		window = time.Minute
	}
	return &FixedWindow{Cache: c, Prefix: prefix, Max: int64(max), Window: window}
}

func (l *FixedWindow) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.Window)
	bucket := fmt.Sprintf("%s:%s:%d", l.Prefix, strings.ReplaceAll(key, " ", "_"), winStart.Unix())

	hits := l.Cache.Incr(ctx, bucket, l.Window)
	res := Result{
		CurrentHits: hits,
		Remaining:   l.Max - hits,
	}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if hits > l.Max {
		res.RetryAfter = winStart.Add(l.Window).Sub(now)
		return res, nil
	}
	res.Allowed = true
	return res, nil
}

// Noop allows everything; used when limiting is disabled.
type Noop struct{}

func (Noop) Allow(ctx context.Context, key string) (Result, error) {
	return Result{Allowed: true, Remaining: 1 << 30}, nil
}
