// Package cache provides a small caching abstraction with multi-backend
// support.
//
// Backends:
//   - Memory (in-process, for development/testing)
//   - Redis (distributed, for production)
//
// The cache is best-effort ephemeral state: DPoP jti replay tracking, pushed
// authorization requests, and rate-limit counters. Nothing authoritative
// lives here.
package cache

import (
	"context"
	"time"
)

// Client defines the cache operations.
type Client interface {
	// Get fetches a value. The bool reports whether the key existed.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a value with a TTL. A zero TTL uses the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)

	// SetNX stores a value only if the key is absent and reports whether it
	// was stored. Used for replay detection: the second writer loses.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) bool

	// GetDel atomically fetches and removes a key. Used for one-shot values
	// like pushed authorization requests.
	GetDel(ctx context.Context, key string) ([]byte, bool)

	// Delete removes a key.
	Delete(ctx context.Context, key string)

	// Incr increments a counter, creating it with the TTL on first use, and
	// returns the new value.
	Incr(ctx context.Context, key string, ttl time.Duration) int64

	// Close releases backend resources.
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Kind       string // "memory" | "redis"
	Addr       string
	DB         int
	Prefix     string
	DefaultTTL time.Duration
}
