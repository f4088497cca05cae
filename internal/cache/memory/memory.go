// Package memory implements cache.Client over an in-process store.
package memory

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Mem is an in-process cache backed by go-cache. The mutex covers the
// read-modify-write ops (SetNX on top of Add is already atomic in go-cache,
// but GetDel and Incr are not).
type Mem struct {
	mu sync.Mutex
	c  *gocache.Cache
}

// New creates a memory cache with the given default TTL.
func New(defaultTTL time.Duration) *Mem {
	if defaultTTL <= 0 {
		defaultTTL = 2 * time.Minute
	}
	return &Mem{c: gocache.New(defaultTTL, time.Minute)}
}

func (m *Mem) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false
	}
	b, _ := v.([]byte)
	return b, true
}

func (m *Mem) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	m.c.Set(key, value, ttl)
}

func (m *Mem) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) bool {
	return m.c.Add(key, value, ttl) == nil
}

func (m *Mem) GetDel(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false
	}
	m.c.Delete(key)
	b, _ := v.([]byte)
	return b, true
}

func (m *Mem) Delete(_ context.Context, key string) {
	m.c.Delete(key)
}

func (m *Mem) Incr(_ context.Context, key string, ttl time.Duration) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	// IncrementInt64 keeps the expiry fixed at the first insert, which gives
	// the fixed-window semantics the rate limiter wants.
	if n, err := m.c.IncrementInt64(key, 1); err == nil {
		return n
	}
	m.c.Set(key, int64(1), ttl)
	return 1
}

func (m *Mem) Close() error {
	m.c.Flush()
	return nil
}
