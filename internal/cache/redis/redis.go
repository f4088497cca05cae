// Package redis implements cache.Client over a Redis server.
package redis

import (
	"context"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// Cache is a Redis-backed cache.Client. All operations are best-effort:
// a dead Redis degrades to cache misses, never to request failures.
type Cache struct {
	c      *rdb.Client
	prefix string
}

// New connects to Redis at addr using the given logical DB.
func New(addr string, db int, prefix string) *Cache {
	return &Cache{
		c:      rdb.NewClient(&rdb.Options{Addr: addr, DB: db}),
		prefix: prefix,
	}
}

func (r *Cache) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

func (r *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := r.c.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

func (r *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	_ = r.c.Set(ctx, r.key(key), value, ttl).Err()
}

func (r *Cache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	ok, err := r.c.SetNX(ctx, r.key(key), value, ttl).Result()
	return err == nil && ok
}

func (r *Cache) GetDel(ctx context.Context, key string) ([]byte, bool) {
	b, err := r.c.GetDel(ctx, r.key(key)).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

func (r *Cache) Delete(ctx context.Context, key string) {
	_ = r.c.Del(ctx, r.key(key)).Err()
}

func (r *Cache) Incr(ctx context.Context, key string, ttl time.Duration) int64 {
	k := r.key(key)
	pipe := r.c.TxPipeline()
	incr := pipe.Incr(ctx, k)
	// NX so only the first increment of a window sets the expiry.
	pipe.ExpireNX(ctx, k, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0
	}
	return incr.Val()
}

func (r *Cache) Close() error {
	return r.c.Close()
}

// Ping verifies connectivity at boot.
func (r *Cache) Ping(ctx context.Context) error {
	return r.c.Ping(ctx).Err()
}
