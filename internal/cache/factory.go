package cache

import (
	"fmt"

	"github.com/dropDatabas3/authgrid/internal/cache/memory"
	"github.com/dropDatabas3/authgrid/internal/cache/redis"
)

// New creates a cache client for the configured backend.
func New(cfg Config) (Client, error) {
	switch cfg.Kind {
	case "redis":
		return redis.New(cfg.Addr, cfg.DB, cfg.Prefix), nil
	case "memory", "":
		return memory.New(cfg.DefaultTTL), nil
	default:
		return nil, fmt.Errorf("cache: unknown kind %q", cfg.Kind)
	}
}
