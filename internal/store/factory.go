package store

import (
	"context"

	"github.com/dropDatabas3/authgrid/internal/store/memory"
	"github.com/dropDatabas3/authgrid/internal/store/pg"
)

// New builds a Store for the configured driver.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return pg.New(ctx, pg.Config{
			DSN:             cfg.DSN,
			MaxConns:        cfg.MaxConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
	case "memory", "":
		return memory.New(), nil
	default:
		return nil, ErrUnknownDriver(cfg.Driver)
	}
}
