// Package pg is the Postgres store driver, built on pgxpool.
package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/authgrid/internal/domain/repository"
)

type Config struct {
	DSN             string
	MaxConns        int32
	ConnMaxLifetime string
}

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.ConnMaxLifetime != "" {
		if d, err := time.ParseDuration(cfg.ConnMaxLifetime); err == nil {
			pc.MaxConnLifetime = d
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("pg: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Clients() repository.ClientRepository              { return &clientRepo{pool: s.pool} }
func (s *Store) Scopes() repository.ScopeRepository                { return &scopeRepo{pool: s.pool} }
func (s *Store) AuthCodes() repository.AuthorizationCodeRepository { return &authCodeRepo{pool: s.pool} }
func (s *Store) Tokens() repository.TokenRepository                { return &tokenRepo{pool: s.pool} }
func (s *Store) DeviceCodes() repository.DeviceCodeRepository      { return &deviceRepo{pool: s.pool} }
func (s *Store) Orgs() repository.OrgMembershipRepository          { return &orgRepo{pool: s.pool} }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }
func (s *Store) Close()                         { s.pool.Close() }
