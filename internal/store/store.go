// Package store wires the persistence drivers behind a single aggregate.
package store

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/authgrid/internal/domain/repository"
)

// Store aggregates all repositories of one backing driver.
type Store interface {
	Clients() repository.ClientRepository
	Scopes() repository.ScopeRepository
	AuthCodes() repository.AuthorizationCodeRepository
	Tokens() repository.TokenRepository
	DeviceCodes() repository.DeviceCodeRepository
	Orgs() repository.OrgMembershipRepository

	Ping(ctx context.Context) error
	Close()
}

// Config selects and configures the driver.
type Config struct {
	Driver          string // "postgres" | "memory"
	DSN             string
	MaxConns        int32
	ConnMaxLifetime string
}

// ErrUnknownDriver is returned by New for unrecognized driver names.
func ErrUnknownDriver(name string) error {
	return fmt.Errorf("store: unknown driver %q", name)
}
