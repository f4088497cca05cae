package repository

import "context"

// Scope is immutable reference data, referenced by name.
type Scope struct {
	Name        string
	Description string
	IsDefault   bool
}

// ScopeRepository defines operations over OAuth scopes.
type ScopeRepository interface {
	// GetByName fetches a scope. Returns ErrNotFound if unknown.
	GetByName(ctx context.Context, name string) (*Scope, error)

	// List returns all scopes ordered by name.
	List(ctx context.Context) ([]Scope, error)

	// Defaults returns the scopes granted when a request carries none.
	Defaults(ctx context.Context) ([]Scope, error)

	// Upsert creates or replaces a scope definition (seeding).
	Upsert(ctx context.Context, s Scope) error
}
