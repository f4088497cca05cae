package repository

import (
	"context"
	"time"
)

// AuthorizationCode is a single-use grant bound to a PKCE challenge and an
// exact redirect URI. The row id is the code handed to the client.
type AuthorizationCode struct {
	ID              string
	UserID          string
	ClientID        string // public client_id
	Scopes          []string
	Challenge       string
	ChallengeMethod string // "S256" | "plain"
	RedirectURI     string
	ExpiresAt       time.Time
	Revoked         bool // consumed flag
	CreatedAt       time.Time
}

// AuthorizationCodeRepository persists authorization codes.
type AuthorizationCodeRepository interface {
	// Create inserts a fresh code.
	Create(ctx context.Context, code *AuthorizationCode) error

	// Get fetches a code by id regardless of its consumed state.
	// Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, id string) (*AuthorizationCode, error)

	// RevokeByClient revokes all codes of a client (cascade path).
	RevokeByClient(ctx context.Context, clientID string) error

	// DeleteExpired removes rows already past expiry. Out-of-band sweep
	// only; correctness never depends on it.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
