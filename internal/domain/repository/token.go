package repository

import (
	"context"
	"time"
)

// AccessToken is the persisted half of an issued JWT: the row id is the jti
// claim, so revocation checks are a primary-key lookup.
type AccessToken struct {
	ID       string
	UserID   string // empty for client_credentials tokens
	ClientID string
	Scopes   []string
	// JKT is the RFC 7638 thumbprint of the DPoP key the token is bound to.
	// Empty means plain bearer.
	JKT       string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// RefreshToken is the single-use opaque companion of an access token.
// Only the SHA-256 of the wire token is stored.
type RefreshToken struct {
	ID            string
	AccessTokenID string
	TokenHash     string
	ExpiresAt     time.Time
	Revoked       bool
	// RotatedTo is the id of the refresh token that replaced this one. Set
	// by rotation and used to revoke descendants on reuse detection.
	RotatedTo *string
	CreatedAt time.Time
}

// TokenRepository persists access/refresh token pairs.
type TokenRepository interface {
	// CreatePair inserts an access token and its refresh token in one
	// transaction. rt may be nil for grants that issue no refresh token.
	CreatePair(ctx context.Context, at *AccessToken, rt *RefreshToken) error

	// GetAccess fetches an access token row by id (jti).
	GetAccess(ctx context.Context, id string) (*AccessToken, error)

	// GetRefreshByHash fetches a refresh token by the hash of its wire form.
	GetRefreshByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)

	// ConsumeCodeAndCreatePair marks an authorization code consumed and
	// inserts the token pair in one transaction. The consumption is
	// conditional (WHERE id = ? AND revoked = false); exactly one of N
	// concurrent exchanges sees won=true, and a failed insert rolls the
	// consumption back so the code stays exchangeable.
	ConsumeCodeAndCreatePair(ctx context.Context, codeID string, at *AccessToken, rt *RefreshToken) (won bool, err error)

	// RedeemDeviceAndCreatePair revokes a device code for its one token
	// delivery and inserts the pair in the same transaction. Same
	// winner/rollback semantics as ConsumeCodeAndCreatePair.
	RedeemDeviceAndCreatePair(ctx context.Context, deviceCodeID string, at *AccessToken, rt *RefreshToken) (won bool, err error)

	// Rotate atomically revokes the old pair and inserts the new one. The
	// revocation is conditional on the old refresh token being unrevoked;
	// the losing side of a concurrent rotation gets rotated=false and no
	// new rows. On success the old row's rotated_to points at newRT.
	Rotate(ctx context.Context, oldRefreshID string, newAT *AccessToken, newRT *RefreshToken) (rotated bool, err error)

	// RevokeAccess revokes an access token and its paired refresh token.
	// Idempotent: revoking an unknown or already-revoked token is not an
	// error.
	RevokeAccess(ctx context.Context, accessTokenID string) error

	// RevokeRefresh revokes a refresh token and its paired access token.
	// Idempotent like RevokeAccess.
	RevokeRefresh(ctx context.Context, refreshTokenID string) error

	// RevokeDescendants follows the rotated_to chain from a refresh token
	// and revokes every pair it reaches. Called on refresh-token reuse to
	// contain a leaked token's lineage.
	RevokeDescendants(ctx context.Context, refreshTokenID string) error

	// RevokeAllByUser revokes every pair belonging to a user. Returns the
	// number of access tokens revoked.
	RevokeAllByUser(ctx context.Context, userID string) (int, error)

	// RevokeAllByClient revokes every pair issued to a client.
	RevokeAllByClient(ctx context.Context, clientID string) error

	// DeleteExpired removes token rows already past expiry (sweep).
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
