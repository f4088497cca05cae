package repository

import (
	"context"
	"time"
)

// DeviceCode is the state of one RFC 8628 device authorization.
// The opaque device_code is stored hashed; the user_code is short and stored
// as typed (normalized XXXX-XXXX form).
type DeviceCode struct {
	ID             string
	DeviceCodeHash string
	UserCode       string
	ClientID       string
	UserID         string // set when the user approves
	Scopes         []string
	// IntervalSeconds is the currently required gap between polls. Grows by
	// 5 on every premature poll (slow_down).
	IntervalSeconds int
	LastPolledAt    *time.Time
	UserAuthorized  bool
	Denied          bool
	ExpiresAt       time.Time
	Revoked         bool // redeemed or administratively killed
	CreatedAt       time.Time
}

// DeviceCodeRepository persists device authorization state.
type DeviceCodeRepository interface {
	// Create inserts a pending device code.
	Create(ctx context.Context, dc *DeviceCode) error

	// GetByDeviceCodeHash fetches by the hash of the polled device_code.
	GetByDeviceCodeHash(ctx context.Context, hash string) (*DeviceCode, error)

	// GetByUserCode fetches by the normalized user code.
	GetByUserCode(ctx context.Context, userCode string) (*DeviceCode, error)

	// Authorize conditionally binds the approving user
	// (WHERE user_authorized = false AND denied = false AND revoked = false)
	// and reports whether the transition happened.
	Authorize(ctx context.Context, id, userID string) (bool, error)

	// Deny conditionally marks the code denied; same condition as Authorize.
	Deny(ctx context.Context, id string) (bool, error)

	// RecordPoll stores the poll timestamp and the (possibly increased)
	// required interval.
	RecordPoll(ctx context.Context, id string, at time.Time, intervalSeconds int) error

	// RevokeByClient revokes all device codes of a client (cascade path).
	RevokeByClient(ctx context.Context, clientID string) error

	// DeleteExpired removes rows already past expiry (sweep).
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
