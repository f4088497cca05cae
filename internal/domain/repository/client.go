package repository

import (
	"context"
	"time"
)

// Client represents a registered OAuth client.
type Client struct {
	ID           string // internal row id (UUIDv7)
	ClientID     string // public identifier
	Name         string
	SecretHash   string // bcrypt; empty for public clients
	RedirectURIs []string
	// OrganizationID scopes the client to one organization. Nil means the
	// client is global and any user may authorize it.
	OrganizationID *string
	PersonalAccess bool // issues personal access tokens
	PasswordClient bool // legacy flag; the password grant itself is disabled
	Revoked        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Confidential reports whether the client holds a secret.
func (c *Client) Confidential() bool {
	return c.SecretHash != ""
}

// ClientInput carries the data to create or update a client.
type ClientInput struct {
	ClientID       string
	Name           string
	SecretHash     string
	RedirectURIs   []string
	OrganizationID *string
	PersonalAccess bool
	PasswordClient bool
}

// ClientRepository defines operations over OAuth clients.
type ClientRepository interface {
	// GetByClientID fetches a client by its public client_id.
	// Returns ErrNotFound if it does not exist.
	GetByClientID(ctx context.Context, clientID string) (*Client, error)

	// Create inserts a new client. Returns ErrConflict when the client_id
	// is already taken.
	Create(ctx context.Context, input ClientInput) (*Client, error)

	// Update replaces the mutable fields of an existing client.
	Update(ctx context.Context, input ClientInput) (*Client, error)

	// Revoke marks the client revoked and cascade-revokes every token,
	// authorization code, and device code derived from it, atomically.
	Revoke(ctx context.Context, clientID string) error
}

// OrgMembershipRepository answers the single organization question the core
// needs: does this user belong to this organization.
type OrgMembershipRepository interface {
	IsMember(ctx context.Context, organizationID, userID string) (bool, error)

	// AddMember exists for seeding and tests; membership administration is
	// out of scope.
	AddMember(ctx context.Context, organizationID, userID string) error
}
