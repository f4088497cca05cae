package oauth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/authgrid/internal/domain/repository"
	"github.com/dropDatabas3/authgrid/internal/observability/logger"
	"github.com/dropDatabas3/authgrid/internal/store"
)

// ClientRegistry resolves and authenticates OAuth clients.
type ClientRegistry struct {
	store store.Store
}

func NewClientRegistry(s store.Store) *ClientRegistry {
	return &ClientRegistry{store: s}
}

// Get fetches an active client. Revoked or unknown clients are both
// invalid_client; callers never learn which.
func (r *ClientRegistry) Get(ctx context.Context, clientID string) (*repository.Client, error) {
	if clientID == "" {
		return nil, ErrInvalidClient
	}
	c, err := r.store.Clients().GetByClientID(ctx, clientID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrInvalidClient
		}
		return nil, ErrServerError
	}
	if c.Revoked {
		return nil, ErrInvalidClient
	}
	return c, nil
}

// Authenticate verifies client credentials. Confidential clients must
// present their secret (bcrypt compare); public clients must not present one.
func (r *ClientRegistry) Authenticate(ctx context.Context, clientID, secret string) (*repository.Client, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.client.authenticate"))

	c, err := r.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}

	if c.Confidential() {
		if secret == "" {
			return nil, ErrInvalidClient
		}
		if bcrypt.CompareHashAndPassword([]byte(c.SecretHash), []byte(secret)) != nil {
			log.Warn("client secret mismatch", logger.ClientID(clientID))
			return nil, ErrInvalidClient
		}
		return c, nil
	}

	if secret != "" {
		return nil, ErrInvalidClient
	}
	return c, nil
}

// ValidateRedirectURI requires a byte-exact match against the registered
// list. No prefix matching, no normalization: "https://a/cb" and
// "https://a/cb/" are different URIs.
func (r *ClientRegistry) ValidateRedirectURI(c *repository.Client, uri string) error {
	if uri == "" {
		return ErrInvalidRequest
	}
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return nil
		}
	}
	return ErrInvalidRequest
}

// UserHasAccess reports whether a user may authorize this client. Global
// clients (no organization) are open to everyone.
func (r *ClientRegistry) UserHasAccess(ctx context.Context, c *repository.Client, userID string) (bool, error) {
	if c.OrganizationID == nil {
		return true, nil
	}
	ok, err := r.store.Orgs().IsMember(ctx, *c.OrganizationID, userID)
	if err != nil {
		return false, ErrServerError
	}
	return ok, nil
}
