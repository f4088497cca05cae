package oauth

import (
	"context"

	"github.com/dropDatabas3/authgrid/internal/domain/repository"
	jwtx "github.com/dropDatabas3/authgrid/internal/jwt"
	"github.com/dropDatabas3/authgrid/internal/observability/logger"
	tokens "github.com/dropDatabas3/authgrid/internal/security/token"
	"github.com/dropDatabas3/authgrid/internal/store"
)

// RevokeService implements RFC 7009. Revocation is idempotent: unknown or
// already-revoked tokens still succeed, and revoking one half of a pair
// revokes the other.
type RevokeService interface {
	Revoke(ctx context.Context, client *repository.Client, token, hint string) error
}

type RevokeDeps struct {
	Store  store.Store
	Issuer *jwtx.Issuer
}

type revokeService struct {
	store  store.Store
	issuer *jwtx.Issuer
}

func NewRevokeService(d RevokeDeps) RevokeService {
	return &revokeService{store: d.Store, issuer: d.Issuer}
}

func (s *revokeService) Revoke(ctx context.Context, client *repository.Client, token, hint string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.revoke"))
	if token == "" {
		return nil
	}

	if hint != "refresh_token" {
		if claims, err := s.issuer.Parse(token); err == nil {
			row, err := s.store.Tokens().GetAccess(ctx, claims.ID)
			if err != nil || row.ClientID != client.ClientID {
				// a client may only revoke its own tokens; pretend success
				return nil
			}
			if err := s.store.Tokens().RevokeAccess(ctx, claims.ID); err != nil {
				log.Error("revoke access", logger.Err(err))
				return ErrServerError
			}
			return nil
		}
	}

	rt, err := s.store.Tokens().GetRefreshByHash(ctx, tokens.SHA256Base64URL(token))
	if err != nil {
		return nil
	}
	at, err := s.store.Tokens().GetAccess(ctx, rt.AccessTokenID)
	if err != nil || at.ClientID != client.ClientID {
		return nil
	}
	if err := s.store.Tokens().RevokeRefresh(ctx, rt.ID); err != nil {
		log.Error("revoke refresh", logger.Err(err))
		return ErrServerError
	}
	return nil
}
