package oauth

import (
	"context"
	"strings"
	"time"

	"github.com/dropDatabas3/authgrid/internal/domain/repository"
	jwtx "github.com/dropDatabas3/authgrid/internal/jwt"
	"github.com/dropDatabas3/authgrid/internal/observability/logger"
	tokens "github.com/dropDatabas3/authgrid/internal/security/token"
	"github.com/dropDatabas3/authgrid/internal/store"
)

// IntrospectService implements RFC 7662. The response is never an error
// oracle: anything invalid, expired, revoked or unknown is {"active":false}.
type IntrospectService interface {
	Introspect(ctx context.Context, token, hint string) *IntrospectionResponse
}

// IntrospectionResponse is the RFC 7662 §2.2 body.
type IntrospectionResponse struct {
	Active    bool           `json:"active"`
	Scope     string         `json:"scope,omitempty"`
	ClientID  string         `json:"client_id,omitempty"`
	TokenType string         `json:"token_type,omitempty"`
	Exp       int64          `json:"exp,omitempty"`
	Iat       int64          `json:"iat,omitempty"`
	Sub       string         `json:"sub,omitempty"`
	Jti       string         `json:"jti,omitempty"`
	Cnf       map[string]any `json:"cnf,omitempty"`
}

type IntrospectDeps struct {
	Store  store.Store
	Issuer *jwtx.Issuer
}

type introspectService struct {
	store  store.Store
	issuer *jwtx.Issuer
}

func NewIntrospectService(d IntrospectDeps) IntrospectService {
	return &introspectService{store: d.Store, issuer: d.Issuer}
}

var inactive = &IntrospectionResponse{Active: false}

func (s *introspectService) Introspect(ctx context.Context, token, hint string) *IntrospectionResponse {
	if token == "" {
		return inactive
	}

	// access tokens are JWTs; refresh tokens are opaque. The hint is only
	// an ordering optimization, so try the cheap parse first.
	if hint != "refresh_token" {
		if resp := s.introspectAccess(ctx, token); resp != nil {
			return resp
		}
	}
	if resp := s.introspectRefresh(ctx, token); resp != nil {
		return resp
	}
	return inactive
}

func (s *introspectService) introspectAccess(ctx context.Context, token string) *IntrospectionResponse {
	claims, err := s.issuer.Parse(token)
	if err != nil {
		return nil
	}

	row, err := s.store.Tokens().GetAccess(ctx, claims.ID)
	if err != nil || row.Revoked {
		logger.From(ctx).Debug("introspect miss", logger.Op("oauth.introspect"))
		return inactive
	}

	resp := &IntrospectionResponse{
		Active:    true,
		Scope:     strings.Join(claims.Scopes, " "),
		ClientID:  claims.ClientID,
		TokenType: tokenType(claims.JKT),
		Exp:       claims.ExpiresAt.Unix(),
		Iat:       claims.IssuedAt.Unix(),
		Sub:       claims.Subject,
		Jti:       claims.ID,
	}
	if claims.JKT != "" {
		resp.Cnf = map[string]any{"jkt": claims.JKT}
	}
	return resp
}

func (s *introspectService) introspectRefresh(ctx context.Context, token string) *IntrospectionResponse {
	rt, err := s.store.Tokens().GetRefreshByHash(ctx, tokens.SHA256Base64URL(token))
	if err != nil || rt.Revoked || timeExpired(rt.ExpiresAt) {
		return nil
	}
	at, err := s.store.Tokens().GetAccess(ctx, rt.AccessTokenID)
	if err != nil {
		return nil
	}
	return &IntrospectionResponse{
		Active:    true,
		Scope:     strings.Join(at.Scopes, " "),
		ClientID:  at.ClientID,
		TokenType: "refresh_token",
		Exp:       rt.ExpiresAt.Unix(),
		Iat:       rt.CreatedAt.Unix(),
		Sub:       subjectOf(at),
		Jti:       rt.ID,
	}
}

func timeExpired(t time.Time) bool { return time.Now().After(t) }

func subjectOf(at *repository.AccessToken) string {
	if at.UserID != "" {
		return at.UserID
	}
	return at.ClientID
}
