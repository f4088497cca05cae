package oauth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/authgrid/internal/domain/repository"
	jwtx "github.com/dropDatabas3/authgrid/internal/jwt"
	"github.com/dropDatabas3/authgrid/internal/metrics"
	"github.com/dropDatabas3/authgrid/internal/observability/logger"
	"github.com/dropDatabas3/authgrid/internal/security/pkce"
	tokens "github.com/dropDatabas3/authgrid/internal/security/token"
	"github.com/dropDatabas3/authgrid/internal/store"
)

// TokenDeps contains dependencies for the token service.
type TokenDeps struct {
	Store      store.Store
	Issuer     *jwtx.Issuer
	Clients    *ClientRegistry
	Scopes     *ScopeRegistry
	PKCE       pkce.Verifier
	Device     DeviceService
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type tokenService struct {
	store      store.Store
	issuer     *jwtx.Issuer
	clients    *ClientRegistry
	scopes     *ScopeRegistry
	pkce       pkce.Verifier
	device     DeviceService
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenService(d TokenDeps) TokenService {
	if d.AccessTTL <= 0 {
		d.AccessTTL = time.Hour
	}
	if d.RefreshTTL <= 0 {
		d.RefreshTTL = 30 * 24 * time.Hour
	}
	return &tokenService{
		store:      d.Store,
		issuer:     d.Issuer,
		clients:    d.Clients,
		scopes:     d.Scopes,
		pkce:       d.PKCE,
		device:     d.Device,
		accessTTL:  d.AccessTTL,
		refreshTTL: d.RefreshTTL,
	}
}

func (s *tokenService) Exchange(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	grant, err := ParseGrantType(req.GrantType)
	if err != nil {
		metrics.GrantRequests.WithLabelValues(req.GrantType, "unsupported").Inc()
		return nil, err
	}

	var resp *TokenResponse
	switch grant {
	case GrantAuthorizationCode:
		resp, err = s.exchangeAuthorizationCode(ctx, req)
	case GrantClientCredentials:
		resp, err = s.exchangeClientCredentials(ctx, req)
	case GrantRefreshToken:
		resp, err = s.exchangeRefreshToken(ctx, req)
	case GrantDeviceCode:
		resp, err = s.exchangeDeviceCode(ctx, req)
	case GrantTokenExchange:
		resp, err = s.tokenExchange(ctx, req)
	}

	result := "ok"
	if err != nil {
		result = err.Error()
	}
	metrics.GrantRequests.WithLabelValues(string(grant), result).Inc()
	return resp, err
}

// authenticateClient resolves the requesting client. Confidential clients
// must present their secret; public clients must not.
func (s *tokenService) authenticateClient(ctx context.Context, req TokenRequest) (*repository.Client, error) {
	return s.clients.Authenticate(ctx, req.ClientID, req.ClientSecret)
}

func (s *tokenService) exchangeAuthorizationCode(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token.authcode"))

	// PKCE is mandatory: a missing verifier is a malformed request, not a
	// failed grant.
	if req.Code == "" || req.RedirectURI == "" || req.CodeVerifier == "" {
		return nil, ErrInvalidRequest
	}
	if !pkce.ValidVerifier(req.CodeVerifier) {
		return nil, ErrInvalidRequest
	}

	client, err := s.authenticateClient(ctx, req)
	if err != nil {
		return nil, err
	}

	code, err := s.store.AuthCodes().Get(ctx, req.Code)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrInvalidGrant
		}
		return nil, ErrServerError
	}

	switch {
	case code.Revoked:
		log.Warn("authorization code replay", logger.ClientID(req.ClientID))
		return nil, ErrInvalidGrant
	case time.Now().After(code.ExpiresAt):
		return nil, ErrInvalidGrant
	case code.ClientID != client.ClientID:
		return nil, ErrInvalidGrant
	case code.RedirectURI != req.RedirectURI:
		return nil, ErrInvalidGrant
	}

	if !s.pkce.Verify(code.Challenge, code.ChallengeMethod, req.CodeVerifier) {
		return nil, ErrInvalidGrant
	}

	at, rt, rawRefresh, err := s.buildPair(code.UserID, client, code.Scopes, req.JKT)
	if err != nil {
		return nil, ErrServerError
	}
	signed, exp, err := s.issuer.IssueAccess(at.ID, code.UserID, client.ClientID, code.Scopes, req.JKT, s.accessTTL)
	if err != nil {
		return nil, ErrServerError
	}
	at.ExpiresAt = exp

	// consumption and insertion commit together: exactly one of N concurrent
	// exchanges wins, and a failed insert leaves the code exchangeable
	won, err := s.store.Tokens().ConsumeCodeAndCreatePair(ctx, code.ID, at, rt)
	if err != nil {
		return nil, ErrServerError
	}
	if !won {
		log.Warn("authorization code lost consume race", logger.ClientID(req.ClientID))
		return nil, ErrInvalidGrant
	}

	metrics.TokensIssued.WithLabelValues("access").Inc()
	metrics.TokensIssued.WithLabelValues("refresh").Inc()
	return &TokenResponse{
		AccessToken:  signed,
		TokenType:    tokenType(req.JKT),
		ExpiresIn:    int64(time.Until(exp).Seconds()),
		RefreshToken: rawRefresh,
		Scope:        strings.Join(code.Scopes, " "),
	}, nil
}

func (s *tokenService) exchangeClientCredentials(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	client, err := s.authenticateClient(ctx, req)
	if err != nil {
		return nil, err
	}
	if !client.Confidential() {
		return nil, ErrUnauthorizedClient
	}

	scopes, err := s.scopes.Resolve(ctx, req.Scope)
	if err != nil {
		return nil, err
	}

	// machine tokens have no user and no refresh token
	return s.issuePair(ctx, "", client, scopes, req.JKT, false)
}

func (s *tokenService) exchangeRefreshToken(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token.refresh"))

	if req.RefreshToken == "" {
		return nil, ErrInvalidRequest
	}
	client, err := s.authenticateClient(ctx, req)
	if err != nil {
		return nil, err
	}

	rt, err := s.store.Tokens().GetRefreshByHash(ctx, tokens.SHA256Base64URL(req.RefreshToken))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrInvalidGrant
		}
		return nil, ErrServerError
	}
	old, err := s.store.Tokens().GetAccess(ctx, rt.AccessTokenID)
	if err != nil {
		return nil, ErrServerError
	}
	if old.ClientID != client.ClientID {
		return nil, ErrInvalidGrant
	}

	if rt.Revoked {
		// a rotated token came back: assume the lineage leaked and kill it
		if rt.RotatedTo != nil {
			log.Warn("refresh token reuse detected", logger.ClientID(client.ClientID), logger.TokenID(rt.ID))
			metrics.RefreshReuseDetected.Inc()
			if err := s.store.Tokens().RevokeDescendants(ctx, rt.ID); err != nil {
				log.Error("revoke descendants", logger.Err(err))
			}
		}
		return nil, ErrInvalidGrant
	}
	if time.Now().After(rt.ExpiresAt) {
		return nil, ErrInvalidGrant
	}

	// a DPoP-bound pair only rotates under the same key
	jkt := req.JKT
	if old.JKT != "" {
		if req.JKT != old.JKT {
			return nil, ErrInvalidGrant
		}
		jkt = old.JKT
	}

	scopes, err := s.scopes.Narrow(old.Scopes, strings.Fields(req.Scope))
	if err != nil {
		return nil, err
	}

	newAT, newRT, rawRefresh, err := s.buildPair(old.UserID, client, scopes, jkt)
	if err != nil {
		return nil, ErrServerError
	}
	signed, exp, err := s.issuer.IssueAccess(newAT.ID, old.UserID, client.ClientID, scopes, jkt, s.accessTTL)
	if err != nil {
		return nil, ErrServerError
	}
	newAT.ExpiresAt = exp

	rotated, err := s.store.Tokens().Rotate(ctx, rt.ID, newAT, newRT)
	if err != nil {
		return nil, ErrServerError
	}
	if !rotated {
		// concurrent rotation: the loser is indistinguishable from reuse
		metrics.RefreshReuseDetected.Inc()
		if err := s.store.Tokens().RevokeDescendants(ctx, rt.ID); err != nil {
			log.Error("revoke descendants", logger.Err(err))
		}
		return nil, ErrInvalidGrant
	}

	metrics.TokensIssued.WithLabelValues("access").Inc()
	metrics.TokensIssued.WithLabelValues("refresh").Inc()
	return &TokenResponse{
		AccessToken:  signed,
		TokenType:    tokenType(jkt),
		ExpiresIn:    int64(time.Until(exp).Seconds()),
		RefreshToken: rawRefresh,
		Scope:        strings.Join(scopes, " "),
	}, nil
}

func (s *tokenService) exchangeDeviceCode(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	if req.DeviceCode == "" {
		return nil, ErrInvalidRequest
	}
	client, err := s.authenticateClient(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.device.Poll(ctx, client, req.DeviceCode, req.JKT)
}

// tokenExchange is the minimal RFC 8693 profile: an access token for this
// issuer comes in, a pair with equal or narrowed scopes comes out under the
// requesting client's audience.
func (s *tokenService) tokenExchange(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	if req.SubjectToken == "" {
		return nil, ErrInvalidRequest
	}
	if req.SubjectTokenType != "" && req.SubjectTokenType != subjectTokenTypeAccess {
		return nil, ErrInvalidRequest
	}

	client, err := s.authenticateClient(ctx, req)
	if err != nil {
		return nil, err
	}

	claims, err := s.issuer.Parse(req.SubjectToken)
	if err != nil {
		return nil, ErrInvalidGrant
	}
	row, err := s.store.Tokens().GetAccess(ctx, claims.ID)
	if err != nil || row.Revoked {
		return nil, ErrInvalidGrant
	}

	scopes, err := s.scopes.Narrow(claims.Scopes, strings.Fields(req.Scope))
	if err != nil {
		return nil, err
	}

	userID := row.UserID
	return s.issuePair(ctx, userID, client, scopes, req.JKT, true)
}

// buildPair allocates the persisted rows for a fresh token pair. The caller
// fills the access row's expiry after signing.
func (s *tokenService) buildPair(userID string, client *repository.Client, scopes []string, jkt string) (*repository.AccessToken, *repository.RefreshToken, string, error) {
	jti, err := uuid.NewV7()
	if err != nil {
		return nil, nil, "", err
	}
	rtID, err := uuid.NewV7()
	if err != nil {
		return nil, nil, "", err
	}
	raw, err := tokens.GenerateOpaque(32)
	if err != nil {
		return nil, nil, "", err
	}

	at := &repository.AccessToken{
		ID:       jti.String(),
		UserID:   userID,
		ClientID: client.ClientID,
		Scopes:   scopes,
		JKT:      jkt,
	}
	rt := &repository.RefreshToken{
		ID:            rtID.String(),
		AccessTokenID: at.ID,
		TokenHash:     tokens.SHA256Base64URL(raw),
		ExpiresAt:     time.Now().UTC().Add(s.refreshTTL),
	}
	return at, rt, raw, nil
}

// issuePair signs and persists a pair (or a lone access token) and shapes
// the response.
func (s *tokenService) issuePair(ctx context.Context, userID string, client *repository.Client, scopes []string, jkt string, withRefresh bool) (*TokenResponse, error) {
	at, rt, rawRefresh, err := s.buildPair(userID, client, scopes, jkt)
	if err != nil {
		return nil, ErrServerError
	}

	signed, exp, err := s.issuer.IssueAccess(at.ID, userID, client.ClientID, scopes, jkt, s.accessTTL)
	if err != nil {
		return nil, ErrServerError
	}
	at.ExpiresAt = exp

	if !withRefresh {
		rt = nil
		rawRefresh = ""
	}
	if err := s.store.Tokens().CreatePair(ctx, at, rt); err != nil {
		return nil, ErrServerError
	}

	metrics.TokensIssued.WithLabelValues("access").Inc()
	if withRefresh {
		metrics.TokensIssued.WithLabelValues("refresh").Inc()
	}
	return &TokenResponse{
		AccessToken:  signed,
		TokenType:    tokenType(jkt),
		ExpiresIn:    int64(time.Until(exp).Seconds()),
		RefreshToken: rawRefresh,
		Scope:        strings.Join(scopes, " "),
	}, nil
}

func tokenType(jkt string) string {
	if jkt != "" {
		return "DPoP"
	}
	return "Bearer"
}
