package oauth

import (
	"context"
	"time"

	"github.com/dropDatabas3/authgrid/internal/domain/repository"
	"github.com/dropDatabas3/authgrid/internal/observability/logger"
	"github.com/dropDatabas3/authgrid/internal/security/pkce"
	tokens "github.com/dropDatabas3/authgrid/internal/security/token"
	"github.com/dropDatabas3/authgrid/internal/store"
)

// AuthorizeService validates authorization requests and mints codes. The
// user is already authenticated when this runs; login itself lives outside
// this server.
type AuthorizeService interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error)
}

// AuthorizeRequest is the parameter set of GET /oauth/authorize, possibly
// replaced by a pushed set when RequestURI is present.
type AuthorizeRequest struct {
	ClientID            string
	RedirectURI         string
	ResponseType        string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	RequestURI          string
	UserID              string
}

// AuthorizeResult carries the code redirect parameters.
type AuthorizeResult struct {
	Code        string
	State       string
	RedirectURI string
}

type AuthorizeDeps struct {
	Store   store.Store
	Clients *ClientRegistry
	Scopes  *ScopeRegistry
	PAR     PARService
	PKCE    pkce.Verifier
	CodeTTL time.Duration
}

type authorizeService struct {
	store   store.Store
	clients *ClientRegistry
	scopes  *ScopeRegistry
	par     PARService
	pkce    pkce.Verifier
	codeTTL time.Duration
}

func NewAuthorizeService(d AuthorizeDeps) AuthorizeService {
	if d.CodeTTL <= 0 {
		d.CodeTTL = 10 * time.Minute
	}
	return &authorizeService{
		store:   d.Store,
		clients: d.Clients,
		scopes:  d.Scopes,
		par:     d.PAR,
		pkce:    d.PKCE,
		codeTTL: d.CodeTTL,
	}
}

func (s *authorizeService) Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.authorize"))

	// a pushed request replaces the query parameters wholesale
	if req.RequestURI != "" {
		params, err := s.par.Consume(ctx, req.RequestURI, req.ClientID)
		if err != nil {
			return nil, err
		}
		req.RedirectURI = params.Get("redirect_uri")
		req.ResponseType = params.Get("response_type")
		req.Scope = params.Get("scope")
		req.State = params.Get("state")
		req.CodeChallenge = params.Get("code_challenge")
		req.CodeChallengeMethod = params.Get("code_challenge_method")
	}

	client, err := s.clients.Get(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}
	if err := s.clients.ValidateRedirectURI(client, req.RedirectURI); err != nil {
		log.Warn("redirect_uri not registered", logger.ClientID(req.ClientID))
		return nil, err
	}

	if req.ResponseType != "code" {
		return nil, ErrUnsupportedResponse
	}

	// PKCE is mandatory
	if !pkce.ValidChallenge(req.CodeChallenge) {
		return nil, ErrInvalidRequest
	}
	method, err := s.pkce.NormalizeMethod(req.CodeChallengeMethod)
	if err != nil {
		return nil, ErrInvalidRequest
	}

	scopes, err := s.scopes.Resolve(ctx, req.Scope)
	if err != nil {
		return nil, err
	}

	if req.UserID == "" {
		return nil, ErrAccessDenied
	}
	ok, err := s.clients.UserHasAccess(ctx, client, req.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Warn("user outside client organization", logger.ClientID(req.ClientID), logger.UserID(req.UserID))
		return nil, ErrAccessDenied
	}

	code, err := tokens.GenerateOpaque(32)
	if err != nil {
		return nil, ErrServerError
	}
	row := &repository.AuthorizationCode{
		ID:              code,
		UserID:          req.UserID,
		ClientID:        client.ClientID,
		Scopes:          scopes,
		Challenge:       req.CodeChallenge,
		ChallengeMethod: method,
		RedirectURI:     req.RedirectURI,
		ExpiresAt:       time.Now().UTC().Add(s.codeTTL),
	}
	if err := s.store.AuthCodes().Create(ctx, row); err != nil {
		return nil, ErrServerError
	}

	return &AuthorizeResult{Code: code, State: req.State, RedirectURI: req.RedirectURI}, nil
}
