package oauth

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/dropDatabas3/authgrid/internal/cache"
	"github.com/dropDatabas3/authgrid/internal/domain/repository"
	"github.com/dropDatabas3/authgrid/internal/observability/logger"
	"github.com/dropDatabas3/authgrid/internal/security/pkce"
	tokens "github.com/dropDatabas3/authgrid/internal/security/token"
)

const requestURIPrefix = "urn:ietf:params:oauth:request_uri:"

// PARService implements pushed authorization requests (RFC 9126). The
// parameter sets are ephemeral and single-use, so they live in the cache.
type PARService interface {
	// Push validates and stores an authorization parameter set; returns
	// the request_uri and its lifetime in seconds.
	Push(ctx context.Context, client *repository.Client, params url.Values) (string, int64, error)

	// Consume atomically fetches and deletes a pushed set. A client
	// mismatch or an expired/unknown URI is invalid_request.
	Consume(ctx context.Context, requestURI, clientID string) (url.Values, error)
}

type PARDeps struct {
	Cache   cache.Client
	Clients *ClientRegistry
	PKCE    pkce.Verifier
	TTL     time.Duration
}

type parService struct {
	cache   cache.Client
	clients *ClientRegistry
	pkce    pkce.Verifier
	ttl     time.Duration
}

func NewPARService(d PARDeps) PARService {
	if d.TTL <= 0 {
		d.TTL = 90 * time.Second
	}
	return &parService{cache: d.Cache, clients: d.Clients, pkce: d.PKCE, ttl: d.TTL}
}

type parEnvelope struct {
	ClientID string     `json:"client_id"`
	Params   url.Values `json:"params"`
}

func (s *parService) Push(ctx context.Context, client *repository.Client, params url.Values) (string, int64, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.par.push"))

	// request_uri inside a pushed request is circular
	if params.Get("request_uri") != "" {
		return "", 0, ErrInvalidRequest
	}
	if err := s.clients.ValidateRedirectURI(client, params.Get("redirect_uri")); err != nil {
		return "", 0, err
	}
	challenge := params.Get("code_challenge")
	if !pkce.ValidChallenge(challenge) {
		return "", 0, ErrInvalidRequest
	}
	if _, err := s.pkce.NormalizeMethod(params.Get("code_challenge_method")); err != nil {
		return "", 0, ErrInvalidRequest
	}

	id, err := tokens.GenerateOpaque(32)
	if err != nil {
		return "", 0, ErrServerError
	}
	payload, err := json.Marshal(parEnvelope{ClientID: client.ClientID, Params: params})
	if err != nil {
		return "", 0, ErrServerError
	}

	uri := requestURIPrefix + id
	s.cache.Set(ctx, "par:"+id, payload, s.ttl)
	log.Debug("pushed authorization request stored", logger.ClientID(client.ClientID))
	return uri, int64(s.ttl.Seconds()), nil
}

func (s *parService) Consume(ctx context.Context, requestURI, clientID string) (url.Values, error) {
	if len(requestURI) <= len(requestURIPrefix) || requestURI[:len(requestURIPrefix)] != requestURIPrefix {
		return nil, ErrInvalidRequest
	}
	id := requestURI[len(requestURIPrefix):]

	payload, ok := s.cache.GetDel(ctx, "par:"+id)
	if !ok {
		return nil, ErrInvalidRequest
	}
	var env parEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, ErrServerError
	}
	if env.ClientID != clientID {
		return nil, ErrInvalidRequest
	}
	return env.Params, nil
}
