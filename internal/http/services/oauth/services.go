package oauth

import (
	"context"
	"time"

	"github.com/dropDatabas3/authgrid/internal/cache"
	jwtx "github.com/dropDatabas3/authgrid/internal/jwt"
	"github.com/dropDatabas3/authgrid/internal/security/pkce"
	"github.com/dropDatabas3/authgrid/internal/store"
)

// UserAuthenticator resolves the end user behind a bearer credential. The
// authorize and device-verify endpoints need an authenticated user; where
// that user comes from is the embedding application's business.
type UserAuthenticator interface {
	// Authenticate returns the user id for a bearer token, or ErrAccessDenied.
	Authenticate(ctx context.Context, bearer string) (string, error)
}

// SelfAuthenticator accepts this server's own access tokens as the user
// credential, which is enough for first-party setups.
type SelfAuthenticator struct {
	Issuer *jwtx.Issuer
	Store  store.Store
}

func (a *SelfAuthenticator) Authenticate(ctx context.Context, bearer string) (string, error) {
	claims, err := a.Issuer.Parse(bearer)
	if err != nil {
		return "", ErrAccessDenied
	}
	row, err := a.Store.Tokens().GetAccess(ctx, claims.ID)
	if err != nil || row.Revoked || row.UserID == "" {
		return "", ErrAccessDenied
	}
	return row.UserID, nil
}

// Deps contains everything needed to build the OAuth services.
type Deps struct {
	Store  store.Store
	Cache  cache.Client
	Issuer *jwtx.Issuer

	AllowPlainPKCE  bool
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	AuthCodeTTL     time.Duration
	DeviceCodeTTL   time.Duration
	DeviceInterval  int
	PARRequestTTL   time.Duration
	VerificationURI string
}

// Services aggregates the OAuth domain services.
type Services struct {
	Clients    *ClientRegistry
	Scopes     *ScopeRegistry
	Authorize  AuthorizeService
	Token      TokenService
	Device     DeviceService
	Introspect IntrospectService
	Revoke     RevokeService
	PAR        PARService
	UserAuth   UserAuthenticator
}

func NewServices(d Deps) Services {
	verifier := pkce.Verifier{AllowPlain: d.AllowPlainPKCE}
	clients := NewClientRegistry(d.Store)
	scopes := NewScopeRegistry(d.Store)

	par := NewPARService(PARDeps{
		Cache:   d.Cache,
		Clients: clients,
		PKCE:    verifier,
		TTL:     d.PARRequestTTL,
	})
	device := NewDeviceService(DeviceDeps{
		Store:           d.Store,
		Issuer:          d.Issuer,
		Clients:         clients,
		Scopes:          scopes,
		VerificationURI: d.VerificationURI,
		CodeTTL:         d.DeviceCodeTTL,
		Interval:        d.DeviceInterval,
		AccessTTL:       d.AccessTTL,
		RefreshTTL:      d.RefreshTTL,
	})

	return Services{
		Clients: clients,
		Scopes:  scopes,
		Authorize: NewAuthorizeService(AuthorizeDeps{
			Store:   d.Store,
			Clients: clients,
			Scopes:  scopes,
			PAR:     par,
			PKCE:    verifier,
			CodeTTL: d.AuthCodeTTL,
		}),
		Token: NewTokenService(TokenDeps{
			Store:      d.Store,
			Issuer:     d.Issuer,
			Clients:    clients,
			Scopes:     scopes,
			PKCE:       verifier,
			Device:     device,
			AccessTTL:  d.AccessTTL,
			RefreshTTL: d.RefreshTTL,
		}),
		Device:     device,
		Introspect: NewIntrospectService(IntrospectDeps{Store: d.Store, Issuer: d.Issuer}),
		Revoke:     NewRevokeService(RevokeDeps{Store: d.Store, Issuer: d.Issuer}),
		PAR:        par,
		UserAuth:   &SelfAuthenticator{Issuer: d.Issuer, Store: d.Store},
	}
}
