package oauth

import (
	"encoding/json"
	"net/http"

	dto "github.com/dropDatabas3/authgrid/internal/http/dto/oauth"
	svc "github.com/dropDatabas3/authgrid/internal/http/services/oauth"
	jwtx "github.com/dropDatabas3/authgrid/internal/jwt"
)

// DiscoveryController serves the JWKS and the RFC 8414 metadata document.
type DiscoveryController struct {
	svc    svc.Services
	issuer *jwtx.Issuer
	base   string
}

// JWKS handles GET /oauth/jwks.json.
func (c *DiscoveryController) JWKS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(c.issuer.JWKSJSON())
}

// Metadata handles GET /.well-known/oauth-authorization-server.
func (c *DiscoveryController) Metadata(w http.ResponseWriter, r *http.Request) {
	var scopes []string
	if list, err := c.svc.Scopes.List(r.Context()); err == nil {
		scopes = list
	}

	doc := dto.ServerMetadata{
		Issuer:                             c.issuer.Iss,
		AuthorizationEndpoint:              c.base + "/oauth/authorize",
		TokenEndpoint:                      c.base + "/oauth/token",
		IntrospectionEndpoint:              c.base + "/oauth/introspect",
		RevocationEndpoint:                 c.base + "/oauth/revoke",
		DeviceAuthorizationEndpoint:        c.base + "/oauth/device/code",
		PushedAuthorizationRequestEndpoint: c.base + "/oauth/par",
		JWKSURI:                            c.base + "/oauth/jwks.json",
		ScopesSupported:                    scopes,
		ResponseTypesSupported:             []string{"code"},
		GrantTypesSupported: []string{
			string(svc.GrantAuthorizationCode),
			string(svc.GrantClientCredentials),
			string(svc.GrantRefreshToken),
			string(svc.GrantDeviceCode),
			string(svc.GrantTokenExchange),
		},
		CodeChallengeMethodsSupported:     []string{"S256"},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_basic", "client_secret_post", "none"},
		DPoPSigningAlgValuesSupported:     []string{"ES256", "ES384", "RS256", "PS256", "EdDSA"},
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_ = json.NewEncoder(w).Encode(doc)
}
