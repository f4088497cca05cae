package oauth

import (
	"context"
)

// GrantType is the closed set of grants the token endpoint dispatches on.
type GrantType string

const (
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantClientCredentials GrantType = "client_credentials"
	GrantRefreshToken      GrantType = "refresh_token"
	GrantDeviceCode        GrantType = "urn:ietf:params:oauth:grant-type:device_code"
	GrantTokenExchange     GrantType = "urn:ietf:params:oauth:grant-type:token-exchange"
)

// ParseGrantType validates the wire value. "password" is recognized and
// rejected (removed in OAuth 2.1); anything else unknown is equally
// unsupported_grant_type.
func ParseGrantType(s string) (GrantType, error) {
	switch GrantType(s) {
	case GrantAuthorizationCode, GrantClientCredentials, GrantRefreshToken,
		GrantDeviceCode, GrantTokenExchange:
		return GrantType(s), nil
	default:
		return "", ErrUnsupportedGrantType
	}
}

// TokenService handles the token endpoint.
type TokenService interface {
	// Exchange dispatches one token request on its grant_type.
	Exchange(ctx context.Context, req TokenRequest) (*TokenResponse, error)
}

// TokenRequest carries the union of token endpoint form parameters. The
// controller authenticates nothing; client credentials travel here and JKT
// is the thumbprint of an already-validated DPoP proof (empty = bearer).
type TokenRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Scope        string
	JKT          string

	// authorization_code
	Code         string
	RedirectURI  string
	CodeVerifier string

	// refresh_token
	RefreshToken string

	// device_code
	DeviceCode string

	// token-exchange
	SubjectToken     string
	SubjectTokenType string
}

// TokenResponse is the RFC 6749 §5.1 success body.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

const subjectTokenTypeAccess = "urn:ietf:params:oauth:token-type:access_token"
