package jwt

import (
	"errors"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var (
	ErrExpired   = errors.New("token expired")
	ErrMalformed = errors.New("token malformed")
)

// AccessClaims is the validated view of an access token.
type AccessClaims struct {
	ID        string // jti
	Subject   string
	ClientID  string
	Scopes    []string
	JKT       string // cnf.jkt, empty for bearer tokens
	TokenUse  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Parse validates signature, issuer and time claims and returns the typed
// claim set. Expired tokens return ErrExpired so callers can report that
// state distinctly (introspection marks them inactive rather than failing).
func (i *Issuer) Parse(raw string) (*AccessClaims, error) {
	tok, err := jwtv5.Parse(raw, i.Keyfunc(),
		jwtv5.WithValidMethods([]string{"EdDSA"}),
		jwtv5.WithIssuer(i.Iss),
	)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrMalformed
	}

	mc, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrMalformed
	}

	out := &AccessClaims{}
	out.ID, _ = mc["jti"].(string)
	out.Subject, _ = mc["sub"].(string)
	out.ClientID, _ = mc["client_id"].(string)
	out.TokenUse, _ = mc["token_use"].(string)
	if s, _ := mc["scope"].(string); s != "" {
		out.Scopes = strings.Fields(s)
	}
	if cnf, ok := mc["cnf"].(map[string]any); ok {
		out.JKT, _ = cnf["jkt"].(string)
	}
	if v, err := mc.GetExpirationTime(); err == nil && v != nil {
		out.ExpiresAt = v.Time
	}
	if v, err := mc.GetIssuedAt(); err == nil && v != nil {
		out.IssuedAt = v.Time
	}

	if out.ID == "" || out.TokenUse != TokenUseAccess {
		return nil, ErrMalformed
	}
	return out, nil
}
