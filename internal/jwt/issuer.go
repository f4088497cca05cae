// Package jwt signs and validates the server's access tokens.
package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// TokenUseAccess is the token_use claim value for access tokens.
const TokenUseAccess = "access"

// Issuer signs access tokens with a single active ed25519 key.
type Issuer struct {
	Iss       string // "iss" claim
	AccessTTL time.Duration

	kid  string
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewIssuer builds an issuer from a base64-encoded 32-byte ed25519 seed.
// An empty seed generates an ephemeral key (dev mode: tokens die with the
// process).
func NewIssuer(iss, seedB64 string, accessTTL time.Duration) (*Issuer, error) {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}

	var priv ed25519.PrivateKey
	if seedB64 == "" {
		_, p, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		priv = p
	} else {
		seed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(seedB64))
		if err != nil {
			return nil, fmt.Errorf("jwt: decode signing seed: %w", err)
		}
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("jwt: signing seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
		}
		priv = ed25519.NewKeyFromSeed(seed)
	}

	pub := priv.Public().(ed25519.PublicKey)
	return &Issuer{
		Iss:       strings.TrimRight(iss, "/"),
		AccessTTL: accessTTL,
		kid:       deriveKID(pub),
		priv:      priv,
		pub:       pub,
	}, nil
}

// deriveKID is a stable key id: first 8 bytes of SHA-256(pubkey), base64url.
func deriveKID(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return base64.RawURLEncoding.EncodeToString(sum[:8])
}

// KID returns the active key id.
func (i *Issuer) KID() string { return i.kid }

// IssueAccess signs an access token. jti is the persisted row id; sub falls
// back to the client id for user-less (client_credentials) tokens; jkt, when
// set, binds the token to a DPoP key via the cnf claim.
func (i *Issuer) IssueAccess(jti, userID, clientID string, scopes []string, jkt string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	if ttl <= 0 {
		ttl = i.AccessTTL
	}
	exp := now.Add(ttl)

	sub := userID
	if sub == "" {
		sub = clientID
	}

	claims := jwtv5.MapClaims{
		"iss":       i.Iss,
		"sub":       sub,
		"aud":       clientID,
		"exp":       exp.Unix(),
		"iat":       now.Unix(),
		"nbf":       now.Unix(),
		"jti":       jti,
		"client_id": clientID,
		"scope":     strings.Join(scopes, " "),
		"token_use": TokenUseAccess,
	}
	if jkt != "" {
		claims["cnf"] = map[string]any{"jkt": jkt}
	}

	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["kid"] = i.kid
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(i.priv)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Keyfunc returns a jwt.Keyfunc that resolves the public key by kid.
func (i *Issuer) Keyfunc() jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (any, error) {
		if kid, _ := t.Header["kid"].(string); kid != "" && kid != i.kid {
			return nil, errors.New("kid_unknown")
		}
		return i.pub, nil
	}
}

// JWKSJSON publishes the verification key as a JWK set.
func (i *Issuer) JWKSJSON() []byte {
	jwks := map[string]any{
		"keys": []map[string]any{{
			"kty": "OKP",
			"crv": "Ed25519",
			"x":   base64.RawURLEncoding.EncodeToString(i.pub),
			"kid": i.kid,
			"use": "sig",
			"alg": "EdDSA",
		}},
	}
	b, _ := json.Marshal(jwks)
	return b
}
