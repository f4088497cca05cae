// Package dpop validates DPoP proof JWTs (RFC 9449) and computes the JWK
// thumbprint (RFC 7638) that access tokens are bound to.
package dpop

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/authgrid/internal/cache"
)

var (
	ErrMissingProof  = errors.New("dpop: missing proof")
	ErrInvalidProof  = errors.New("dpop: invalid proof")
	ErrReplayedProof = errors.New("dpop: replayed jti")
	ErrStaleProof    = errors.New("dpop: iat outside acceptance window")
	ErrBindingFailed = errors.New("dpop: token not bound to this key")
)

// allowed proof algorithms; "none" and HMAC are structurally excluded
var allowedAlgs = []string{"ES256", "ES384", "RS256", "PS256", "EdDSA"}

// Validator checks DPoP proofs. Jti replay state lives in the cache with a
// TTL of twice the acceptance window.
type Validator struct {
	cache  cache.Client
	maxAge time.Duration // allowed iat skew, both directions
}

func NewValidator(c cache.Client, maxAge time.Duration) *Validator {
	if maxAge <= 0 {
		maxAge = 60 * time.Second
	}
	return &Validator{cache: c, maxAge: maxAge}
}

// Proof is the validated result: the thumbprint identifies the proving key.
type Proof struct {
	Thumbprint string // base64url(SHA-256(canonical JWK))
	JTI        string
}

// Validate parses and checks a DPoP proof for an htm/htu pair. accessToken,
// when non-empty, must match the proof's ath claim (hash of the presented
// token); pass "" at issuance time where no token exists yet.
func (v *Validator) Validate(ctx context.Context, proof, htm, htu, accessToken string) (*Proof, error) {
	return v.ValidateWithNonce(ctx, proof, htm, htu, accessToken, "")
}

// ValidateWithNonce additionally requires the proof's nonce claim to equal
// expectedNonce when one is supplied (server-provided DPoP nonces).
func (v *Validator) ValidateWithNonce(ctx context.Context, proof, htm, htu, accessToken, expectedNonce string) (*Proof, error) {
	if strings.TrimSpace(proof) == "" {
		return nil, ErrMissingProof
	}

	var jwk publicJWK
	tok, err := jwtv5.Parse(proof, func(t *jwtv5.Token) (any, error) {
		if typ, _ := t.Header["typ"].(string); typ != "dpop+jwt" {
			return nil, errors.New("typ must be dpop+jwt")
		}
		raw, ok := t.Header["jwk"]
		if !ok {
			return nil, errors.New("missing jwk header")
		}
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &jwk); err != nil {
			return nil, err
		}
		return jwk.publicKey()
	}, jwtv5.WithValidMethods(allowedAlgs))
	if err != nil || !tok.Valid {
		return nil, ErrInvalidProof
	}

	mc, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrInvalidProof
	}

	jti, _ := mc["jti"].(string)
	if jti == "" || len(jti) > 512 {
		return nil, ErrInvalidProof
	}
	if m, _ := mc["htm"].(string); !strings.EqualFold(m, htm) {
		return nil, ErrInvalidProof
	}
	u, _ := mc["htu"].(string)
	if !htuMatch(u, htu) {
		return nil, ErrInvalidProof
	}
	if expectedNonce != "" {
		if n, _ := mc["nonce"].(string); n != expectedNonce {
			return nil, ErrInvalidProof
		}
	}

	iat, err := mc.GetIssuedAt()
	if err != nil || iat == nil {
		return nil, ErrInvalidProof
	}
	if d := time.Since(iat.Time); d > v.maxAge || d < -v.maxAge {
		return nil, ErrStaleProof
	}

	if accessToken != "" {
		ath, _ := mc["ath"].(string)
		sum := sha256.Sum256([]byte(accessToken))
		if ath != base64.RawURLEncoding.EncodeToString(sum[:]) {
			return nil, ErrBindingFailed
		}
	}

	thumb, err := jwk.thumbprint()
	if err != nil {
		return nil, ErrInvalidProof
	}

	// second presentation of the same jti loses
	if !v.cache.SetNX(ctx, "dpop:jti:"+jti, []byte{1}, 2*v.maxAge) {
		return nil, ErrReplayedProof
	}

	return &Proof{Thumbprint: thumb, JTI: jti}, nil
}

// htuMatch compares htu values per RFC 9449: scheme and authority
// case-insensitive, path exact, query and fragment ignored.
func htuMatch(a, b string) bool {
	na, err1 := normalizeHTU(a)
	nb, err2 := normalizeHTU(b)
	return err1 == nil && err2 == nil && na == nb
}

func normalizeHTU(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("dpop: bad htu %q", raw)
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + u.Path, nil
}

// publicJWK is the subset of JWK fields needed to rebuild the key and to
// compute the RFC 7638 thumbprint.
type publicJWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
}

func (k *publicJWK) publicKey() (any, error) {
	switch k.Kty {
	case "EC":
		var curve elliptic.Curve
		switch k.Crv {
		case "P-256":
			curve = elliptic.P256()
		case "P-384":
			curve = elliptic.P384()
		default:
			return nil, fmt.Errorf("unsupported crv %q", k.Crv)
		}
		x, err := base64.RawURLEncoding.DecodeString(k.X)
		if err != nil {
			return nil, err
		}
		y, err := base64.RawURLEncoding.DecodeString(k.Y)
		if err != nil {
			return nil, err
		}
		return &ecdsa.PublicKey{Curve: curve, X: new(big.Int).SetBytes(x), Y: new(big.Int).SetBytes(y)}, nil
	case "RSA":
		n, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			return nil, err
		}
		e, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			return nil, err
		}
		return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(new(big.Int).SetBytes(e).Int64())}, nil
	case "OKP":
		if k.Crv != "Ed25519" {
			return nil, fmt.Errorf("unsupported crv %q", k.Crv)
		}
		x, err := base64.RawURLEncoding.DecodeString(k.X)
		if err != nil {
			return nil, err
		}
		return ed25519.PublicKey(x), nil
	default:
		return nil, fmt.Errorf("unsupported kty %q", k.Kty)
	}
}

// thumbprint hashes the canonical JWK representation: required members only,
// lexicographic order, no whitespace (RFC 7638).
func (k *publicJWK) thumbprint() (string, error) {
	var canonical string
	switch k.Kty {
	case "EC":
		canonical = fmt.Sprintf(`{"crv":%q,"kty":"EC","x":%q,"y":%q}`, k.Crv, k.X, k.Y)
	case "RSA":
		canonical = fmt.Sprintf(`{"e":%q,"kty":"RSA","n":%q}`, k.E, k.N)
	case "OKP":
		canonical = fmt.Sprintf(`{"crv":%q,"kty":"OKP","x":%q}`, k.Crv, k.X)
	default:
		return "", fmt.Errorf("unsupported kty %q", k.Kty)
	}
	sum := sha256.Sum256([]byte(canonical))
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

// HashAccessToken computes the ath claim value for an access token.
func HashAccessToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
