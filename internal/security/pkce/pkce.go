// Package pkce implements RFC 7636 Proof Key for Code Exchange.
package pkce

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"
)

// Methods accepted on the wire. S256 is the default; "plain" survives for
// legacy clients and can be disabled entirely via Verifier.AllowPlain.
const (
	MethodS256  = "S256"
	MethodPlain = "plain"
)

var (
	ErrUnsupportedMethod = errors.New("pkce: unsupported code_challenge_method")
	ErrInvalidVerifier   = errors.New("pkce: invalid code_verifier")
	ErrInvalidChallenge  = errors.New("pkce: invalid code_challenge")
)

// Verifier checks code_challenge/code_verifier pairs.
type Verifier struct {
	// AllowPlain accepts the discouraged "plain" method. Off by default.
	AllowPlain bool
}

// NormalizeMethod maps the wire value to a canonical method name. An empty
// method defaults to S256 per OAuth 2.1.
func (v Verifier) NormalizeMethod(method string) (string, error) {
	switch {
	case method == "" || strings.EqualFold(method, MethodS256):
		return MethodS256, nil
	case strings.EqualFold(method, MethodPlain):
		if !v.AllowPlain {
			return "", ErrUnsupportedMethod
		}
		return MethodPlain, nil
	default:
		return "", ErrUnsupportedMethod
	}
}

// Challenge derives the code_challenge for a verifier.
// S256: base64url_nopad(SHA256(verifier)). plain: the verifier itself.
func Challenge(verifier, method string) (string, error) {
	if !ValidVerifier(verifier) {
		return "", ErrInvalidVerifier
	}
	switch method {
	case MethodS256:
		sum := sha256.Sum256([]byte(verifier))
		return base64.RawURLEncoding.EncodeToString(sum[:]), nil
	case MethodPlain:
		return verifier, nil
	default:
		return "", ErrUnsupportedMethod
	}
}

// Verify recomputes the challenge from the supplied verifier and compares in
// constant time against the stored challenge.
func (v Verifier) Verify(storedChallenge, storedMethod, suppliedVerifier string) bool {
	if storedChallenge == "" || !ValidVerifier(suppliedVerifier) {
		return false
	}
	method, err := v.NormalizeMethod(storedMethod)
	if err != nil {
		return false
	}
	computed, err := Challenge(suppliedVerifier, method)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedChallenge)) == 1
}

// ValidVerifier checks the RFC 7636 §4.1 grammar: 43..128 characters from
// the unreserved set [A-Za-z0-9-._~].
func ValidVerifier(s string) bool {
	if len(s) < 43 || len(s) > 128 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '.' || c == '_' || c == '~':
		default:
			return false
		}
	}
	return true
}

// ValidChallenge checks the stored challenge shape (same grammar as the
// verifier; an S256 challenge is always 43 chars of base64url).
func ValidChallenge(s string) bool {
	return ValidVerifier(s)
}
