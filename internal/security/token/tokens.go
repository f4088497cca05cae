package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"math/big"
	"strings"
)

// GenerateOpaque returns a random opaque token (base64url, no padding).
func GenerateOpaque(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SHA256Base64URL returns sha256(input) as unpadded base64url. This is the
// at-rest form of refresh and device codes.
func SHA256Base64URL(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// userCodeAlphabet avoids glyphs users confuse when typing a code from a TV
// screen: no 0/O, no 1/I, no vowels that could spell words.
const userCodeAlphabet = "BCDFGHJKLMNPQRSTVWXZ23456789"

// GenerateUserCode returns an 8-character device-flow user code rendered as
// XXXX-XXXX.
func GenerateUserCode() (string, error) {
	var sb strings.Builder
	for i := 0; i < 8; i++ {
		if i == 4 {
			sb.WriteByte('-')
		}
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(userCodeAlphabet))))
		if err != nil {
			return "", err
		}
		sb.WriteByte(userCodeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// NormalizeUserCode upper-cases and strips separators/whitespace so users can
// type the code sloppily.
func NormalizeUserCode(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	if len(s) == 8 {
		return s[:4] + "-" + s[4:]
	}
	return s
}
