// Package secretbox encrypts config secrets (storage DSN, signing seed) so
// they can live in version-controlled YAML. AES-256-GCM with a master key
// from the environment.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

const (
	// MasterKeyEnv holds the base64 of a 32-byte AES-256 key.
	MasterKeyEnv = "AUTHGRID_MASTER_KEY"

	// Prefix marks an encrypted config value: enc:base64(nonce):base64(ciphertext).
	Prefix = "enc:"

	keyLen   = 32
	nonceLen = 12
)

var (
	ErrNoMasterKey   = errors.New("secretbox: " + MasterKeyEnv + " is not set")
	ErrBadCiphertext = errors.New("secretbox: malformed ciphertext")
)

var (
	keyOnce sync.Once
	key     []byte
	keyErr  error
)

func masterKey() ([]byte, error) {
	keyOnce.Do(func() {
		b64 := strings.TrimSpace(os.Getenv(MasterKeyEnv))
		if b64 == "" {
			keyErr = ErrNoMasterKey
			return
		}
		k, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			keyErr = fmt.Errorf("secretbox: decode %s: %w", MasterKeyEnv, err)
			return
		}
		if len(k) != keyLen {
			keyErr = fmt.Errorf("secretbox: %s must decode to %d bytes, got %d", MasterKeyEnv, keyLen, len(k))
			return
		}
		key = k
	})
	return key, keyErr
}

// IsEncrypted reports whether a config value carries the Prefix marker.
func IsEncrypted(v string) bool {
	return strings.HasPrefix(v, Prefix)
}

// Encrypt seals plaintext under the master key and returns the prefixed wire
// form.
func Encrypt(plaintext string) (string, error) {
	k, err := masterKey()
	if err != nil {
		return "", err
	}
	gcm, err := newGCM(k)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ct := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return Prefix +
		base64.StdEncoding.EncodeToString(nonce) + ":" +
		base64.StdEncoding.EncodeToString(ct), nil
}

// Decrypt opens a prefixed value produced by Encrypt.
func Decrypt(value string) (string, error) {
	k, err := masterKey()
	if err != nil {
		return "", err
	}
	body, ok := strings.CutPrefix(value, Prefix)
	if !ok {
		return "", ErrBadCiphertext
	}
	nonceB64, ctB64, ok := strings.Cut(body, ":")
	if !ok {
		return "", ErrBadCiphertext
	}
	nonce, err := base64.StdEncoding.DecodeString(nonceB64)
	if err != nil || len(nonce) != nonceLen {
		return "", ErrBadCiphertext
	}
	ct, err := base64.StdEncoding.DecodeString(ctB64)
	if err != nil {
		return "", ErrBadCiphertext
	}
	gcm, err := newGCM(k)
	if err != nil {
		return "", err
	}
	pt, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("secretbox: decrypt: %w", err)
	}
	return string(pt), nil
}

func newGCM(k []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// ResetForTests clears the cached master key so tests can vary the env.
func ResetForTests() {
	keyOnce = sync.Once{}
	key = nil
	keyErr = nil
}
