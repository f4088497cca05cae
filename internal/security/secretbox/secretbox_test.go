package secretbox

import (
	"encoding/base64"
	"strings"
	"testing"
)

func setKey(t *testing.T) {
	t.Helper()
	ResetForTests()
	t.Cleanup(ResetForTests)
	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	t.Setenv(MasterKeyEnv, key)
}

func TestRoundTrip(t *testing.T) {
	setKey(t)

	ct, err := Encrypt("postgres://u:p@localhost/authgrid")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if !IsEncrypted(ct) {
		t.Fatalf("missing prefix: %q", ct)
	}
	pt, err := Decrypt(ct)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if pt != "postgres://u:p@localhost/authgrid" {
		t.Fatalf("got %q", pt)
	}
}

func TestNonceVaries(t *testing.T) {
	setKey(t)

	a, _ := Encrypt("same")
	b, _ := Encrypt("same")
	if a == b {
		t.Fatal("two encryptions produced identical output")
	}
}

func TestTamperDetected(t *testing.T) {
	setKey(t)

	ct, err := Encrypt("secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	flipped := ct[:len(ct)-2] + flip(ct[len(ct)-2:])
	if _, err := Decrypt(flipped); err == nil {
		t.Fatal("tampered ciphertext decrypted")
	}
}

func TestMalformed(t *testing.T) {
	setKey(t)

	for _, v := range []string{"", "enc:", "enc:only-one-part", "plain-value", "enc:!!:!!"} {
		if _, err := Decrypt(v); err == nil {
			t.Fatalf("decrypt(%q) succeeded", v)
		}
	}
}

func TestMissingKey(t *testing.T) {
	ResetForTests()
	t.Cleanup(ResetForTests)
	t.Setenv(MasterKeyEnv, "")

	if _, err := Encrypt("x"); err == nil {
		t.Fatal("encrypt without master key succeeded")
	}
}

func flip(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}
	}
	if strings.HasSuffix(s, "=") {
		b[len(b)-1] = '='
	}
	return string(b)
}
