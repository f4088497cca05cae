package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDefaults(t *testing.T) {
	p := writeConfig(t, `
storage:
  driver: memory
`)
	c, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Addr != ":8080" {
		t.Errorf("addr default: %q", c.Server.Addr)
	}
	if c.JWT.AccessTTL != "1h" || c.JWT.RefreshTTL != "720h" {
		t.Errorf("ttl defaults: %q %q", c.JWT.AccessTTL, c.JWT.RefreshTTL)
	}
	if c.OAuth.DeviceInterval != 5 {
		t.Errorf("device interval default: %d", c.OAuth.DeviceInterval)
	}
	if c.OAuth.AllowPlainPKCE {
		t.Error("plain pkce should default off")
	}
	if c.OAuth.VerificationURI != "http://localhost:8080/device" {
		t.Errorf("verification uri: %q", c.OAuth.VerificationURI)
	}
}

func TestBadDurationRejected(t *testing.T) {
	p := writeConfig(t, `
storage:
  driver: memory
jwt:
  access_ttl: "one hour"
`)
	if _, err := Load(p); err == nil {
		t.Fatal("bad duration accepted")
	}
}

func TestPostgresRequiresDSN(t *testing.T) {
	p := writeConfig(t, `
storage:
  driver: postgres
`)
	if _, err := Load(p); err == nil {
		t.Fatal("postgres without dsn accepted")
	}
}

func TestUnknownDriverRejected(t *testing.T) {
	p := writeConfig(t, `
storage:
  driver: oracle
`)
	if _, err := Load(p); err == nil {
		t.Fatal("unknown driver accepted")
	}
}

func TestProdRequiresSigningSeed(t *testing.T) {
	p := writeConfig(t, `
app:
  env: prod
storage:
  driver: memory
`)
	if _, err := Load(p); err == nil {
		t.Fatal("prod without signing seed accepted")
	}
}

func TestEnvOverrides(t *testing.T) {
	p := writeConfig(t, `
storage:
  driver: memory
`)
	t.Setenv("SERVER_ADDR", ":9999")
	t.Setenv("JWT_ISSUER", "https://id.example.com")

	c, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Addr != ":9999" {
		t.Errorf("env addr override: %q", c.Server.Addr)
	}
	if c.JWT.Issuer != "https://id.example.com" {
		t.Errorf("env issuer override: %q", c.JWT.Issuer)
	}
}
