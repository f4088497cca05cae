package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/authgrid/internal/security/secretbox"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr        string `yaml:"addr"`
		MetricsAddr string `yaml:"metrics_addr"`
	} `yaml:"server"`

	Storage struct {
		// "postgres" | "memory" (memory is dev/test only)
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns        int    `yaml:"max_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// "memory" | "redis"
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	JWT struct {
		Issuer string `yaml:"issuer"`
		// Base64 of a 32-byte ed25519 seed. Empty means an ephemeral key is
		// generated at boot (tokens do not survive restarts).
		SigningSeed string `yaml:"signing_seed"`
		AccessTTL   string `yaml:"access_ttl"`
		RefreshTTL  string `yaml:"refresh_ttl"`
	} `yaml:"jwt"`

	OAuth struct {
		AuthCodeTTL     string `yaml:"auth_code_ttl"`
		DeviceCodeTTL   string `yaml:"device_code_ttl"`
		DeviceInterval  int    `yaml:"device_interval"`
		VerificationURI string `yaml:"verification_uri"`
		PARRequestTTL   string `yaml:"par_request_ttl"`
		// Accept the "plain" PKCE method for legacy clients. S256 always works.
		AllowPlainPKCE bool `yaml:"allow_plain_pkce"`
		DPoP           struct {
			// Freshness window for proof iat and jti replay tracking.
			ProofMaxAge string `yaml:"proof_max_age"`
		} `yaml:"dpop"`
	} `yaml:"oauth"`

	Rate struct {
		Enabled     bool   `yaml:"enabled"`
		Window      string `yaml:"window"`
		MaxRequests int    `yaml:"max_requests"`

		Token struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"token"`

		DeviceCode struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"device_code"`
	} `yaml:"rate"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads a YAML config file, applies defaults and env overrides, and
// validates duration strings.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.MetricsAddr == "" {
		c.Server.MetricsAddr = ":9090"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "postgres"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2m"
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "http://localhost:8080"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "1h"
	}
	if c.JWT.RefreshTTL == "" {
		c.JWT.RefreshTTL = "720h" // 30d
	}
	if c.OAuth.AuthCodeTTL == "" {
		c.OAuth.AuthCodeTTL = "10m"
	}
	if c.OAuth.DeviceCodeTTL == "" {
		c.OAuth.DeviceCodeTTL = "10m"
	}
	if c.OAuth.DeviceInterval == 0 {
		c.OAuth.DeviceInterval = 5
	}
	if c.OAuth.VerificationURI == "" {
		c.OAuth.VerificationURI = strings.TrimRight(c.JWT.Issuer, "/") + "/device"
	}
	if c.OAuth.PARRequestTTL == "" {
		c.OAuth.PARRequestTTL = "90s"
	}
	if c.OAuth.DPoP.ProofMaxAge == "" {
		c.OAuth.DPoP.ProofMaxAge = "60s"
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 60
	}
	if c.Rate.Token.Limit == 0 {
		c.Rate.Token.Limit = 30
	}
	if c.Rate.Token.Window == "" {
		c.Rate.Token.Window = "1m"
	}
	if c.Rate.DeviceCode.Limit == 0 {
		c.Rate.DeviceCode.Limit = 10
	}
	if c.Rate.DeviceCode.Window == "" {
		c.Rate.DeviceCode.Window = "1m"
	}

	c.applyEnvOverrides()

	// secrets may ship encrypted (enc:...) when the YAML lives in VCS
	if err := c.decryptSecrets(); err != nil {
		return nil, err
	}

	// validate string durations
	for _, d := range []string{
		c.JWT.AccessTTL, c.JWT.RefreshTTL,
		c.OAuth.AuthCodeTTL, c.OAuth.DeviceCodeTTL,
		c.OAuth.PARRequestTTL, c.OAuth.DPoP.ProofMaxAge,
		c.Rate.Window, c.Rate.Token.Window, c.Rate.DeviceCode.Window,
		c.Cache.Memory.DefaultTTL,
	} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return nil, fmt.Errorf("config: bad duration %q: %w", d, err)
		}
	}
	if c.Storage.Postgres.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(c.Storage.Postgres.ConnMaxLifetime); err != nil {
			return nil, err
		}
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// applyEnvOverrides lets the environment win over the YAML file for the
// values that change between deployments.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = v
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("METRICS_ADDR"); ok {
		c.Server.MetricsAddr = v
	}
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("DATABASE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("JWT_SIGNING_SEED"); ok {
		c.JWT.SigningSeed = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
}

// decryptSecrets resolves enc:-prefixed values via the secretbox master key.
func (c *Config) decryptSecrets() error {
	for _, field := range []*string{&c.Storage.DSN, &c.JWT.SigningSeed} {
		if !secretbox.IsEncrypted(*field) {
			continue
		}
		plain, err := secretbox.Decrypt(*field)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		*field = plain
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && strings.TrimSpace(c.Storage.DSN) == "" {
		return fmt.Errorf("config: storage.dsn is required for the postgres driver")
	}
	switch c.Cache.Kind {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unknown cache kind %q", c.Cache.Kind)
	}
	if strings.EqualFold(c.App.Env, "prod") && c.JWT.SigningSeed == "" {
		return fmt.Errorf("config: jwt.signing_seed is required in prod")
	}
	return nil
}

// Duration parses one of the validated duration strings. Invalid strings were
// rejected at Load time, so the zero value only comes back for empty input.
func Duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// ---- env helpers ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
