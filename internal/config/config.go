// Package config loads the application configuration with koanf.
//
// Sources, later ones winning:
//
//  1. Defaults (Default)
//  2. An optional TOML file (-config flag or BLOGEDGE_CONFIG)
//  3. BLOGEDGE_* environment variables
//
// Environment names map to keys by dropping the prefix, lower-casing and
// turning the first underscore into the section separator:
//
//	BLOGEDGE_AUTH_JWT_SECRET → auth.jwt_secret
//	BLOGEDGE_STORE_BACKEND   → store.backend
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "BLOGEDGE_"

// EnvConfigFile names the TOML file when no -config flag is given.
const EnvConfigFile = EnvPrefix + "CONFIG"

// MinJWTSecretLength is the shortest signing secret accepted.
const MinJWTSecretLength = 16

// Store backends.
const (
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config represents the complete application configuration.
type Config struct {
	Server    Server    `koanf:"server"`
	Auth      Auth      `koanf:"auth"`
	Store     Store     `koanf:"store"`
	CORS      CORS      `koanf:"cors"`
	RateLimit RateLimit `koanf:"ratelimit"`
	Log       Log       `koanf:"log"`
	Recount   Recount   `koanf:"recount"`
}

// Server contains HTTP listener settings.
type Server struct {
	Port    int    `koanf:"port"`     // TCP port to listen on
	BaseURL string `koanf:"base_url"` // public origin, used for the OAuth redirect_uri

	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP.
	// Only set it behind a proxy that overwrites those headers.
	TrustProxy bool `koanf:"trust_proxy"`
}

// Auth contains GitHub OAuth and session token settings.
type Auth struct {
	GitHubClientID     string        `koanf:"github_client_id"`
	GitHubClientSecret string        `koanf:"github_client_secret"`
	JWTSecret          string        `koanf:"jwt_secret"`       // HS256 signing key
	CookieSecure       bool          `koanf:"cookie_secure"`    // Secure flag on auth cookies
	UpstreamTimeout    time.Duration `koanf:"upstream_timeout"` // per GitHub call
}

// Store selects and configures the key-value backend.
type Store struct {
	Backend       string        `koanf:"backend"` // sqlite, redis or postgres
	SQLitePath    string        `koanf:"sqlite_path"`
	RedisAddr     string        `koanf:"redis_addr"`
	RedisUsername string        `koanf:"redis_username"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db"`
	PostgresURL   string        `koanf:"postgres_url"`
	Timeout       time.Duration `koanf:"timeout"` // per store call
}

// CORS contains cross-origin settings.
type CORS struct {
	AllowOrigin string `koanf:"allow_origin"`
}

// RateLimit bounds POST requests per client IP.
type RateLimit struct {
	Requests int           `koanf:"requests"` // events per window
	Window   time.Duration `koanf:"window"`
	Burst    int           `koanf:"burst"`
}

// Log contains logging settings.
type Log struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text or json
}

// Recount configures cmd/recount.
type Recount struct {
	Concurrency int           `koanf:"concurrency"`  // slugs reconciled at once
	ScanTimeout time.Duration `koanf:"scan_timeout"` // per key listing
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: Server{
			Port:    8080,
			BaseURL: "http://localhost:8080",
		},
		Auth: Auth{
			CookieSecure:    true,
			UpstreamTimeout: 10 * time.Second,
		},
		Store: Store{
			Backend:    BackendSQLite,
			SQLitePath: "data/blog.db",
			RedisAddr:  "localhost:6379",
			Timeout:    5 * time.Second,
		},
		CORS: CORS{AllowOrigin: "*"},
		RateLimit: RateLimit{
			Requests: 30,
			Window:   time.Minute,
			Burst:    10,
		},
		Log:     Log{Level: "info", Format: "text"},
		Recount: Recount{Concurrency: 8, ScanTimeout: time.Minute},
	}
}

// Load builds the configuration from defaults, the TOML file at path (if
// non-empty) and the environment. It does not validate; call Validate or
// ValidateStore for the parts a command needs.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: loading environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}
	return &cfg, nil
}

// envKey maps BLOGEDGE_SECTION_SOME_KEY to section.some_key.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, rest, ok := strings.Cut(key, "_")
	if !ok {
		return key
	}
	return section + "." + rest
}

// Validate checks everything the HTTP server needs.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port: %d out of range", c.Server.Port))
	}
	if c.Server.BaseURL == "" {
		errs = append(errs, errors.New("server.base_url: required"))
	}
	if len(c.Auth.JWTSecret) < MinJWTSecretLength {
		errs = append(errs, fmt.Errorf("auth.jwt_secret: must be at least %d characters", MinJWTSecretLength))
	}
	if c.Auth.GitHubClientID == "" {
		errs = append(errs, errors.New("auth.github_client_id: required"))
	}
	if c.Auth.GitHubClientSecret == "" {
		errs = append(errs, errors.New("auth.github_client_secret: required"))
	}
	if c.RateLimit.Requests < 0 || c.RateLimit.Burst < 0 || c.RateLimit.Window < 0 {
		errs = append(errs, errors.New("ratelimit: values must not be negative"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if err := c.ValidateStore(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateStore checks the store section only. cmd/recount needs nothing else.
func (c *Config) ValidateStore() error {
	s := c.Store
	switch s.Backend {
	case BackendSQLite:
		if s.SQLitePath == "" {
			return errors.New("store.sqlite_path: required for the sqlite backend")
		}
	case BackendRedis:
		if s.RedisAddr == "" {
			return errors.New("store.redis_addr: required for the redis backend")
		}
	case BackendPostgres:
		if s.PostgresURL == "" {
			return errors.New("store.postgres_url: required for the postgres backend")
		}
	default:
		return fmt.Errorf("store.backend: unknown backend %q", s.Backend)
	}
	if s.Timeout < 0 {
		return errors.New("store.timeout: must not be negative")
	}
	if c.Recount.ScanTimeout < 0 {
		return errors.New("recount.scan_timeout: must not be negative")
	}
	return nil
}

// CallbackURL is the OAuth redirect_uri registered with GitHub.
func (c *Config) CallbackURL() string {
	return strings.TrimRight(c.Server.BaseURL, "/") + "/api/auth/callback"
}

// SlogLevel parses Log.Level.
func (l Log) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
