// Package config loads server and CLI settings from a TOML file with
// environment overrides.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sethvargo/go-envconfig"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config holds every setting of the server and CLI.
type Config struct {
	Addr        string `toml:"addr" env:"WEIGHTLOG_ADDR, overwrite"`
	Store       string `toml:"store" env:"WEIGHTLOG_STORE, overwrite"`
	DatabaseURL string `toml:"database_url" env:"DATABASE_URL, overwrite"`

	// auth
	JWTSecret       string        `toml:"jwt_secret" env:"WEIGHTLOG_JWT_SECRET, overwrite"`
	TokenTTL        time.Duration `toml:"token_ttl" env:"WEIGHTLOG_TOKEN_TTL, overwrite"`
	InitialUser     string        `toml:"initial_user" env:"WEIGHTLOG_INITIAL_USER, overwrite"`
	InitialPassword string        `toml:"initial_password" env:"WEIGHTLOG_INITIAL_PASSWORD, overwrite"`

	// sso
	OIDCIssuer       string `toml:"oidc_issuer" env:"OIDC_ISSUER, overwrite"`
	OIDCClientID     string `toml:"oidc_client_id" env:"OIDC_CLIENT_ID, overwrite"`
	OIDCClientSecret string `toml:"oidc_client_secret" env:"OIDC_CLIENT_SECRET, overwrite"`
	OIDCRedirectURL  string `toml:"oidc_redirect_url" env:"OIDC_REDIRECT_URL, overwrite"`

	// redis
	RedisAddr     string `toml:"redis_addr" env:"REDIS_ADDR, overwrite"`
	RedisPassword string `toml:"redis_password" env:"REDIS_PASSWORD, overwrite"`
	RedisDB       int    `toml:"redis_db" env:"REDIS_DB, overwrite"`
	RedisChannel  string `toml:"redis_channel" env:"REDIS_CHANNEL, overwrite"`

	// reminders
	RemindersEnabled bool `toml:"reminders_enabled" env:"WEIGHTLOG_REMINDERS, overwrite"`

	// logging
	LogLevel    string `toml:"log_level" env:"WEIGHTLOG_LOG_LEVEL, overwrite"`
	LogFile     string `toml:"log_file" env:"WEIGHTLOG_LOG_FILE, overwrite"`
	LogToStdout bool   `toml:"log_to_stdout" env:"WEIGHTLOG_LOG_TO_STDOUT, overwrite"`
	LogJSON     bool   `toml:"log_json" env:"WEIGHTLOG_LOG_JSON, overwrite"`
}

// Toml is the layout of the config file.
type Toml struct {
	Development Config
	Production  Config
}

// Get returns the section for env.
func (t *Toml) Get(env string) (*Config, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		return &t.Development, nil
	case "prod", "production":
		return &t.Production, nil
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
}

// Defaults returns the settings used for anything not configured.
func Defaults() Config {
	return Config{
		Addr:             ":8080",
		Store:            StoreMemory,
		TokenTTL:         7 * 24 * time.Hour,
		RemindersEnabled: true,
		LogLevel:         "info",
		LogToStdout:      true,
	}
}

// Load reads path (a missing file is not an error), picks the env section
// and applies environment overrides.
func Load(ctx context.Context, path, env string) (*Config, error) {
	return load(ctx, path, env, envconfig.OsLookuper())
}

func load(ctx context.Context, path, env string, lookuper envconfig.Lookuper) (*Config, error) {
	t := Toml{Development: Defaults(), Production: Defaults()}
	if path != "" {
		if _, err := toml.DecodeFile(path, &t); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	return cfg, nil
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database_url is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if len(c.JWTSecret) < 16 {
		return errors.New("jwt_secret must be at least 16 characters")
	}
	if c.OIDCIssuer != "" && (c.OIDCClientID == "" || c.OIDCRedirectURL == "") {
		return errors.New("oidc_client_id and oidc_redirect_url are required with oidc_issuer")
	}
	return nil
}

// SSOEnabled reports whether OIDC login is configured.
func (c *Config) SSOEnabled() bool {
	return c.OIDCIssuer != ""
}

// DefaultDataFile returns the local database path used by the CLI.
func DefaultDataFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "weightlog", "weights.db")
}
