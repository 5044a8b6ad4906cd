// Package config loads the configuration of the reference OAuth server from
// a YAML file, a .env file and environment variables, in increasing order
// of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/giantswarm/oauth2-engine/server"
	"github.com/giantswarm/oauth2-engine/storage"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// Environment variables that override the file.
const (
	EnvConfigFile      = "OAUTH2_CONFIG_FILE"
	EnvEnvFile         = "ENV_FILE_PATH"
	EnvListenAddr      = "OAUTH2_LISTEN_ADDR"
	EnvStorage         = "OAUTH2_STORAGE"
	EnvRedisURL        = "OAUTH2_REDIS_URL"
	EnvEncryptionKey   = "OAUTH_ENCRYPTION_KEY"
	EnvLogLevel        = "LOG_LEVEL"
	EnvLogJSON         = "LOG_JSON"
	EnvTrustProxy      = "TRUST_PROXY"
	EnvTelemetry       = "OTEL_ENABLED"
	EnvAllowEmptyState = "OAUTH2_ALLOW_EMPTY_STATE"
)

// Config is the reference server configuration.
type Config struct {
	ListenAddr string `yaml:"listen_addr"` // default: :8080
	HTTPS      bool   `yaml:"https"`

	Log       LogConfig       `yaml:"log"`
	Proxy     ProxyConfig     `yaml:"proxy"`
	Storage   StorageConfig   `yaml:"storage"`
	OAuth     OAuthConfig     `yaml:"oauth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Audit     bool            `yaml:"audit"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 15s

	// Clients and Users seed the store at startup.
	Clients []ClientConfig `yaml:"clients"`
	Users   []UserConfig   `yaml:"users"`
}

type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	JSON  bool   `yaml:"json"`
}

type ProxyConfig struct {
	Trust        bool `yaml:"trust"`
	TrustedCount int  `yaml:"trusted_count"`
}

type StorageConfig struct {
	Type          string        `yaml:"type"` // memory or redis
	DefaultScope  string        `yaml:"default_scope"`
	EncryptionKey string        `yaml:"encryption_key"` // base64, 32 bytes
	Redis         RedisConfig   `yaml:"redis"`
	Cleanup       time.Duration `yaml:"cleanup_interval"`
}

type RedisConfig struct {
	URL       string `yaml:"url"`
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// OAuthConfig mirrors server.Config.
type OAuthConfig struct {
	AccessTokenLifetime            time.Duration   `yaml:"access_token_lifetime"`
	RefreshTokenLifetime           time.Duration   `yaml:"refresh_token_lifetime"`
	AuthorizationCodeLifetime      time.Duration   `yaml:"authorization_code_lifetime"`
	AlwaysIssueNewRefreshToken     *bool           `yaml:"always_issue_new_refresh_token"`
	AllowEmptyState                bool            `yaml:"allow_empty_state"`
	AllowBearerTokensInQueryString bool            `yaml:"allow_bearer_tokens_in_query_string"`
	AllowExtendedTokenAttributes   bool            `yaml:"allow_extended_token_attributes"`
	RequireClientAuthentication    map[string]bool `yaml:"require_client_authentication"`
}

type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type TelemetryConfig struct {
	Enabled        bool   `yaml:"enabled"`
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
}

type ClientConfig struct {
	ID                   string        `yaml:"id"`
	Secret               string        `yaml:"secret"`
	Grants               []string      `yaml:"grants"`
	RedirectURIs         []string      `yaml:"redirect_uris"`
	Scope                string        `yaml:"scope"`
	UserID               string        `yaml:"user_id"`
	AccessTokenLifetime  time.Duration `yaml:"access_token_lifetime"`
	RefreshTokenLifetime time.Duration `yaml:"refresh_token_lifetime"`
}

type UserConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Load reads .env (if present), then the YAML file at path (if path is not
// empty), then applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	loadDotEnv()

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if cfg, err = Parse(data); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a YAML document. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// loadDotEnv loads ENV_FILE_PATH or ./.env. Variables already set in the
// environment win.
func loadDotEnv() {
	if envFile := os.Getenv(EnvEnvFile); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			slog.Warn("Failed to load env file", "path", envFile, "error", err)
		}
		return
	}
	_ = godotenv.Load()
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	if v, ok := lookup(EnvListenAddr); ok && v != "" {
		c.ListenAddr = v
	}
	if v, ok := lookup(EnvStorage); ok && v != "" {
		c.Storage.Type = v
	}
	if v, ok := lookup(EnvRedisURL); ok && v != "" {
		c.Storage.Redis.URL = v
	}
	if v, ok := lookup(EnvEncryptionKey); ok && v != "" {
		c.Storage.EncryptionKey = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{EnvLogJSON, &c.Log.JSON},
		{EnvTrustProxy, &c.Proxy.Trust},
		{EnvTelemetry, &c.Telemetry.Enabled},
		{EnvAllowEmptyState, &c.OAuth.AllowEmptyState},
	}
	for _, b := range bools {
		v, ok := lookup(b.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", b.key, err)
		}
		*b.dst = parsed
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.Storage.Type == "" {
		c.Storage.Type = StorageMemory
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 15 * time.Second
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "oauth2-server"
	}
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StorageMemory:
	case StorageRedis:
		if c.Storage.Redis.URL == "" && c.Storage.Redis.Address == "" {
			return fmt.Errorf("storage.redis.url or storage.redis.address is required for redis storage")
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}

	if _, err := c.LogLevel(); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Clients))
	for i, client := range c.Clients {
		if client.ID == "" {
			return fmt.Errorf("clients[%d]: id is required", i)
		}
		if seen[client.ID] {
			return fmt.Errorf("clients[%d]: duplicate id %q", i, client.ID)
		}
		seen[client.ID] = true
		if len(client.Grants) == 0 {
			return fmt.Errorf("client %q: at least one grant is required", client.ID)
		}
	}
	for i, user := range c.Users {
		if user.Username == "" || user.Password == "" {
			return fmt.Errorf("users[%d]: username and password are required", i)
		}
	}
	return nil
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	return level, nil
}

// Server converts the protocol settings into a server.Config.
func (c OAuthConfig) Server() *server.Config {
	return &server.Config{
		AccessTokenLifetime:            c.AccessTokenLifetime,
		RefreshTokenLifetime:           c.RefreshTokenLifetime,
		AuthorizationCodeLifetime:      c.AuthorizationCodeLifetime,
		AlwaysIssueNewRefreshToken:     c.AlwaysIssueNewRefreshToken,
		AllowEmptyState:                c.AllowEmptyState,
		AllowBearerTokensInQueryString: c.AllowBearerTokensInQueryString,
		AllowExtendedTokenAttributes:   c.AllowExtendedTokenAttributes,
		RequireClientAuthentication:    c.RequireClientAuthentication,
	}
}

// Record converts a seeded client into a storage record.
func (c ClientConfig) Record() storage.ClientRecord {
	return storage.ClientRecord{
		ID:                   c.ID,
		Grants:               c.Grants,
		RedirectURIs:         c.RedirectURIs,
		AccessTokenLifetime:  c.AccessTokenLifetime,
		RefreshTokenLifetime: c.RefreshTokenLifetime,
		Scope:                c.Scope,
		UserID:               c.UserID,
	}
}
