package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
listen_addr: ":9090"
https: true
log:
  level: debug
storage:
  type: redis
  default_scope: profile
  redis:
    address: localhost:6379
    key_prefix: "test:"
oauth:
  access_token_lifetime: 30m
  always_issue_new_refresh_token: false
  require_client_authentication:
    password: false
rate_limit:
  enabled: true
  requests_per_second: 5
  burst: 10
clients:
  - id: web
    secret: s3cret
    grants: [authorization_code, refresh_token]
    redirect_uris: ["https://client.example.com/cb"]
    scope: "read write"
    access_token_lifetime: 10m
users:
  - username: alice
    password: wonderland
`

func env(vars map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.ListenAddr != ":9090" || !cfg.HTTPS {
		t.Errorf("listen = %q https = %v", cfg.ListenAddr, cfg.HTTPS)
	}
	if cfg.Storage.Type != StorageRedis || cfg.Storage.Redis.KeyPrefix != "test:" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.OAuth.AccessTokenLifetime != 30*time.Minute {
		t.Errorf("access token lifetime = %v", cfg.OAuth.AccessTokenLifetime)
	}
	if cfg.OAuth.AlwaysIssueNewRefreshToken == nil || *cfg.OAuth.AlwaysIssueNewRefreshToken {
		t.Error("always_issue_new_refresh_token should be false")
	}
	if len(cfg.Clients) != 1 || cfg.Clients[0].AccessTokenLifetime != 10*time.Minute {
		t.Errorf("clients = %+v", cfg.Clients)
	}

	sc := cfg.OAuth.Server()
	if sc.AccessTokenLifetime != 30*time.Minute || sc.RequireClientAuthentication["password"] {
		t.Errorf("server config = %+v", sc)
	}
	rec := cfg.Clients[0].Record()
	if rec.ID != "web" || rec.Scope != "read write" || len(rec.RedirectURIs) != 1 {
		t.Errorf("record = %+v", rec)
	}
}

func TestParse_Errors(t *testing.T) {
	if _, err := Parse([]byte("unknown_field: 1\n")); err == nil {
		t.Error("unknown field accepted")
	}
	if _, err := Parse([]byte("listen_addr: [\n")); err == nil {
		t.Error("malformed YAML accepted")
	}
	cfg, err := Parse(nil)
	if err != nil || cfg == nil {
		t.Errorf("empty document: %v, %v", cfg, err)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := &Config{ListenAddr: ":1", Storage: StorageConfig{Type: StorageMemory}}
	err := cfg.applyEnv(env(map[string]string{
		EnvListenAddr:      ":2",
		EnvStorage:         StorageRedis,
		EnvRedisURL:        "redis://localhost:6379/1",
		EnvTrustProxy:      "true",
		EnvAllowEmptyState: "1",
		EnvLogLevel:        "",
	}))
	if err != nil {
		t.Fatalf("applyEnv() error = %v", err)
	}
	if cfg.ListenAddr != ":2" || cfg.Storage.Type != StorageRedis || cfg.Storage.Redis.URL == "" {
		t.Errorf("cfg = %+v", cfg)
	}
	if !cfg.Proxy.Trust || !cfg.OAuth.AllowEmptyState {
		t.Error("boolean overrides not applied")
	}

	if err := cfg.applyEnv(env(map[string]string{EnvLogJSON: "maybe"})); err == nil {
		t.Error("invalid boolean accepted")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown storage", func(c *Config) { c.Storage.Type = "etcd" }, "unknown storage type"},
		{"redis without address", func(c *Config) { c.Storage.Type = StorageRedis }, "storage.redis"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "invalid log level"},
		{"client without id", func(c *Config) { c.Clients = []ClientConfig{{Grants: []string{"password"}}} }, "id is required"},
		{"duplicate client", func(c *Config) {
			c.Clients = []ClientConfig{{ID: "a", Grants: []string{"password"}}, {ID: "a", Grants: []string{"password"}}}
		}, "duplicate id"},
		{"client without grants", func(c *Config) { c.Clients = []ClientConfig{{ID: "a"}} }, "grant"},
		{"user without password", func(c *Config) { c.Users = []UserConfig{{Username: "bob"}} }, "username and password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.applyDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("listen_addr: \":7070\"\nlog:\n  level: warn\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvEnvFile, filepath.Join(dir, "missing.env"))
	for _, key := range []string{EnvListenAddr, EnvStorage, EnvLogLevel, EnvConfigFile} {
		t.Setenv(key, "")
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ListenAddr != ":7070" || cfg.Storage.Type != StorageMemory || cfg.ShutdownTimeout != 15*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
	if level, _ := cfg.LogLevel(); level != slog.LevelWarn {
		t.Errorf("LogLevel() = %v", level)
	}

	if _, err := Load(filepath.Join(dir, "nope.yaml")); err == nil {
		t.Error("missing config file accepted")
	}
}
