package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/security"
	"github.com/giantswarm/oauth2-engine/storage"
)

const (
	// DefaultKeyPrefix is the default prefix for all keys
	DefaultKeyPrefix = "oauth2:"

	// tokenIDLogLength is the number of token characters included in logs
	tokenIDLogLength = 8

	// connectionVerifyTimeout bounds the initial PING
	connectionVerifyTimeout = 5 * time.Second

	// scanBatchSize is the COUNT hint for SCAN iterations
	scanBatchSize = 100
)

// Config configures a Store. Either URL or Address is required.
type Config struct {
	// URL is a redis:// or rediss:// URL. It takes precedence over
	// Address, Password and DB.
	URL string

	// Address is the server address, e.g. "localhost:6379".
	Address  string
	Password string
	DB       int

	// KeyPrefix is the prefix for all keys (default "oauth2:").
	KeyPrefix string

	// TLS enables TLS for Address based connections.
	TLS *tls.Config

	// DefaultScope is granted when neither the request nor the client
	// names a scope.
	DefaultScope string

	// Encryptor seals stored records at rest. Nil stores clear JSON.
	Encryptor *security.Encryptor

	Logger          *slog.Logger
	Instrumentation *instrumentation.Instrumentation

	// Now is the clock used to derive key expiry. Defaults to time.Now.
	Now func() time.Time
}

// Store is a Redis backed model implementing every capability of the
// engine. Tokens and codes expire with their keys; consumption of codes
// and refresh tokens is atomic on the server.
type Store struct {
	client       *goredis.Client
	prefix       string
	defaultScope string
	encryptor    *security.Encryptor
	logger       *slog.Logger
	telemetry    *storage.Telemetry
	inst         *instrumentation.Instrumentation
	now          func() time.Time
}

var (
	_ oauth.ClientGetter             = (*Store)(nil)
	_ oauth.UserGetter               = (*Store)(nil)
	_ oauth.UserFromClientGetter     = (*Store)(nil)
	_ oauth.TokenSaver               = (*Store)(nil)
	_ oauth.AccessTokenGetter        = (*Store)(nil)
	_ oauth.RefreshTokenGetter       = (*Store)(nil)
	_ oauth.TokenRevoker             = (*Store)(nil)
	_ oauth.AuthorizationCodeGetter  = (*Store)(nil)
	_ oauth.AuthorizationCodeSaver   = (*Store)(nil)
	_ oauth.AuthorizationCodeRevoker = (*Store)(nil)
	_ oauth.ScopeValidator           = (*Store)(nil)
	_ oauth.ScopeVerifier            = (*Store)(nil)
)

// New connects to Redis and verifies the connection with PING.
func New(cfg Config) (*Store, error) {
	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectionVerifyTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	s := NewWithClient(client, cfg)
	logger.Info("Connected to Redis storage",
		"address", opts.Addr,
		"db", opts.DB,
		"prefix", s.prefix,
		"encrypted", s.encryptor.IsEnabled())
	return s, nil
}

// NewWithClient wraps an existing client. Connection settings in cfg are
// ignored.
func NewWithClient(client *goredis.Client, cfg Config) *Store {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Store{
		client:       client,
		prefix:       prefix,
		defaultScope: cfg.DefaultScope,
		encryptor:    cfg.Encryptor,
		logger:       logger,
		telemetry:    storage.NewTelemetry(cfg.Instrumentation, "redis"),
		inst:         cfg.Instrumentation,
		now:          now,
	}
}

func clientOptions(cfg Config) (*goredis.Options, error) {
	if cfg.URL != "" {
		opts, err := goredis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis URL: %w", err)
		}
		return opts, nil
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	return &goredis.Options{
		Addr:      cfg.Address,
		Password:  cfg.Password,
		DB:        cfg.DB,
		TLSConfig: cfg.TLS,
	}, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.logger.Info("Redis storage connection closed")
	return s.client.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// ============================================================
// Keys
// ============================================================

func (s *Store) clientKey(id string) string { return s.prefix + "client:" + id }

func (s *Store) userKey(username string) string { return s.prefix + "user:" + username }

func (s *Store) accessTokenKey(token string) string { return s.prefix + "access:" + token }

func (s *Store) refreshTokenKey(token string) string { return s.prefix + "refresh:" + token }

func (s *Store) codeKey(code string) string { return s.prefix + "code:" + code }

// ============================================================
// Helpers
// ============================================================

// ttlUntil returns the key expiry for expiresAt. A zero time means no
// expiry. ok is false when expiresAt has already passed.
func (s *Store) ttlUntil(expiresAt time.Time) (ttl time.Duration, ok bool) {
	if expiresAt.IsZero() {
		return 0, true
	}
	ttl = expiresAt.Sub(s.now())
	if ttl <= 0 {
		return 0, false
	}
	return ttl, true
}

func (s *Store) seal(ctx context.Context, v any) ([]byte, error) {
	if s.encryptor.IsEnabled() && s.inst != nil {
		s.inst.Metrics().RecordEncryptionOperation(ctx, "encrypt")
	}
	return storage.Seal(v, s.encryptor)
}

func (s *Store) open(ctx context.Context, data []byte, v any) error {
	if s.encryptor.IsEnabled() && s.inst != nil {
		s.inst.Metrics().RecordEncryptionOperation(ctx, "decrypt")
	}
	return storage.Open(data, v, s.encryptor)
}

// getRecord loads key into v. found is false when the key does not exist.
func (s *Store) getRecord(ctx context.Context, key string, v any) (found bool, err error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := s.open(ctx, data, v); err != nil {
		return false, err
	}
	return true, nil
}

// Keys lists the keys under the store prefix matching pattern, e.g.
// "client:*".
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	seen := make(map[string]struct{})
	var keys []string
	var cursor uint64
	for {
		batch, next, err := s.client.Scan(ctx, cursor, s.prefix+pattern, scanBatchSize).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}
		for _, k := range batch {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}
