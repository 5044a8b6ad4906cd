package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/internal/util"
	"github.com/giantswarm/oauth2-engine/security"
	"github.com/giantswarm/oauth2-engine/storage"
)

// tokenIDLogLength is the number of token characters included in logs
const tokenIDLogLength = 8

// Config configures a Store. All fields are optional.
type Config struct {
	// CleanupInterval is how often expired entries are dropped.
	CleanupInterval time.Duration // default: 1 minute

	// DefaultScope is granted when neither the request nor the client
	// names a scope.
	DefaultScope string

	Logger          *slog.Logger
	Instrumentation *instrumentation.Instrumentation

	// Now is the clock used for expiry. Defaults to time.Now.
	Now func() time.Time
}

// Store is an in-memory model implementing every capability of the
// engine. It is safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	clients       map[string]*storage.ClientRecord
	users         map[string]*storage.UserRecord
	accessTokens  map[string]*oauth.Token
	refreshTokens map[string]*oauth.Token
	codes         map[string]*oauth.AuthorizationCode

	// gauges read lock-free by the metrics callback
	tokensCount  atomic.Int64
	codesCount   atomic.Int64
	clientsCount atomic.Int64

	defaultScope    string
	now             func() time.Time
	logger          *slog.Logger
	telemetry       *storage.Telemetry
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
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

// New creates a store and starts its cleanup loop. Call Stop to end it.
func New(cfg Config) *Store {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Store{
		clients:         make(map[string]*storage.ClientRecord),
		users:           make(map[string]*storage.UserRecord),
		accessTokens:    make(map[string]*oauth.Token),
		refreshTokens:   make(map[string]*oauth.Token),
		codes:           make(map[string]*oauth.AuthorizationCode),
		defaultScope:    cfg.DefaultScope,
		now:             cfg.Now,
		logger:          cfg.Logger,
		telemetry:       storage.NewTelemetry(cfg.Instrumentation, "memory"),
		cleanupInterval: cfg.CleanupInterval,
		stopCleanup:     make(chan struct{}),
	}

	if cfg.Instrumentation != nil {
		err := cfg.Instrumentation.RegisterStorageSizeCallbacks(
			func() int64 { return s.tokensCount.Load() },
			func() int64 { return s.codesCount.Load() },
			func() int64 { return s.clientsCount.Load() },
		)
		if err != nil {
			s.logger.Warn("Failed to register storage size callbacks", "error", err)
		}
	}

	go s.cleanupLoop()
	return s
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
}

// ============================================================
// Registration
// ============================================================

// RegisterClient adds or replaces a client. An empty secret registers a
// public client.
func (s *Store) RegisterClient(ctx context.Context, client storage.ClientRecord, secret string) (err error) {
	_, done := s.telemetry.Start(ctx, "register_client")
	defer func() { done(err) }()

	rec, err := storage.NewClientRecord(client, secret)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, existed := s.clients[rec.ID]; !existed {
		s.clientsCount.Add(1)
	}
	s.clients[rec.ID] = rec

	s.logger.Debug("Registered client", "client_id", rec.ID, "public", rec.SecretHash == "")
	return nil
}

// RegisterUser adds or replaces a resource owner.
func (s *Store) RegisterUser(ctx context.Context, username, password string) (err error) {
	_, done := s.telemetry.Start(ctx, "register_user")
	defer func() { done(err) }()

	rec, err := storage.NewUserRecord(username, password)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = rec
	return nil
}

// ============================================================
// Clients and users
// ============================================================

// GetClient returns the client, checking secret when one is given.
func (s *Store) GetClient(ctx context.Context, clientID, clientSecret string) (*oauth.Client, error) {
	_, done := s.telemetry.Start(ctx, "get_client")
	defer done(nil)

	s.mu.RLock()
	rec := s.clients[clientID]
	s.mu.RUnlock()

	return storage.AuthenticateClient(rec, clientSecret), nil
}

// GetUser returns the username when the password matches.
func (s *Store) GetUser(ctx context.Context, username, password string) (oauth.User, error) {
	_, done := s.telemetry.Start(ctx, "get_user")
	defer done(nil)

	s.mu.RLock()
	rec := s.users[username]
	s.mu.RUnlock()

	hash := ""
	if rec != nil {
		hash = rec.PasswordHash
	}
	if !storage.CompareSecret(hash, password) {
		return nil, nil
	}
	return rec.Username, nil
}

// GetUserFromClient returns the user a client acts as, if it has one.
func (s *Store) GetUserFromClient(ctx context.Context, client *oauth.Client) (oauth.User, error) {
	_, done := s.telemetry.Start(ctx, "get_user_from_client")
	defer done(nil)

	s.mu.RLock()
	rec := s.clients[client.ID]
	s.mu.RUnlock()

	if rec == nil || rec.UserID == "" {
		return nil, nil
	}
	return rec.UserID, nil
}

// ============================================================
// Tokens
// ============================================================

// SaveToken stores token under its access token and, when present, its
// refresh token.
func (s *Store) SaveToken(ctx context.Context, token *oauth.Token, client *oauth.Client, user oauth.User) (_ *oauth.Token, err error) {
	_, done := s.telemetry.Start(ctx, "save_token")
	defer func() { done(err) }()

	if token == nil || token.AccessToken == "" {
		return nil, fmt.Errorf("token cannot be empty")
	}

	saved := *token
	saved.Client = client
	saved.User = user

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, existed := s.accessTokens[saved.AccessToken]; !existed {
		s.tokensCount.Add(1)
	}
	s.accessTokens[saved.AccessToken] = &saved
	if saved.RefreshToken != "" {
		s.refreshTokens[saved.RefreshToken] = &saved
	}

	s.logger.Debug("Saved token",
		"token_id", util.SafeTruncate(saved.AccessToken, tokenIDLogLength),
		"client_id", clientID(client),
		"with_refresh", saved.RefreshToken != "")

	out := saved
	return &out, nil
}

// GetAccessToken returns the token for accessToken. Expired tokens are
// still returned; the engine reports the expiry.
func (s *Store) GetAccessToken(ctx context.Context, accessToken string) (*oauth.Token, error) {
	_, done := s.telemetry.Start(ctx, "get_access_token")
	defer done(nil)

	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyToken(s.accessTokens[accessToken]), nil
}

// GetRefreshToken returns the token for refreshToken.
func (s *Store) GetRefreshToken(ctx context.Context, refreshToken string) (*oauth.Token, error) {
	_, done := s.telemetry.Start(ctx, "get_refresh_token")
	defer done(nil)

	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyToken(s.refreshTokens[refreshToken]), nil
}

// RevokeToken removes the refresh token of token. It reports false when
// the refresh token was already gone, which makes rotation single use.
func (s *Store) RevokeToken(ctx context.Context, token *oauth.Token) (bool, error) {
	_, done := s.telemetry.Start(ctx, "revoke_token")
	defer done(nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.refreshTokens[token.RefreshToken]; !ok {
		return false, nil
	}
	delete(s.refreshTokens, token.RefreshToken)
	return true, nil
}

// ============================================================
// Authorization codes
// ============================================================

// SaveAuthorizationCode stores code.
func (s *Store) SaveAuthorizationCode(ctx context.Context, code *oauth.AuthorizationCode, client *oauth.Client, user oauth.User) (_ *oauth.AuthorizationCode, err error) {
	_, done := s.telemetry.Start(ctx, "save_authorization_code")
	defer func() { done(err) }()

	if code == nil || code.Code == "" {
		return nil, fmt.Errorf("authorization code cannot be empty")
	}

	saved := *code
	saved.Client = client
	saved.User = user

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, existed := s.codes[saved.Code]; !existed {
		s.codesCount.Add(1)
	}
	s.codes[saved.Code] = &saved

	out := saved
	return &out, nil
}

// GetAuthorizationCode returns the code, or nil when unknown or consumed.
func (s *Store) GetAuthorizationCode(ctx context.Context, code string) (*oauth.AuthorizationCode, error) {
	_, done := s.telemetry.Start(ctx, "get_authorization_code")
	defer done(nil)

	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.codes[code]
	if !ok {
		return nil, nil
	}
	out := *c
	return &out, nil
}

// RevokeAuthorizationCode consumes code. Only the first call for a code
// reports true.
func (s *Store) RevokeAuthorizationCode(ctx context.Context, code *oauth.AuthorizationCode) (bool, error) {
	_, done := s.telemetry.Start(ctx, "revoke_authorization_code")
	defer done(nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[code.Code]; !ok {
		return false, nil
	}
	delete(s.codes, code.Code)
	s.codesCount.Add(-1)
	return true, nil
}

// ============================================================
// Scope
// ============================================================

// ValidateScope applies storage.ValidateScope with the store's default
// scope.
func (s *Store) ValidateScope(_ context.Context, _ oauth.User, client *oauth.Client, scope string) (string, error) {
	return storage.ValidateScope(client, scope, s.defaultScope), nil
}

// VerifyScope reports whether token carries every scope in scope.
func (s *Store) VerifyScope(_ context.Context, token *oauth.Token, scope string) (bool, error) {
	return storage.VerifyScope(token, scope), nil
}

// ============================================================
// Cleanup
// ============================================================

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup drops expired codes and tokens. A token stays reachable by its
// refresh token until that expires too.
func (s *Store) cleanup() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	cleaned := 0
	for key, t := range s.accessTokens {
		if security.IsExpired(t.AccessTokenExpiresAt, now) {
			delete(s.accessTokens, key)
			s.tokensCount.Add(-1)
			cleaned++
		}
	}
	for key, t := range s.refreshTokens {
		if security.IsExpired(t.RefreshTokenExpiresAt, now) {
			delete(s.refreshTokens, key)
			cleaned++
		}
	}
	for key, c := range s.codes {
		if security.IsExpired(c.ExpiresAt, now) {
			delete(s.codes, key)
			s.codesCount.Add(-1)
			cleaned++
		}
	}

	if cleaned > 0 {
		s.logger.Debug("Cleaned up expired entries", "count", cleaned)
	}
	return cleaned
}

func clientID(c *oauth.Client) string {
	if c == nil {
		return ""
	}
	return c.ID
}

func copyToken(t *oauth.Token) *oauth.Token {
	if t == nil {
		return nil
	}
	out := *t
	return &out
}
