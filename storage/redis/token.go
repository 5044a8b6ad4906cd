package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/internal/util"
	"github.com/giantswarm/oauth2-engine/storage"
)

// ============================================================
// Tokens
// ============================================================

// SaveToken writes the token under its access token key and, when present,
// its refresh token key, in one transaction. Each key expires with the
// token it is named after.
func (s *Store) SaveToken(ctx context.Context, token *oauth.Token, client *oauth.Client, user oauth.User) (_ *oauth.Token, err error) {
	ctx, done := s.telemetry.Start(ctx, "save_token")
	defer func() { done(err) }()

	if token == nil || token.AccessToken == "" {
		return nil, fmt.Errorf("token cannot be empty")
	}

	rec := storage.NewTokenRecord(token, client, user)
	data, err := s.seal(ctx, rec)
	if err != nil {
		return nil, err
	}

	accessTTL, accessLive := s.ttlUntil(token.AccessTokenExpiresAt)
	refreshTTL, refreshLive := s.ttlUntil(token.RefreshTokenExpiresAt)
	withRefresh := token.RefreshToken != "" && refreshLive

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		if accessLive {
			pipe.Set(ctx, s.accessTokenKey(token.AccessToken), data, accessTTL)
		}
		if withRefresh {
			pipe.Set(ctx, s.refreshTokenKey(token.RefreshToken), data, refreshTTL)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}

	s.logger.Debug("Saved token",
		"token_id", util.SafeTruncate(token.AccessToken, tokenIDLogLength),
		"client_id", clientID(client),
		"with_refresh", withRefresh)

	saved := *token
	saved.Client = client
	saved.User = user
	return &saved, nil
}

func (s *Store) getToken(ctx context.Context, key string) (*oauth.Token, error) {
	var rec storage.TokenRecord
	found, err := s.getRecord(ctx, key, &rec)
	if err != nil || !found {
		return nil, err
	}
	return rec.Token(), nil
}

// GetAccessToken returns the token for accessToken.
func (s *Store) GetAccessToken(ctx context.Context, accessToken string) (_ *oauth.Token, err error) {
	ctx, done := s.telemetry.Start(ctx, "get_access_token")
	defer func() { done(err) }()
	return s.getToken(ctx, s.accessTokenKey(accessToken))
}

// GetRefreshToken returns the token for refreshToken.
func (s *Store) GetRefreshToken(ctx context.Context, refreshToken string) (_ *oauth.Token, err error) {
	ctx, done := s.telemetry.Start(ctx, "get_refresh_token")
	defer func() { done(err) }()
	return s.getToken(ctx, s.refreshTokenKey(refreshToken))
}

// RevokeToken deletes the refresh token key of token. Only one of several
// concurrent calls reports true.
func (s *Store) RevokeToken(ctx context.Context, token *oauth.Token) (_ bool, err error) {
	ctx, done := s.telemetry.Start(ctx, "revoke_token")
	defer func() { done(err) }()

	if token.RefreshToken == "" {
		return false, nil
	}
	n, err := s.client.Del(ctx, s.refreshTokenKey(token.RefreshToken)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return n > 0, nil
}

// ============================================================
// Authorization codes
// ============================================================

// SaveAuthorizationCode writes code with a key expiry at its ExpiresAt.
func (s *Store) SaveAuthorizationCode(ctx context.Context, code *oauth.AuthorizationCode, client *oauth.Client, user oauth.User) (_ *oauth.AuthorizationCode, err error) {
	ctx, done := s.telemetry.Start(ctx, "save_authorization_code")
	defer func() { done(err) }()

	if code == nil || code.Code == "" {
		return nil, fmt.Errorf("authorization code cannot be empty")
	}
	ttl, live := s.ttlUntil(code.ExpiresAt)
	if !live {
		return nil, fmt.Errorf("authorization code already expired")
	}

	data, err := s.seal(ctx, storage.NewCodeRecord(code, client, user))
	if err != nil {
		return nil, err
	}
	if err := s.client.Set(ctx, s.codeKey(code.Code), data, ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to save authorization code: %w", err)
	}

	saved := *code
	saved.Client = client
	saved.User = user
	return &saved, nil
}

// GetAuthorizationCode returns the code, or nil when unknown, expired or
// consumed.
func (s *Store) GetAuthorizationCode(ctx context.Context, code string) (_ *oauth.AuthorizationCode, err error) {
	ctx, done := s.telemetry.Start(ctx, "get_authorization_code")
	defer func() { done(err) }()

	var rec storage.CodeRecord
	found, err := s.getRecord(ctx, s.codeKey(code), &rec)
	if err != nil || !found {
		return nil, err
	}
	return rec.AuthorizationCode(), nil
}

// RevokeAuthorizationCode consumes code with GETDEL, so only the first of
// several concurrent calls reports true.
func (s *Store) RevokeAuthorizationCode(ctx context.Context, code *oauth.AuthorizationCode) (_ bool, err error) {
	ctx, done := s.telemetry.Start(ctx, "revoke_authorization_code")
	defer func() { done(err) }()

	err = s.client.GetDel(ctx, s.codeKey(code.Code)).Err()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to consume authorization code: %w", err)
	}
	return true, nil
}

func clientID(c *oauth.Client) string {
	if c == nil {
		return ""
	}
	return c.ID
}
