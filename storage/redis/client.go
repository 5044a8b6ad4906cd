package redis

import (
	"context"
	"fmt"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/storage"
)

// ============================================================
// Registration
// ============================================================

// RegisterClient adds or replaces a client. An empty secret registers a
// public client.
func (s *Store) RegisterClient(ctx context.Context, client storage.ClientRecord, secret string) (err error) {
	ctx, done := s.telemetry.Start(ctx, "register_client")
	defer func() { done(err) }()

	rec, err := storage.NewClientRecord(client, secret)
	if err != nil {
		return err
	}
	data, err := s.seal(ctx, rec)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.clientKey(rec.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save client: %w", err)
	}

	s.logger.Debug("Registered client", "client_id", rec.ID, "public", rec.SecretHash == "")
	return nil
}

// RegisterUser adds or replaces a resource owner.
func (s *Store) RegisterUser(ctx context.Context, username, password string) (err error) {
	ctx, done := s.telemetry.Start(ctx, "register_user")
	defer func() { done(err) }()

	rec, err := storage.NewUserRecord(username, password)
	if err != nil {
		return err
	}
	data, err := s.seal(ctx, rec)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.userKey(username), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// ============================================================
// Clients and users
// ============================================================

func (s *Store) clientRecord(ctx context.Context, id string) (*storage.ClientRecord, error) {
	var rec storage.ClientRecord
	found, err := s.getRecord(ctx, s.clientKey(id), &rec)
	if err != nil || !found {
		return nil, err
	}
	return &rec, nil
}

// GetClient returns the client, checking secret when one is given.
func (s *Store) GetClient(ctx context.Context, clientID, clientSecret string) (_ *oauth.Client, err error) {
	ctx, done := s.telemetry.Start(ctx, "get_client")
	defer func() { done(err) }()

	rec, err := s.clientRecord(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return storage.AuthenticateClient(rec, clientSecret), nil
}

// GetUser returns the username when the password matches.
func (s *Store) GetUser(ctx context.Context, username, password string) (_ oauth.User, err error) {
	ctx, done := s.telemetry.Start(ctx, "get_user")
	defer func() { done(err) }()

	var rec storage.UserRecord
	found, err := s.getRecord(ctx, s.userKey(username), &rec)
	if err != nil {
		return nil, err
	}
	hash := ""
	if found {
		hash = rec.PasswordHash
	}
	if !storage.CompareSecret(hash, password) {
		return nil, nil
	}
	return rec.Username, nil
}

// GetUserFromClient returns the user a client acts as, if it has one.
func (s *Store) GetUserFromClient(ctx context.Context, client *oauth.Client) (_ oauth.User, err error) {
	ctx, done := s.telemetry.Start(ctx, "get_user_from_client")
	defer func() { done(err) }()

	rec, err := s.clientRecord(ctx, client.ID)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.UserID == "" {
		return nil, nil
	}
	return rec.UserID, nil
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
