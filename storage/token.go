package storage

import (
	"encoding/json"
	"fmt"
	"time"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/security"
)

// TokenRecord is the serialized form of an issued token. The client is kept
// as a snapshot so a token can be rebuilt without a second lookup.
type TokenRecord struct {
	AccessToken           string         `json:"access_token"`
	AccessTokenExpiresAt  time.Time      `json:"access_token_expires_at,omitzero"`
	RefreshToken          string         `json:"refresh_token,omitempty"`
	RefreshTokenExpiresAt time.Time      `json:"refresh_token_expires_at,omitzero"`
	Scope                 string         `json:"scope,omitempty"`
	Client                *ClientRecord  `json:"client,omitempty"`
	UserID                string         `json:"user_id,omitempty"`
	CustomAttributes      map[string]any `json:"custom_attributes,omitempty"`
}

// CodeRecord is the serialized form of an authorization code.
type CodeRecord struct {
	Code        string        `json:"code"`
	ExpiresAt   time.Time     `json:"expires_at"`
	RedirectURI string        `json:"redirect_uri,omitempty"`
	Scope       string        `json:"scope,omitempty"`
	Client      *ClientRecord `json:"client,omitempty"`
	UserID      string        `json:"user_id,omitempty"`
}

// NewTokenRecord captures token as issued to client and user.
func NewTokenRecord(token *oauth.Token, client *oauth.Client, user oauth.User) *TokenRecord {
	return &TokenRecord{
		AccessToken:           token.AccessToken,
		AccessTokenExpiresAt:  token.AccessTokenExpiresAt,
		RefreshToken:          token.RefreshToken,
		RefreshTokenExpiresAt: token.RefreshTokenExpiresAt,
		Scope:                 token.Scope,
		Client:                clientSnapshot(client),
		UserID:                UserID(user),
		CustomAttributes:      token.CustomAttributes,
	}
}

// Token rebuilds the engine token. The user is the stored user ID.
func (r *TokenRecord) Token() *oauth.Token {
	t := &oauth.Token{
		AccessToken:           r.AccessToken,
		AccessTokenExpiresAt:  r.AccessTokenExpiresAt,
		RefreshToken:          r.RefreshToken,
		RefreshTokenExpiresAt: r.RefreshTokenExpiresAt,
		Scope:                 r.Scope,
		CustomAttributes:      r.CustomAttributes,
	}
	if r.Client != nil {
		t.Client = r.Client.Client()
	}
	if r.UserID != "" {
		t.User = r.UserID
	}
	return t
}

// NewCodeRecord captures code as issued to client and user.
func NewCodeRecord(code *oauth.AuthorizationCode, client *oauth.Client, user oauth.User) *CodeRecord {
	return &CodeRecord{
		Code:        code.Code,
		ExpiresAt:   code.ExpiresAt,
		RedirectURI: code.RedirectURI,
		Scope:       code.Scope,
		Client:      clientSnapshot(client),
		UserID:      UserID(user),
	}
}

// AuthorizationCode rebuilds the engine authorization code.
func (r *CodeRecord) AuthorizationCode() *oauth.AuthorizationCode {
	c := &oauth.AuthorizationCode{
		Code:        r.Code,
		ExpiresAt:   r.ExpiresAt,
		RedirectURI: r.RedirectURI,
		Scope:       r.Scope,
	}
	if r.Client != nil {
		c.Client = r.Client.Client()
	}
	if r.UserID != "" {
		c.User = r.UserID
	}
	return c
}

func clientSnapshot(c *oauth.Client) *ClientRecord {
	if c == nil {
		return nil
	}
	return &ClientRecord{
		ID:                   c.ID,
		Grants:               c.Grants,
		RedirectURIs:         c.RedirectURIs,
		AccessTokenLifetime:  c.AccessTokenLifetime,
		RefreshTokenLifetime: c.RefreshTokenLifetime,
		Scope:                c.Scope,
	}
}

// Seal marshals v to JSON and encrypts it. A nil or disabled encryptor
// leaves the JSON in clear text.
func Seal(v any, enc *security.Encryptor) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	sealed, err := enc.Seal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt record: %w", err)
	}
	return sealed, nil
}

// Open reverses Seal into v.
func Open(data []byte, v any, enc *security.Encryptor) error {
	plain, err := enc.Open(data)
	if err != nil {
		return fmt.Errorf("failed to decrypt record: %w", err)
	}
	if err := json.Unmarshal(plain, v); err != nil {
		return fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return nil
}
