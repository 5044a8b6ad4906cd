package oauth

import (
	"encoding/json"
	"time"
)

// BearerToken is the token response envelope defined by RFC 6750.
type BearerToken struct {
	AccessToken  string
	ExpiresIn    time.Duration
	RefreshToken string
	Scope        string

	// CustomAttributes are appended to the wire form without overwriting
	// the standard members.
	CustomAttributes map[string]any
}

// NewBearerToken builds a Bearer envelope. accessToken is required.
func NewBearerToken(accessToken string, expiresIn time.Duration, refreshToken, scope string, custom map[string]any) (*BearerToken, error) {
	if accessToken == "" {
		return nil, NewInvalidArgumentError("Missing parameter: `accessToken`")
	}
	return &BearerToken{
		AccessToken:      accessToken,
		ExpiresIn:        expiresIn,
		RefreshToken:     refreshToken,
		Scope:            scope,
		CustomAttributes: custom,
	}, nil
}

// BearerFromToken builds the envelope for a saved token. Custom attributes
// are only included when withCustom is set.
func BearerFromToken(t *Token, now time.Time, withCustom bool) (*BearerToken, error) {
	var custom map[string]any
	if withCustom {
		custom = t.CustomAttributes
	}
	return NewBearerToken(t.AccessToken, t.AccessTokenLifetime(now), t.RefreshToken, t.Scope, custom)
}

// Map returns the wire form. expires_in is in whole seconds and is omitted
// along with refresh_token and scope when unset.
func (b *BearerToken) Map() map[string]any {
	m := map[string]any{
		"access_token": b.AccessToken,
		"token_type":   TokenTypeBearer,
	}
	if b.ExpiresIn > 0 {
		m["expires_in"] = int64(b.ExpiresIn / time.Second)
	}
	if b.RefreshToken != "" {
		m["refresh_token"] = b.RefreshToken
	}
	if b.Scope != "" {
		m["scope"] = b.Scope
	}
	for k, v := range b.CustomAttributes {
		if _, taken := m[k]; taken {
			continue
		}
		m[k] = v
	}
	return m
}

// MarshalJSON implements json.Marshaler
func (b *BearerToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Map())
}
