package oauth

import (
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// Grant type identifiers as they appear in the `grant_type` parameter and in
// Client.Grants.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeClientCredentials = "client_credentials"
	GrantTypeImplicit          = "implicit"
	GrantTypePassword          = "password"
	GrantTypeRefreshToken      = "refresh_token"
)

// Response type identifiers as they appear in the `response_type` parameter.
const (
	ResponseTypeCode  = "code"
	ResponseTypeToken = "token"
)

// TokenTypeBearer is the only token type this package issues.
const TokenTypeBearer = "Bearer"

// Client is a registered OAuth client as returned by the model. The engine
// never modifies it.
type Client struct {
	// ID is the client identifier.
	ID string

	// Grants lists the grant types the client may use.
	Grants []string

	// RedirectURIs lists the registered redirection endpoints. The first one
	// is used when an authorization request does not name one.
	RedirectURIs []string

	// AccessTokenLifetime and RefreshTokenLifetime override the server wide
	// lifetimes when non-zero.
	AccessTokenLifetime  time.Duration
	RefreshTokenLifetime time.Duration

	// Scope is the scope registered for the client, if the model tracks one.
	Scope string
}

// HasGrant reports whether grant is listed in c.Grants.
func (c *Client) HasGrant(grant string) bool {
	for _, g := range c.Grants {
		if g == grant {
			return true
		}
	}
	return false
}

// HasRedirectURI reports whether uri is one of the registered redirect URIs.
// The comparison is exact.
func (c *Client) HasRedirectURI(uri string) bool {
	for _, u := range c.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

// User is the resource owner as represented by the model. The engine treats
// it as opaque; nil means no user.
type User any

// UserID returns an identifier for user suitable for logs and audit
// records: the result of GetID when the user has one, the user itself
// when it is a string, else its String method. It returns "" otherwise.
func UserID(user User) string {
	switch u := user.(type) {
	case interface{ GetID() string }:
		return u.GetID()
	case string:
		return u
	case fmt.Stringer:
		return u.String()
	}
	return ""
}

// Token is an issued access token, optionally paired with a refresh token.
// A zero expiry time means the token does not expire.
type Token struct {
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	Scope                 string
	Client                *Client
	User                  User

	// CustomAttributes are extra members a model attaches to a token. They
	// are only written to the token response when the token handler allows
	// extended attributes.
	CustomAttributes map[string]any
}

// AccessTokenLifetime returns the remaining lifetime of the access token at
// now, truncated to whole seconds. It returns 0 when the token has no
// expiry.
func (t *Token) AccessTokenLifetime(now time.Time) time.Duration {
	if t.AccessTokenExpiresAt.IsZero() {
		return 0
	}
	d := t.AccessTokenExpiresAt.Sub(now).Truncate(time.Second)
	if d < 0 {
		return 0
	}
	return d
}

// OAuth2 converts t into the golang.org/x/oauth2 representation, for callers
// that hand tokens to client side code.
func (t *Token) OAuth2() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    TokenTypeBearer,
		RefreshToken: t.RefreshToken,
		Expiry:       t.AccessTokenExpiresAt,
	}
	if t.Scope != "" {
		tok = tok.WithExtra(map[string]any{"scope": t.Scope})
	}
	return tok
}

// AuthorizationCode is a single use authorization code.
type AuthorizationCode struct {
	Code        string
	ExpiresAt   time.Time
	RedirectURI string
	Scope       string
	Client      *Client
	User        User
}

// AuthorizationResult is the artifact produced by a successful authorization
// request: a code for the code flow, a token for the implicit flow.
type AuthorizationResult struct {
	Code  *AuthorizationCode
	Token *Token
}
