package storage

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/internal/util"
)

// dummyHash is compared against when a client or user does not exist, so a
// lookup of an unknown identifier costs the same as a wrong secret.
// bcrypt hash of "test".
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// ErrInvalidRecord is returned when a client or user cannot be registered.
var ErrInvalidRecord = errors.New("invalid record")

// ClientRecord is a registered client as kept by the reference models.
type ClientRecord struct {
	ID string `json:"id"`

	// SecretHash is the bcrypt hash of the client secret. Empty marks a
	// public client, which can only be looked up without a secret.
	SecretHash string `json:"secret_hash,omitempty"`

	Grants               []string      `json:"grants"`
	RedirectURIs         []string      `json:"redirect_uris,omitempty"`
	AccessTokenLifetime  time.Duration `json:"access_token_lifetime,omitempty"`
	RefreshTokenLifetime time.Duration `json:"refresh_token_lifetime,omitempty"`

	// Scope bounds what the client may request. Empty accepts any scope.
	Scope string `json:"scope,omitempty"`

	// UserID is the user a client acts as in the client credentials grant.
	UserID string `json:"user_id,omitempty"`
}

// Client returns the engine's view of r, without the secret hash.
func (r *ClientRecord) Client() *oauth.Client {
	return &oauth.Client{
		ID:                   r.ID,
		Grants:               append([]string(nil), r.Grants...),
		RedirectURIs:         append([]string(nil), r.RedirectURIs...),
		AccessTokenLifetime:  r.AccessTokenLifetime,
		RefreshTokenLifetime: r.RefreshTokenLifetime,
		Scope:                r.Scope,
	}
}

// UserRecord is a resource owner with a bcrypt password hash.
type UserRecord struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
}

// NewClientRecord validates r and hashes secret into it. An empty secret
// registers a public client.
func NewClientRecord(r ClientRecord, secret string) (*ClientRecord, error) {
	if r.ID == "" {
		return nil, fmt.Errorf("%w: client id is required", ErrInvalidRecord)
	}
	if len(r.Grants) == 0 {
		return nil, fmt.Errorf("%w: client %q has no grants", ErrInvalidRecord, r.ID)
	}
	r.SecretHash = ""
	if secret != "" {
		hash, err := HashSecret(secret)
		if err != nil {
			return nil, err
		}
		r.SecretHash = hash
	}
	return &r, nil
}

// NewUserRecord hashes password into a user record.
func NewUserRecord(username, password string) (*UserRecord, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidRecord)
	}
	hash, err := HashSecret(password)
	if err != nil {
		return nil, err
	}
	return &UserRecord{Username: username, PasswordHash: hash}, nil
}

// HashSecret hashes a client secret or password with bcrypt.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hash), nil
}

// CompareSecret reports whether secret matches hash. An empty hash is
// compared against a dummy hash and never matches, so unknown identifiers
// take as long as known ones.
func CompareSecret(hash, secret string) bool {
	target := hash
	if target == "" {
		target = dummyHash
	}
	err := bcrypt.CompareHashAndPassword([]byte(target), []byte(secret))
	return hash != "" && err == nil
}

// AuthenticateClient applies the lookup rules every reference model shares:
// without a secret the client is returned as is, with one the secret must
// match. r may be nil for an unknown client.
func AuthenticateClient(r *ClientRecord, secret string) *oauth.Client {
	if secret == "" {
		if r == nil {
			return nil
		}
		return r.Client()
	}
	hash := ""
	if r != nil {
		hash = r.SecretHash
	}
	if !CompareSecret(hash, secret) {
		return nil
	}
	return r.Client()
}

// ValidateScope is the scope policy of the reference models. An empty
// request yields the client's registered scope, or defaultScope when the
// client has none. A client with a registered scope may only request a
// subset of it. The result is "" when the request is rejected.
func ValidateScope(client *oauth.Client, requested, defaultScope string) string {
	registered := ""
	if client != nil {
		registered = client.Scope
	}
	if requested == "" {
		if registered != "" {
			return registered
		}
		return defaultScope
	}
	if registered != "" && !util.ScopeSubset(requested, registered) {
		return ""
	}
	return requested
}

// VerifyScope reports whether token carries every scope in required.
func VerifyScope(token *oauth.Token, required string) bool {
	if token == nil {
		return false
	}
	return util.ScopeSubset(required, token.Scope)
}

// UserID returns the string form of a user as stored by the reference
// models.
func UserID(u oauth.User) string {
	if u == nil {
		return ""
	}
	if id := oauth.UserID(u); id != "" {
		return id
	}
	return fmt.Sprint(u)
}
