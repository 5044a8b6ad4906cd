package server

import (
	"log/slog"
	"time"
)

// Config holds the protocol settings shared by the token, authorize and
// authenticate handlers. Zero values are replaced by defaults.
type Config struct {
	// AccessTokenLifetime applies when the client has none of its own.
	AccessTokenLifetime time.Duration // default: 1 hour

	// RefreshTokenLifetime applies when the client has none of its own.
	RefreshTokenLifetime time.Duration // default: 14 days

	AuthorizationCodeLifetime time.Duration // default: 5 minutes

	// AlwaysIssueNewRefreshToken enables refresh token rotation.
	AlwaysIssueNewRefreshToken *bool // default: true

	// AllowEmptyState lets authorization requests omit `state`.
	AllowEmptyState bool // default: false

	// AllowBearerTokensInQueryString accepts `access_token` in the query
	// (RFC 6750 section 2.3).
	AllowBearerTokensInQueryString bool // default: false

	// AllowExtendedTokenAttributes copies Token.CustomAttributes into the
	// token response.
	AllowExtendedTokenAttributes bool // default: false

	// RequireClientAuthentication maps grant types to whether the client
	// must present a secret. Unlisted grant types require it.
	RequireClientAuthentication map[string]bool

	// ExtendedGrantTypes registers additional grant types by name, usually
	// absolute URIs (RFC 6749 section 4.5).
	ExtendedGrantTypes map[string]GrantTypeFactory

	// Scope is the scope the authenticate handler requires. Empty skips the
	// scope check.
	Scope string

	// AddAcceptedScopesHeader sets X-Accepted-OAuth-Scopes on
	// authenticated responses when Scope is set.
	AddAcceptedScopesHeader *bool // default: true

	// AddAuthorizedScopesHeader sets X-OAuth-Scopes on authenticated
	// responses when Scope is set.
	AddAuthorizedScopesHeader *bool // default: true
}

func boolPtr(b bool) *bool { return &b }

// applyDefaults returns a copy of config with defaults filled in. A nil
// config yields the defaults.
func applyDefaults(config *Config, logger *slog.Logger) *Config {
	c := Config{}
	if config != nil {
		c = *config
	}

	if c.AccessTokenLifetime == 0 {
		c.AccessTokenLifetime = time.Hour
	}
	if c.RefreshTokenLifetime == 0 {
		c.RefreshTokenLifetime = 14 * 24 * time.Hour
	}
	if c.AuthorizationCodeLifetime == 0 {
		c.AuthorizationCodeLifetime = 5 * time.Minute
	}
	if c.AlwaysIssueNewRefreshToken == nil {
		c.AlwaysIssueNewRefreshToken = boolPtr(true)
	}
	if c.AddAcceptedScopesHeader == nil {
		c.AddAcceptedScopesHeader = boolPtr(true)
	}
	if c.AddAuthorizedScopesHeader == nil {
		c.AddAuthorizedScopesHeader = boolPtr(true)
	}

	logSecurityWarnings(&c, logger)
	return &c
}

func (c *Config) clientAuthenticationRequired(grantType string) bool {
	required, ok := c.RequireClientAuthentication[grantType]
	return !ok || required
}

func logSecurityWarnings(config *Config, logger *slog.Logger) {
	if config.AllowBearerTokensInQueryString {
		logger.Warn("SECURITY WARNING: bearer tokens accepted in query strings",
			"risk", "Tokens leak through server logs and Referer headers",
			"learn_more", "https://datatracker.ietf.org/doc/html/rfc6750#section-5.3")
	}
	if config.AllowEmptyState {
		logger.Warn("SECURITY WARNING: authorization requests without `state` are accepted",
			"risk", "Cross-site request forgery against the redirect endpoint",
			"learn_more", "https://datatracker.ietf.org/doc/html/rfc6749#section-10.12")
	}
	if !*config.AlwaysIssueNewRefreshToken {
		logger.Warn("SECURITY NOTICE: refresh token rotation is disabled",
			"risk", "A leaked refresh token stays valid until it expires")
	}
	for grantType, required := range config.RequireClientAuthentication {
		if !required {
			logger.Info("Client authentication disabled for grant type", "grant_type", grantType)
		}
	}
}
