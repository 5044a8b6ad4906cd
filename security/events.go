package security

// Event type constants for security audit logging.
const (
	// EventTokenIssued is logged when an access token is issued by any grant
	EventTokenIssued = "token_issued"

	// EventRefreshTokenRotated is logged when a refresh token is revoked and replaced
	EventRefreshTokenRotated = "refresh_token_rotated" //nolint:gosec // event name, not a credential

	// EventAuthorizationCodeIssued is logged when an authorization code is issued
	EventAuthorizationCodeIssued = "authorization_code_issued"

	// EventAuthorizationDenied is logged when an authorization request fails
	EventAuthorizationDenied = "authorization_denied"

	// EventAuthFailure is logged when client, user or bearer authentication fails
	EventAuthFailure = "auth_failure"

	// EventRateLimitExceeded is logged when a rate limit is exceeded
	EventRateLimitExceeded = "rate_limit_exceeded"
)
