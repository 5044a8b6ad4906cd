package security

import "time"

// IsExpired reports whether expiresAt lies before now. A zero expiry never
// expires.
func IsExpired(expiresAt, now time.Time) bool {
	if expiresAt.IsZero() {
		return false
	}
	return expiresAt.Before(now)
}
