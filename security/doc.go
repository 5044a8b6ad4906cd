// Package security provides security building blocks for the OAuth engine.
//
// # Audit logging
//
// Auditor writes structured "security_audit" records through log/slog. User
// identifiers are hashed before they are logged; client IDs are not secret
// and are logged as is.
//
// # Rate limiting
//
// RateLimiter is a per-identifier token bucket (golang.org/x/time/rate) with
// LRU eviction and a background cleanup of idle entries. The HTTP binding
// keys it by ClientIP on the token endpoint.
//
//	limiter := security.NewRateLimiter(security.RateLimiterConfig{
//		RequestsPerSecond: 10,
//		Burst:             20,
//	})
//	defer limiter.Stop()
//
//	if !limiter.Allow(security.ClientIP(r, proxyConfig)) {
//		// reject with 429
//	}
//
// # Encryption at rest
//
// Encryptor seals stored payloads with AES-256-GCM. A disabled encryptor
// (empty key) passes data through, so stores call it unconditionally.
package security
