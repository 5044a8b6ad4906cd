package security

import (
	"net"
	"net/http"
	"strings"
)

// ProxyConfig describes the reverse proxies in front of the server.
type ProxyConfig struct {
	// Trust enables X-Forwarded-For and X-Real-IP. Only set it behind a
	// reverse proxy that overwrites those headers.
	Trust bool

	// TrustedCount is the number of trusted proxies counted from the right
	// of X-Forwarded-For. Zero means one.
	TrustedCount int
}

// ClientIP extracts the client address of r, honoring proxy headers only
// when cfg trusts them.
func ClientIP(r *http.Request, cfg ProxyConfig) string {
	if cfg.Trust {
		if ip := ipFromXFF(r.Header.Get("X-Forwarded-For"), cfg.TrustedCount); ip != "" {
			return ip
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && net.ParseIP(xri) != nil {
			return xri
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// X-Forwarded-For is "client, proxy1, proxy2"; the rightmost trustedCount
// entries were added by our own proxies.
func ipFromXFF(xff string, trustedCount int) string {
	if xff == "" {
		return ""
	}
	ips := strings.Split(xff, ",")

	if trustedCount <= 0 {
		trustedCount = 1
	}
	idx := len(ips) - trustedCount - 1
	if idx < 0 {
		idx = 0
	}

	ip := strings.TrimSpace(ips[idx])
	if net.ParseIP(ip) == nil {
		return ""
	}
	return ip
}
