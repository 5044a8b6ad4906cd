package util

import "strings"

// SafeTruncate truncates s to at most maxLen bytes without panicking. It is
// used to log a recognisable prefix of a token instead of the token itself.
// A negative maxLen yields "".
//
//	SafeTruncate("very-long-token-abc123", 8) // "very-lon"
//	SafeTruncate("short", 10)                  // "short"
func SafeTruncate(s string, maxLen int) string {
	if maxLen < 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// SplitScope splits a space delimited scope string into its tokens. Runs of
// spaces are ignored.
func SplitScope(scope string) []string {
	return strings.Fields(scope)
}

// ScopeSubset reports whether every token of requested is contained in
// granted.
func ScopeSubset(requested, granted string) bool {
	have := make(map[string]struct{})
	for _, s := range SplitScope(granted) {
		have[s] = struct{}{}
	}
	for _, s := range SplitScope(requested) {
		if _, ok := have[s]; !ok {
			return false
		}
	}
	return true
}
