// Package validate implements the character class checks RFC 6749 Appendix A
// defines for protocol parameters.
package validate

import (
	"regexp"
	"unicode/utf8"
)

var (
	// NCHAR = %x2D / %x2E / %x5F / DIGIT / ALPHA / %x7E
	ncharRe = regexp.MustCompile(`^[\-._~0-9A-Za-z]+$`)

	// NQCHAR = %x21 / %x23-5B / %x5D-7E
	nqcharRe = regexp.MustCompile(`^[\x21\x23-\x5B\x5D-\x7E]+$`)

	// NQSCHAR = %x20-21 / %x23-5B / %x5D-7E
	nqscharRe = regexp.MustCompile(`^[\x20-\x21\x23-\x5B\x5D-\x7E]+$`)

	// UNICODECHARNOCRLF = %x09 / %x20-7E / %x80-D7FF / %xE000-FFFD / %x10000-10FFFF
	unicodeCharNoCRLFRe = regexp.MustCompile(`^[\x09\x20-\x7E\x{80}-\x{D7FF}\x{E000}-\x{FFFD}\x{10000}-\x{10FFFF}]+$`)

	// URI-reference with a scheme (RFC 3986 section 3.1)
	uriRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]+:`)

	// VSCHAR = %x20-7E
	vscharRe = regexp.MustCompile(`^[\x20-\x7E]+$`)
)

// NChar reports whether value matches NCHAR.
func NChar(value string) bool {
	return ncharRe.MatchString(value)
}

// NQChar reports whether value matches NQCHAR.
func NQChar(value string) bool {
	return nqcharRe.MatchString(value)
}

// NQSChar reports whether value matches NQSCHAR. Scopes use this class.
func NQSChar(value string) bool {
	return nqscharRe.MatchString(value)
}

// UnicodeCharNoCRLF reports whether value matches UNICODECHARNOCRLF.
// Usernames and passwords use this class. Invalid UTF-8 never matches.
func UnicodeCharNoCRLF(value string) bool {
	return utf8.ValidString(value) && unicodeCharNoCRLFRe.MatchString(value)
}

// URI reports whether value starts with a URI scheme.
func URI(value string) bool {
	return uriRe.MatchString(value)
}

// VSChar reports whether value matches VSCHAR. Client IDs, codes, refresh
// tokens and state use this class.
func VSChar(value string) bool {
	return vscharRe.MatchString(value)
}
