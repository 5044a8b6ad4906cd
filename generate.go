package oauth

import (
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // digest of random input, not used for integrity
	"encoding/hex"
)

// GenerateRandomToken returns a 40 character lowercase hex string: the SHA-1
// digest of 256 bytes from crypto/rand. It is the fallback generator for
// access tokens, refresh tokens and authorization codes.
func GenerateRandomToken() (string, error) {
	buf := make([]byte, 256)
	if _, err := rand.Read(buf); err != nil {
		return "", WrapServerError(err)
	}
	sum := sha1.Sum(buf) //nolint:gosec
	return hex.EncodeToString(sum[:]), nil
}
