// Package util provides small helpers shared across the engine's packages:
// truncating secrets for logs and working with space delimited scope
// strings.
package util
