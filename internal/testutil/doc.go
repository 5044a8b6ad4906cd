// Package testutil provides test fixtures for the OAuth engine: a
// controllable clock, a recording fake model implementing every model
// capability, request builders and error assertions.
package testutil
