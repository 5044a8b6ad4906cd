// Package granttype implements the RFC 6749 grant types: authorization
// code, password, client credentials, refresh token and implicit.
//
// Every grant shares the same issuance step. Scope validation, access token
// generation, refresh token generation and expiry computation run
// concurrently; the first failure aborts the grant before anything is
// saved, otherwise the token is handed to the model's SaveToken.
//
// Constructors check the model capabilities a grant needs and fail with an
// invalid_argument error naming the first missing one.
package granttype
