package oauth

import (
	"errors"
	"net/http"
)

// OAuth error names as constants. These are used verbatim as the JSON `error`
// member and as the `error` redirect parameter.
const (
	ErrorCodeInvalidArgument         = "invalid_argument"
	ErrorCodeInvalidRequest          = "invalid_request"
	ErrorCodeInvalidClient           = "invalid_client"
	ErrorCodeInvalidGrant            = "invalid_grant"
	ErrorCodeInvalidScope            = "invalid_scope"
	ErrorCodeInvalidToken            = "invalid_token"
	ErrorCodeInsufficientScope       = "insufficient_scope"
	ErrorCodeUnauthorizedClient      = "unauthorized_client"
	ErrorCodeUnauthorizedRequest     = "unauthorized_request"
	ErrorCodeUnsupportedResponseType = "unsupported_response_type"
	ErrorCodeUnsupportedGrantType    = "unsupported_grant_type"
	ErrorCodeAccessDenied            = "access_denied"
	ErrorCodeServerError             = "server_error"
)

// Error is an OAuth 2.0 error. Name is the canonical RFC 6749 error
// identifier, Code the HTTP status used when the error is reported as a JSON
// body. Inner holds the error this one was built from, if any.
type Error struct {
	Name    string
	Code    int
	Message string
	Inner   error
}

// Error implements the error interface. The wrapped error is included when
// its text differs from Message.
func (e *Error) Error() string {
	if e.Inner != nil && e.Inner.Error() != e.Message {
		return e.Name + ": " + e.Message + ": " + e.Inner.Error()
	}
	return e.Name + ": " + e.Message
}

// Unwrap returns the wrapped source error
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is reports whether target is an *Error with the same name. This lets the
// sentinel variants below be used with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Name == e.Name
}

// NewError creates an error with the given name, status code and message.
// A zero code defaults to 500 and an empty message to the reason phrase of
// the code.
func NewError(name string, code int, message string) *Error {
	if code == 0 {
		code = http.StatusInternalServerError
	}
	if message == "" {
		message = http.StatusText(code)
	}
	return &Error{
		Name:    name,
		Code:    code,
		Message: message,
	}
}

// WrapError creates an error from a source error. The message is taken from
// the source error and the source is kept as Inner.
func WrapError(name string, code int, err error) *Error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	e := NewError(name, code, msg)
	e.Inner = err
	return e
}

// Sentinel variants, for use with errors.Is. Each constructor below produces
// an error matching the sentinel of the same name.
var (
	ErrInvalidArgument         = &Error{Name: ErrorCodeInvalidArgument, Code: http.StatusInternalServerError}
	ErrInvalidRequest          = &Error{Name: ErrorCodeInvalidRequest, Code: http.StatusBadRequest}
	ErrInvalidClient           = &Error{Name: ErrorCodeInvalidClient, Code: http.StatusBadRequest}
	ErrInvalidGrant            = &Error{Name: ErrorCodeInvalidGrant, Code: http.StatusBadRequest}
	ErrInvalidScope            = &Error{Name: ErrorCodeInvalidScope, Code: http.StatusBadRequest}
	ErrInvalidToken            = &Error{Name: ErrorCodeInvalidToken, Code: http.StatusUnauthorized}
	ErrInsufficientScope       = &Error{Name: ErrorCodeInsufficientScope, Code: http.StatusForbidden}
	ErrUnauthorizedClient      = &Error{Name: ErrorCodeUnauthorizedClient, Code: http.StatusBadRequest}
	ErrUnauthorizedRequest     = &Error{Name: ErrorCodeUnauthorizedRequest, Code: http.StatusUnauthorized}
	ErrUnsupportedResponseType = &Error{Name: ErrorCodeUnsupportedResponseType, Code: http.StatusBadRequest}
	ErrUnsupportedGrantType    = &Error{Name: ErrorCodeUnsupportedGrantType, Code: http.StatusBadRequest}
	ErrAccessDenied            = &Error{Name: ErrorCodeAccessDenied, Code: http.StatusBadRequest}
	ErrServerError             = &Error{Name: ErrorCodeServerError, Code: http.StatusServiceUnavailable}
)

func newVariant(sentinel *Error, message string) *Error {
	return NewError(sentinel.Name, sentinel.Code, message)
}

// NewInvalidArgumentError reports a programmer or integration mistake, such
// as a model missing a required capability. It is never meant for end users.
func NewInvalidArgumentError(message string) *Error {
	return newVariant(ErrInvalidArgument, message)
}

// NewInvalidRequestError indicates the request is missing a required
// parameter, includes an invalid parameter value, or is otherwise malformed.
func NewInvalidRequestError(message string) *Error {
	return newVariant(ErrInvalidRequest, message)
}

// NewInvalidClientError indicates client authentication failed.
func NewInvalidClientError(message string) *Error {
	return newVariant(ErrInvalidClient, message)
}

// NewInvalidGrantError indicates the authorization grant or refresh token is
// invalid, expired, revoked or was issued to another client.
func NewInvalidGrantError(message string) *Error {
	return newVariant(ErrInvalidGrant, message)
}

// NewInvalidScopeError indicates the requested scope is invalid, unknown or
// malformed.
func NewInvalidScopeError(message string) *Error {
	return newVariant(ErrInvalidScope, message)
}

// NewInvalidTokenError indicates the access token is expired, revoked or
// malformed (RFC 6750 section 3.1).
func NewInvalidTokenError(message string) *Error {
	return newVariant(ErrInvalidToken, message)
}

// NewInsufficientScopeError indicates the request requires higher privileges
// than provided by the access token (RFC 6750 section 3.1).
func NewInsufficientScopeError(message string) *Error {
	return newVariant(ErrInsufficientScope, message)
}

// NewUnauthorizedClientError indicates the client is not authorized to use
// the requested grant or response type.
func NewUnauthorizedClientError(message string) *Error {
	return newVariant(ErrUnauthorizedClient, message)
}

// NewUnauthorizedRequestError indicates the request carried no
// authentication information at all (RFC 6750 section 3.1).
func NewUnauthorizedRequestError(message string) *Error {
	return newVariant(ErrUnauthorizedRequest, message)
}

// NewUnsupportedResponseTypeError indicates the authorization server does not
// support obtaining an authorization code or token using this method.
func NewUnsupportedResponseTypeError(message string) *Error {
	return newVariant(ErrUnsupportedResponseType, message)
}

// NewUnsupportedGrantTypeError indicates the grant type is not supported by
// the authorization server.
func NewUnsupportedGrantTypeError(message string) *Error {
	return newVariant(ErrUnsupportedGrantType, message)
}

// NewAccessDeniedError indicates the resource owner or authorization server
// denied the request.
func NewAccessDeniedError(message string) *Error {
	return newVariant(ErrAccessDenied, message)
}

// NewServerError indicates the authorization server encountered an unexpected
// condition that prevented it from fulfilling the request.
func NewServerError(message string) *Error {
	return newVariant(ErrServerError, message)
}

// WrapServerError wraps an arbitrary error as a server_error, keeping the
// original as Inner.
func WrapServerError(err error) *Error {
	return WrapError(ErrServerError.Name, ErrServerError.Code, err)
}

// AsError returns err as an *Error. Errors outside the taxonomy, including
// anything a model returns, become a server_error whose message is the
// reason phrase of its status; the original is kept as Inner for logs and
// never reaches the wire.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var oe *Error
	if errors.As(err, &oe) {
		return oe
	}
	e := NewError(ErrServerError.Name, ErrServerError.Code, "")
	e.Inner = err
	return e
}

// ErrorResponse represents an OAuth error response body
type ErrorResponse struct {
	// Error is the error code
	Error string `json:"error"`

	// ErrorDescription provides additional information
	ErrorDescription string `json:"error_description,omitempty"`
}

// Response returns the JSON error body for e.
func (e *Error) Response() ErrorResponse {
	return ErrorResponse{
		Error:            e.Name,
		ErrorDescription: e.Message,
	}
}
