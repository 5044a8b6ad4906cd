package oauth

import "context"

// Model is the storage and identity adapter supplied by the caller. It is an
// empty interface on purpose: each handler asserts, at construction time,
// the capability interfaces below that it needs and fails with an
// invalid_argument error naming the missing method.
//
// Returning a nil object with a nil error means "not found". Returning an
// error that is not an *Error makes the engine report server_error.
type Model any

// ClientGetter looks up a client. secret is empty when the flow does not
// authenticate the client (authorization requests, public clients), in
// which case the model must not check it.
type ClientGetter interface {
	GetClient(ctx context.Context, clientID, clientSecret string) (*Client, error)
}

// UserGetter resolves resource owner credentials for the password grant.
type UserGetter interface {
	GetUser(ctx context.Context, username, password string) (User, error)
}

// UserFromClientGetter resolves the user a client acts as in the client
// credentials grant.
type UserFromClientGetter interface {
	GetUserFromClient(ctx context.Context, client *Client) (User, error)
}

// TokenSaver persists a freshly issued token. The returned token is what the
// engine reports; it may carry CustomAttributes.
type TokenSaver interface {
	SaveToken(ctx context.Context, token *Token, client *Client, user User) (*Token, error)
}

// AccessTokenGetter looks up an access token for bearer authentication.
type AccessTokenGetter interface {
	GetAccessToken(ctx context.Context, accessToken string) (*Token, error)
}

// AuthorizationCodeGetter looks up an authorization code.
type AuthorizationCodeGetter interface {
	GetAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error)
}

// AuthorizationCodeSaver persists a freshly issued authorization code.
type AuthorizationCodeSaver interface {
	SaveAuthorizationCode(ctx context.Context, code *AuthorizationCode, client *Client, user User) (*AuthorizationCode, error)
}

// AuthorizationCodeRevoker consumes an authorization code. It reports false
// when the code was already consumed or never existed.
type AuthorizationCodeRevoker interface {
	RevokeAuthorizationCode(ctx context.Context, code *AuthorizationCode) (bool, error)
}

// RefreshTokenGetter looks up a refresh token.
type RefreshTokenGetter interface {
	GetRefreshToken(ctx context.Context, refreshToken string) (*Token, error)
}

// TokenRevoker revokes the refresh token carried by token. It reports false
// when nothing was revoked.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, token *Token) (bool, error)
}

// ScopeValidator narrows or rejects a requested scope. An empty result means
// the scope is invalid.
type ScopeValidator interface {
	ValidateScope(ctx context.Context, user User, client *Client, scope string) (string, error)
}

// ScopeVerifier checks that a token covers the scope a resource requires.
type ScopeVerifier interface {
	VerifyScope(ctx context.Context, token *Token, scope string) (bool, error)
}

// AccessTokenGenerator overrides access token generation. An empty result
// falls back to the built-in generator.
type AccessTokenGenerator interface {
	GenerateAccessToken(ctx context.Context, client *Client, user User, scope string) (string, error)
}

// RefreshTokenGenerator overrides refresh token generation. An empty result
// falls back to the built-in generator.
type RefreshTokenGenerator interface {
	GenerateRefreshToken(ctx context.Context, client *Client, user User, scope string) (string, error)
}

// AuthorizationCodeGenerator overrides authorization code generation. An
// empty result falls back to the built-in generator.
type AuthorizationCodeGenerator interface {
	GenerateAuthorizationCode(ctx context.Context, client *Client, user User, scope string) (string, error)
}

// RequireCapability returns an invalid_argument error when model does not
// implement T. method is the name reported in the error message.
func RequireCapability[T any](model Model, method string) error {
	if _, ok := model.(T); !ok {
		return NewInvalidArgumentError("Invalid argument: model does not implement `" + method + "()`")
	}
	return nil
}
