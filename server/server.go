package server

import (
	"context"
	"log/slog"

	oauth "github.com/giantswarm/oauth2-engine"
)

// Server bundles the authenticate, authorize and token handlers over one
// model and configuration.
type Server struct {
	Logger *slog.Logger
	Config *Config

	authenticate *AuthenticateHandler
	authorize    *AuthorizeHandler
	token        *TokenHandler
}

// New creates a server. The model must implement GetClient; the other
// capabilities are checked by the handler or grant type that needs them.
// The authorize handler uses opts.UserResolver, or bearer authentication
// when it is nil, in which case the model must implement GetAccessToken.
func New(opts Options) (*Server, error) {
	e, err := newEnv(opts)
	if err != nil {
		return nil, err
	}

	token, err := newTokenHandler(e)
	if err != nil {
		return nil, err
	}
	authorize, err := newAuthorizeHandler(e, opts.UserResolver)
	if err != nil {
		return nil, err
	}

	srv := &Server{
		Logger:    e.logger,
		Config:    e.config,
		authorize: authorize,
		token:     token,
	}

	// resource protection is optional for models without GetAccessToken
	if _, ok := e.model.(oauth.AccessTokenGetter); ok {
		if srv.authenticate, err = newAuthenticateHandler(e, e.config.Scope); err != nil {
			return nil, err
		}
	}
	return srv, nil
}

// Authenticate resolves the bearer token of req.
func (s *Server) Authenticate(ctx context.Context, req *oauth.Request, res *oauth.Response) (*oauth.Token, error) {
	if s.authenticate == nil {
		return nil, oauth.NewInvalidArgumentError("Invalid argument: model does not implement `getAccessToken()`")
	}
	return s.authenticate.Handle(ctx, req, res)
}

// AuthenticateScope resolves the bearer token of req and requires scope.
func (s *Server) AuthenticateScope(ctx context.Context, req *oauth.Request, res *oauth.Response, scope string) (*oauth.Token, error) {
	if s.authenticate == nil {
		return nil, oauth.NewInvalidArgumentError("Invalid argument: model does not implement `getAccessToken()`")
	}
	h, err := s.authenticate.WithScope(scope)
	if err != nil {
		return nil, err
	}
	return h.Handle(ctx, req, res)
}

// Authorize runs an authorization request.
func (s *Server) Authorize(ctx context.Context, req *oauth.Request, res *oauth.Response) (*oauth.AuthorizationResult, error) {
	return s.authorize.Handle(ctx, req, res)
}

// Token runs a token request.
func (s *Server) Token(ctx context.Context, req *oauth.Request, res *oauth.Response) (*oauth.Token, error) {
	return s.token.Handle(ctx, req, res)
}
