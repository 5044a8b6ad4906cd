package granttype

import (
	"context"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/internal/util"
	"github.com/giantswarm/oauth2-engine/internal/validate"
	"github.com/giantswarm/oauth2-engine/security"
)

// AuthorizationCode implements the authorization code grant
// (RFC 6749 section 4.1.3).
type AuthorizationCode struct {
	base
	codes   oauth.AuthorizationCodeGetter
	revoker oauth.AuthorizationCodeRevoker
}

// NewAuthorizationCode creates the authorization code grant. The model must
// implement GetAuthorizationCode, RevokeAuthorizationCode and SaveToken.
func NewAuthorizationCode(opts Options) (*AuthorizationCode, error) {
	b, err := newBase(opts)
	if err != nil {
		return nil, err
	}
	if err := oauth.RequireCapability[oauth.AuthorizationCodeGetter](opts.Model, "getAuthorizationCode"); err != nil {
		return nil, err
	}
	if err := oauth.RequireCapability[oauth.AuthorizationCodeRevoker](opts.Model, "revokeAuthorizationCode"); err != nil {
		return nil, err
	}
	if err := oauth.RequireCapability[oauth.TokenSaver](opts.Model, "saveToken"); err != nil {
		return nil, err
	}
	return &AuthorizationCode{
		base:    b,
		codes:   opts.Model.(oauth.AuthorizationCodeGetter),
		revoker: opts.Model.(oauth.AuthorizationCodeRevoker),
	}, nil
}

// Handle consumes the authorization code and issues an access and a refresh
// token carrying the code's scope.
func (g *AuthorizationCode) Handle(ctx context.Context, req *oauth.Request, client *oauth.Client) (*oauth.Token, error) {
	if err := checkArgs(req, client); err != nil {
		return nil, err
	}

	token, err := g.handle(ctx, req, client)
	if err != nil {
		return nil, oauth.AsError(err)
	}
	return token, nil
}

func (g *AuthorizationCode) handle(ctx context.Context, req *oauth.Request, client *oauth.Client) (*oauth.Token, error) {
	code, err := g.getAuthorizationCode(ctx, req, client)
	if err != nil {
		return nil, err
	}
	if err := g.validateRedirectURI(req, code); err != nil {
		return nil, err
	}
	if err := g.revokeAuthorizationCode(ctx, code); err != nil {
		return nil, err
	}

	return g.issue(ctx, issueRequest{
		grantType:   oauth.GrantTypeAuthorizationCode,
		client:      client,
		user:        code.User,
		scope:       code.Scope,
		withRefresh: true,
	})
}

func (g *AuthorizationCode) getAuthorizationCode(ctx context.Context, req *oauth.Request, client *oauth.Client) (*oauth.AuthorizationCode, error) {
	raw := req.Body.Get("code")
	if raw == "" {
		return nil, oauth.NewInvalidRequestError("Missing parameter: `code`")
	}
	if !validate.VSChar(raw) {
		return nil, oauth.NewInvalidRequestError("Invalid parameter: `code`")
	}

	code, err := g.codes.GetAuthorizationCode(ctx, raw)
	if err != nil {
		return nil, err
	}
	if code == nil {
		g.logger.Debug("Authorization code not found", "code_prefix", util.SafeTruncate(raw, 6))
		return nil, oauth.NewInvalidGrantError("Invalid grant: authorization code is invalid")
	}
	if code.Client == nil {
		return nil, oauth.NewServerError("Server error: `getAuthorizationCode()` did not return a `client` object")
	}
	if code.User == nil {
		return nil, oauth.NewServerError("Server error: `getAuthorizationCode()` did not return a `user` object")
	}
	if code.Client.ID != client.ID {
		g.logger.Debug("Authorization code issued to another client", "client_id", client.ID)
		return nil, oauth.NewInvalidGrantError("Invalid grant: authorization code is invalid")
	}
	if code.ExpiresAt.IsZero() {
		return nil, oauth.NewServerError("Server error: `getAuthorizationCode()` did not return an `expiresAt` time")
	}
	if security.IsExpired(code.ExpiresAt, g.now()) {
		return nil, oauth.NewInvalidGrantError("Invalid grant: authorization code has expired")
	}
	if code.RedirectURI != "" && !validate.URI(code.RedirectURI) {
		return nil, oauth.NewInvalidGrantError("Invalid grant: `redirect_uri` is not a valid URI")
	}
	return code, nil
}

// validateRedirectURI enforces RFC 6749 section 4.1.3: when the
// authorization request carried a redirect_uri, the token request must
// repeat it verbatim.
func (g *AuthorizationCode) validateRedirectURI(req *oauth.Request, code *oauth.AuthorizationCode) error {
	if code.RedirectURI == "" {
		return nil
	}
	redirectURI := req.Param("redirect_uri")
	if redirectURI != "" && !validate.URI(redirectURI) {
		return oauth.NewInvalidRequestError("Invalid request: `redirect_uri` is not a valid URI")
	}
	if redirectURI != code.RedirectURI {
		return oauth.NewInvalidRequestError("Invalid request: `redirect_uri` is invalid")
	}
	return nil
}

func (g *AuthorizationCode) revokeAuthorizationCode(ctx context.Context, code *oauth.AuthorizationCode) error {
	ok, err := g.revoker.RevokeAuthorizationCode(ctx, code)
	if err != nil {
		return err
	}
	if !ok {
		return oauth.NewInvalidGrantError("Invalid grant: authorization code is invalid")
	}
	return nil
}
