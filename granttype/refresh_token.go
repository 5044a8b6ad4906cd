package granttype

import (
	"context"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/internal/util"
	"github.com/giantswarm/oauth2-engine/internal/validate"
	"github.com/giantswarm/oauth2-engine/security"
)

// RefreshToken implements the refresh token grant (RFC 6749 section 6).
type RefreshToken struct {
	base
	tokens  oauth.RefreshTokenGetter
	revoker oauth.TokenRevoker
	rotate  bool
}

// NewRefreshToken creates the refresh token grant. The model must implement
// GetRefreshToken, RevokeToken and SaveToken.
func NewRefreshToken(opts Options) (*RefreshToken, error) {
	b, err := newBase(opts)
	if err != nil {
		return nil, err
	}
	if err := oauth.RequireCapability[oauth.RefreshTokenGetter](opts.Model, "getRefreshToken"); err != nil {
		return nil, err
	}
	if err := oauth.RequireCapability[oauth.TokenRevoker](opts.Model, "revokeToken"); err != nil {
		return nil, err
	}
	if err := oauth.RequireCapability[oauth.TokenSaver](opts.Model, "saveToken"); err != nil {
		return nil, err
	}

	rotate := true
	if opts.AlwaysIssueNewRefreshToken != nil {
		rotate = *opts.AlwaysIssueNewRefreshToken
	}

	return &RefreshToken{
		base:    b,
		tokens:  opts.Model.(oauth.RefreshTokenGetter),
		revoker: opts.Model.(oauth.TokenRevoker),
		rotate:  rotate,
	}, nil
}

// Handle exchanges a refresh token for a new access token. With rotation
// enabled the old refresh token is revoked and a new one is issued;
// otherwise the old refresh token stays valid and is returned again.
func (g *RefreshToken) Handle(ctx context.Context, req *oauth.Request, client *oauth.Client) (*oauth.Token, error) {
	if err := checkArgs(req, client); err != nil {
		return nil, err
	}

	token, err := g.handle(ctx, req, client)
	if err != nil {
		return nil, oauth.AsError(err)
	}
	return token, nil
}

func (g *RefreshToken) handle(ctx context.Context, req *oauth.Request, client *oauth.Client) (*oauth.Token, error) {
	old, err := g.getRefreshToken(ctx, req, client)
	if err != nil {
		return nil, err
	}

	scope, err := g.getScope(req, old)
	if err != nil {
		return nil, err
	}

	issue := issueRequest{
		grantType:           oauth.GrantTypeRefreshToken,
		client:              client,
		user:                old.User,
		scope:               scope,
		skipScopeValidation: true,
	}

	if g.rotate {
		if err := g.revokeToken(ctx, old); err != nil {
			return nil, err
		}
		issue.withRefresh = true
		g.auditor.LogRefreshTokenRotated(ctx, oauth.UserID(old.User), client.ID)
	} else {
		issue.refreshToken = old.RefreshToken
		issue.refreshExpiresAt = old.RefreshTokenExpiresAt
	}

	return g.issue(ctx, issue)
}

func (g *RefreshToken) getRefreshToken(ctx context.Context, req *oauth.Request, client *oauth.Client) (*oauth.Token, error) {
	raw := req.Body.Get("refresh_token")
	if raw == "" {
		return nil, oauth.NewInvalidRequestError("Missing parameter: `refresh_token`")
	}
	if !validate.VSChar(raw) {
		return nil, oauth.NewInvalidRequestError("Invalid parameter: `refresh_token`")
	}

	token, err := g.tokens.GetRefreshToken(ctx, raw)
	if err != nil {
		return nil, err
	}
	if token == nil {
		g.logger.Debug("Refresh token not found", "token_prefix", util.SafeTruncate(raw, 6))
		return nil, oauth.NewInvalidGrantError("Invalid grant: refresh token is invalid")
	}
	if token.Client == nil {
		return nil, oauth.NewServerError("Server error: `getRefreshToken()` did not return a `client` object")
	}
	if token.User == nil {
		return nil, oauth.NewServerError("Server error: `getRefreshToken()` did not return a `user` object")
	}
	if token.Client.ID != client.ID {
		g.logger.Debug("Refresh token issued to another client", "client_id", client.ID)
		return nil, oauth.NewInvalidGrantError("Invalid grant: refresh token is invalid")
	}
	if security.IsExpired(token.RefreshTokenExpiresAt, g.now()) {
		return nil, oauth.NewInvalidGrantError("Invalid grant: refresh token has expired")
	}
	return token, nil
}

// getScope returns the requested scope, which may only narrow the scope of
// the original grant (RFC 6749 section 6). No scope means the original one.
func (g *RefreshToken) getScope(req *oauth.Request, old *oauth.Token) (string, error) {
	requested, err := GetScope(req)
	if err != nil {
		return "", err
	}
	if requested == "" {
		return old.Scope, nil
	}
	if !util.ScopeSubset(requested, old.Scope) {
		return "", oauth.NewInvalidScopeError("Invalid scope: Unable to add extra scopes")
	}
	return requested, nil
}

func (g *RefreshToken) revokeToken(ctx context.Context, token *oauth.Token) error {
	ok, err := g.revoker.RevokeToken(ctx, token)
	if err != nil {
		return err
	}
	if !ok {
		return oauth.NewInvalidGrantError("Invalid grant: refresh token is invalid")
	}
	return nil
}
