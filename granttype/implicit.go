package granttype

import (
	"context"

	oauth "github.com/giantswarm/oauth2-engine"
)

// Implicit issues an access token for an already authorized user
// (RFC 6749 section 4.2). It is driven by the token response type of the
// authorization endpoint and is never registered at the token endpoint.
type Implicit struct {
	base
	user  oauth.User
	scope string
}

// NewImplicit creates the implicit grant for opts.User and opts.Scope. The
// model must implement SaveToken.
func NewImplicit(opts Options) (*Implicit, error) {
	b, err := newBase(opts)
	if err != nil {
		return nil, err
	}
	if err := oauth.RequireCapability[oauth.TokenSaver](opts.Model, "saveToken"); err != nil {
		return nil, err
	}
	if opts.User == nil {
		return nil, oauth.NewInvalidArgumentError("Missing parameter: `user`")
	}
	return &Implicit{base: b, user: opts.User, scope: opts.Scope}, nil
}

// Handle issues an access token without a refresh token.
func (g *Implicit) Handle(ctx context.Context, req *oauth.Request, client *oauth.Client) (*oauth.Token, error) {
	if err := checkArgs(req, client); err != nil {
		return nil, err
	}

	token, err := g.issue(ctx, issueRequest{
		grantType: oauth.GrantTypeImplicit,
		client:    client,
		user:      g.user,
		scope:     g.scope,
	})
	if err != nil {
		return nil, oauth.AsError(err)
	}
	return token, nil
}
