package granttype

import (
	"context"

	oauth "github.com/giantswarm/oauth2-engine"
)

// ClientCredentials implements the client credentials grant
// (RFC 6749 section 4.4). No refresh token is issued (section 4.4.3).
type ClientCredentials struct {
	base
	users oauth.UserFromClientGetter
}

// NewClientCredentials creates the client credentials grant. The model must
// implement GetUserFromClient and SaveToken.
func NewClientCredentials(opts Options) (*ClientCredentials, error) {
	b, err := newBase(opts)
	if err != nil {
		return nil, err
	}
	if err := oauth.RequireCapability[oauth.UserFromClientGetter](opts.Model, "getUserFromClient"); err != nil {
		return nil, err
	}
	if err := oauth.RequireCapability[oauth.TokenSaver](opts.Model, "saveToken"); err != nil {
		return nil, err
	}
	return &ClientCredentials{base: b, users: opts.Model.(oauth.UserFromClientGetter)}, nil
}

// Handle issues an access token for the user the client acts as.
func (g *ClientCredentials) Handle(ctx context.Context, req *oauth.Request, client *oauth.Client) (*oauth.Token, error) {
	if err := checkArgs(req, client); err != nil {
		return nil, err
	}

	scope, err := GetScope(req)
	if err != nil {
		return nil, err
	}

	user, err := g.users.GetUserFromClient(ctx, client)
	if err != nil {
		return nil, oauth.AsError(err)
	}
	if user == nil {
		return nil, oauth.NewInvalidGrantError("Invalid grant: user credentials are invalid")
	}

	token, err := g.issue(ctx, issueRequest{
		grantType: oauth.GrantTypeClientCredentials,
		client:    client,
		user:      user,
		scope:     scope,
	})
	if err != nil {
		return nil, oauth.AsError(err)
	}
	return token, nil
}
