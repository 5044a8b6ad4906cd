package granttype

import (
	"context"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/internal/validate"
)

// Password implements the resource owner password credentials grant
// (RFC 6749 section 4.3).
type Password struct {
	base
	users oauth.UserGetter
}

// NewPassword creates the password grant. The model must implement
// GetUser and SaveToken.
func NewPassword(opts Options) (*Password, error) {
	b, err := newBase(opts)
	if err != nil {
		return nil, err
	}
	if err := oauth.RequireCapability[oauth.UserGetter](opts.Model, "getUser"); err != nil {
		return nil, err
	}
	if err := oauth.RequireCapability[oauth.TokenSaver](opts.Model, "saveToken"); err != nil {
		return nil, err
	}
	return &Password{base: b, users: opts.Model.(oauth.UserGetter)}, nil
}

// Handle authenticates the resource owner and issues an access and a
// refresh token.
func (g *Password) Handle(ctx context.Context, req *oauth.Request, client *oauth.Client) (*oauth.Token, error) {
	if err := checkArgs(req, client); err != nil {
		return nil, err
	}

	scope, err := GetScope(req)
	if err != nil {
		return nil, err
	}

	user, err := g.getUser(ctx, req)
	if err != nil {
		return nil, oauth.AsError(err)
	}

	token, err := g.issue(ctx, issueRequest{
		grantType:   oauth.GrantTypePassword,
		client:      client,
		user:        user,
		scope:       scope,
		withRefresh: true,
	})
	if err != nil {
		return nil, oauth.AsError(err)
	}
	return token, nil
}

func (g *Password) getUser(ctx context.Context, req *oauth.Request) (oauth.User, error) {
	username := req.Body.Get("username")
	password := req.Body.Get("password")

	if username == "" {
		return nil, oauth.NewInvalidRequestError("Missing parameter: `username`")
	}
	if password == "" {
		return nil, oauth.NewInvalidRequestError("Missing parameter: `password`")
	}
	if !validate.UnicodeCharNoCRLF(username) {
		return nil, oauth.NewInvalidRequestError("Invalid parameter: `username`")
	}
	if !validate.UnicodeCharNoCRLF(password) {
		return nil, oauth.NewInvalidRequestError("Invalid parameter: `password`")
	}

	user, err := g.users.GetUser(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if user == nil {
		g.logger.Debug("Password grant rejected", "reason", "unknown user or wrong password")
		return nil, oauth.NewInvalidGrantError("Invalid grant: user credentials are invalid")
	}
	return user, nil
}
