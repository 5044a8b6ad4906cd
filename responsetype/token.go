package responsetype

import (
	"context"
	"strconv"
	"time"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/granttype"
)

// TokenResponseType issues access tokens through the implicit grant.
type TokenResponseType struct {
	opts Options

	token *oauth.Token
}

var _ ResponseType = (*TokenResponseType)(nil)

// NewToken creates the token response type. The model must implement
// SaveToken.
func NewToken(opts Options) (*TokenResponseType, error) {
	if opts.AccessTokenLifetime <= 0 {
		return nil, oauth.NewInvalidArgumentError("Missing parameter: `accessTokenLifetime`")
	}
	if opts.Model == nil {
		return nil, oauth.NewInvalidArgumentError("Missing parameter: `model`")
	}
	if err := oauth.RequireCapability[oauth.TokenSaver](opts.Model, "saveToken"); err != nil {
		return nil, err
	}
	opts.applyDefaults()
	return &TokenResponseType{opts: opts}, nil
}

// Handle runs the implicit grant for user and scope.
func (t *TokenResponseType) Handle(ctx context.Context, req *oauth.Request, client *oauth.Client, user oauth.User, redirectURI, scope string) (*oauth.AuthorizationResult, error) {
	if err := checkArgs(req, client, user, redirectURI); err != nil {
		return nil, err
	}

	grant, err := granttype.NewImplicit(granttype.Options{
		AccessTokenLifetime: t.accessTokenLifetime(client),
		Model:               t.opts.Model,
		User:                user,
		Scope:               scope,
		Logger:              t.opts.Logger,
		Auditor:             t.opts.Auditor,
		Instrumentation:     t.opts.Instrumentation,
		Now:                 t.opts.Now,
	})
	if err != nil {
		return nil, err
	}

	token, err := grant.Handle(ctx, req, client)
	if err != nil {
		return nil, err
	}
	t.token = token
	return &oauth.AuthorizationResult{Token: token}, nil
}

func (t *TokenResponseType) accessTokenLifetime(client *oauth.Client) time.Duration {
	if client.AccessTokenLifetime > 0 {
		return client.AccessTokenLifetime
	}
	return t.opts.AccessTokenLifetime
}

// BuildRedirectURI adds access_token, token_type, expires_in and scope to
// the fragment of uri.
func (t *TokenResponseType) BuildRedirectURI(uri oauth.RedirectURI) (oauth.RedirectURI, error) {
	if t.token == nil {
		return t.SetRedirectURIParam(uri, "access_token", "")
	}

	uri, err := t.SetRedirectURIParam(uri, "access_token", t.token.AccessToken)
	if err != nil {
		return oauth.RedirectURI{}, err
	}
	uri = uri.WithFragment("token_type", oauth.TokenTypeBearer)
	if lifetime := t.token.AccessTokenLifetime(t.opts.Now()); lifetime > 0 {
		uri = uri.WithFragment("expires_in", strconv.FormatInt(int64(lifetime/time.Second), 10))
	}
	if t.token.Scope != "" {
		uri = uri.WithFragment("scope", t.token.Scope)
	}
	return uri, nil
}

// SetRedirectURIParam sets a fragment parameter.
func (t *TokenResponseType) SetRedirectURIParam(uri oauth.RedirectURI, key, value string) (oauth.RedirectURI, error) {
	if err := checkParam(uri, key); err != nil {
		return oauth.RedirectURI{}, err
	}
	return uri.WithFragment(key, value), nil
}
