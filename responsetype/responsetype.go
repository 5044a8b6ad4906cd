// Package responsetype implements the two front-channel issuance modes of
// the authorization endpoint: `code` returns an authorization code in the
// redirect query, `token` returns an access token in the redirect fragment
// (RFC 6749 sections 4.1.2 and 4.2.2).
//
// A ResponseType value serves a single authorization request: Handle
// records the issued artifact and BuildRedirectURI renders it.
package responsetype

import (
	"context"
	"log/slog"
	"time"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/security"
)

// Names of the supported response types.
const (
	Code  = oauth.ResponseTypeCode
	Token = oauth.ResponseTypeToken
)

// ResponseType issues an authorization artifact and renders it into the
// client's redirect URI.
type ResponseType interface {
	// Handle issues the artifact for an authorized user. redirectURI is
	// the resolved redirect target, stored with authorization codes.
	Handle(ctx context.Context, req *oauth.Request, client *oauth.Client, user oauth.User, redirectURI, scope string) (*oauth.AuthorizationResult, error)

	// BuildRedirectURI adds the artifact issued by Handle to uri.
	BuildRedirectURI(uri oauth.RedirectURI) (oauth.RedirectURI, error)

	// SetRedirectURIParam adds key=value to uri in the part of the URI
	// this response type reports into.
	SetRedirectURIParam(uri oauth.RedirectURI, key, value string) (oauth.RedirectURI, error)
}

// Options configures a response type.
type Options struct {
	// AuthorizationCodeLifetime is required by the code response type.
	AuthorizationCodeLifetime time.Duration

	// AccessTokenLifetime is required by the token response type. A client
	// with its own access token lifetime overrides it.
	AccessTokenLifetime time.Duration

	Model oauth.Model

	Logger          *slog.Logger
	Auditor         *security.Auditor
	Instrumentation *instrumentation.Instrumentation
	Now             func() time.Time
}

func (o *Options) applyDefaults() {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Instrumentation == nil {
		o.Instrumentation = instrumentation.Noop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// New returns the response type registered under name, or
// unsupported_response_type.
func New(name string, opts Options) (ResponseType, error) {
	switch name {
	case Code:
		return NewCode(opts)
	case Token:
		return NewToken(opts)
	}
	return nil, oauth.NewUnsupportedResponseTypeError("Unsupported response type: `response_type` is not supported")
}

// Supported reports whether name is a known response type.
func Supported(name string) bool {
	return name == Code || name == Token
}

func checkArgs(req *oauth.Request, client *oauth.Client, user oauth.User, redirectURI string) error {
	if req == nil {
		return oauth.NewInvalidArgumentError("Missing parameter: `request`")
	}
	if client == nil {
		return oauth.NewInvalidArgumentError("Missing parameter: `client`")
	}
	if user == nil {
		return oauth.NewInvalidArgumentError("Missing parameter: `user`")
	}
	if redirectURI == "" {
		return oauth.NewInvalidArgumentError("Missing parameter: `uri`")
	}
	return nil
}

func checkParam(uri oauth.RedirectURI, key string) error {
	if uri.IsZero() {
		return oauth.NewInvalidArgumentError("Missing parameter: `redirectUri`")
	}
	if key == "" {
		return oauth.NewInvalidArgumentError("Missing parameter: `key`")
	}
	return nil
}
