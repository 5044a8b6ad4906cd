package responsetype

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/security"
)

// CodeResponseType issues authorization codes.
type CodeResponseType struct {
	lifetime time.Duration
	saver    oauth.AuthorizationCodeSaver
	model    oauth.Model
	logger   *slog.Logger
	auditor  *security.Auditor
	tracer   trace.Tracer
	now      func() time.Time

	code string
}

var _ ResponseType = (*CodeResponseType)(nil)

// NewCode creates the code response type. The model must implement
// SaveAuthorizationCode.
func NewCode(opts Options) (*CodeResponseType, error) {
	if opts.AuthorizationCodeLifetime <= 0 {
		return nil, oauth.NewInvalidArgumentError("Missing parameter: `authorizationCodeLifetime`")
	}
	if opts.Model == nil {
		return nil, oauth.NewInvalidArgumentError("Missing parameter: `model`")
	}
	if err := oauth.RequireCapability[oauth.AuthorizationCodeSaver](opts.Model, "saveAuthorizationCode"); err != nil {
		return nil, err
	}
	opts.applyDefaults()

	return &CodeResponseType{
		lifetime: opts.AuthorizationCodeLifetime,
		saver:    opts.Model.(oauth.AuthorizationCodeSaver),
		model:    opts.Model,
		logger:   opts.Logger,
		auditor:  opts.Auditor,
		tracer:   opts.Instrumentation.Tracer("responsetype"),
		now:      opts.Now,
	}, nil
}

// Handle generates an authorization code and stores it through the model.
func (c *CodeResponseType) Handle(ctx context.Context, req *oauth.Request, client *oauth.Client, user oauth.User, redirectURI, scope string) (*oauth.AuthorizationResult, error) {
	if err := checkArgs(req, client, user, redirectURI); err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "responsetype.code", trace.WithAttributes(
		attribute.String(instrumentation.AttrClientID, client.ID),
		attribute.String(instrumentation.AttrScope, scope),
	))
	defer span.End()

	raw, err := c.generateAuthorizationCode(ctx, client, user, scope)
	if err != nil {
		instrumentation.RecordError(span, err)
		return nil, oauth.AsError(err)
	}

	saved, err := c.saver.SaveAuthorizationCode(ctx, &oauth.AuthorizationCode{
		Code:        raw,
		ExpiresAt:   c.now().Add(c.lifetime),
		RedirectURI: redirectURI,
		Scope:       scope,
	}, client, user)
	if err != nil {
		instrumentation.RecordError(span, err)
		return nil, oauth.AsError(err)
	}
	if saved == nil || saved.Code == "" {
		err := oauth.NewServerError("Server error: `saveAuthorizationCode()` did not return a code")
		instrumentation.RecordError(span, err)
		return nil, err
	}

	c.code = saved.Code
	instrumentation.SetSpanSuccess(span)
	c.auditor.LogAuthorizationCodeIssued(ctx, oauth.UserID(user), client.ID, scope)
	return &oauth.AuthorizationResult{Code: saved}, nil
}

func (c *CodeResponseType) generateAuthorizationCode(ctx context.Context, client *oauth.Client, user oauth.User, scope string) (string, error) {
	if g, ok := c.model.(oauth.AuthorizationCodeGenerator); ok {
		code, err := g.GenerateAuthorizationCode(ctx, client, user, scope)
		if err != nil {
			return "", err
		}
		if code != "" {
			return code, nil
		}
	}
	return oauth.GenerateRandomToken()
}

// BuildRedirectURI adds the issued code to the query of uri.
func (c *CodeResponseType) BuildRedirectURI(uri oauth.RedirectURI) (oauth.RedirectURI, error) {
	return c.SetRedirectURIParam(uri, "code", c.code)
}

// SetRedirectURIParam sets a query parameter.
func (c *CodeResponseType) SetRedirectURIParam(uri oauth.RedirectURI, key, value string) (oauth.RedirectURI, error) {
	if err := checkParam(uri, key); err != nil {
		return oauth.RedirectURI{}, err
	}
	return uri.WithQuery(key, value), nil
}

