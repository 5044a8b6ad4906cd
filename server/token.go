package server

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/granttype"
	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/internal/util"
	"github.com/giantswarm/oauth2-engine/internal/validate"
)

// GrantTypeFactory builds a grant type for one token request. opts carries
// the lifetimes already resolved for the authenticated client.
type GrantTypeFactory func(opts granttype.Options) (granttype.GrantType, error)

// TokenHandler serves the token endpoint (RFC 6749 section 3.2).
type TokenHandler struct {
	*env
	clients oauth.ClientGetter
}

// NewTokenHandler creates a token handler. The model must implement
// GetClient; the capabilities of each grant type are checked when the
// grant type is used.
func NewTokenHandler(opts Options) (*TokenHandler, error) {
	e, err := newEnv(opts)
	if err != nil {
		return nil, err
	}
	return newTokenHandler(e)
}

func newTokenHandler(e *env) (*TokenHandler, error) {
	if err := oauth.RequireCapability[oauth.ClientGetter](e.model, "getClient"); err != nil {
		return nil, err
	}
	return &TokenHandler{env: e, clients: e.model.(oauth.ClientGetter)}, nil
}

// Handle authenticates the client, runs the requested grant and writes the
// Bearer token response into res. On failure the error response is
// written into res and the error is returned.
func (h *TokenHandler) Handle(ctx context.Context, req *oauth.Request, res *oauth.Response) (*oauth.Token, error) {
	if req == nil {
		return nil, oauth.NewInvalidArgumentError("Missing parameter: `request`")
	}
	if res == nil {
		return nil, oauth.NewInvalidArgumentError("Missing parameter: `response`")
	}

	start := time.Now()
	grantType := req.Body.Get("grant_type")
	ctx, span := h.tracer.Start(ctx, "token.handle", trace.WithAttributes(
		attribute.String(instrumentation.AttrGrantType, grantType),
	))
	defer span.End()

	token, err := h.handle(ctx, req, res)
	if err != nil {
		oe := oauth.AsError(err)
		if oe.Is(oauth.ErrServerError) {
			h.logger.Error("Token request failed", "grant_type", grantType, "error", err)
		} else {
			h.logger.Debug("Token request rejected", "grant_type", grantType, "error", oe.Name, "description", oe.Message)
		}
		res.SetError(oe)
		instrumentation.RecordError(span, oe)
		h.metrics.RecordGrantFailure(ctx, grantType, oe.Name)
		return nil, oe
	}

	instrumentation.AddOAuthFlowAttributes(span, token.Client.ID, oauth.UserID(token.User), token.Scope)
	span.SetAttributes(attribute.Bool(instrumentation.AttrRefreshIssued, token.RefreshToken != ""))
	instrumentation.SetSpanSuccess(span)
	h.metrics.RecordTokenIssued(ctx, grantType, token.Client.ID, token.RefreshToken != "", msSince(start))
	return token, nil
}

func (h *TokenHandler) handle(ctx context.Context, req *oauth.Request, res *oauth.Response) (*oauth.Token, error) {
	if req.Method != http.MethodPost {
		return nil, oauth.NewInvalidRequestError("Invalid request: method must be POST")
	}
	if req.Is("application/x-www-form-urlencoded") == "" {
		return nil, oauth.NewInvalidRequestError("Invalid request: content must be application/x-www-form-urlencoded")
	}

	client, err := h.getClient(ctx, req, res)
	if err != nil {
		return nil, err
	}

	token, err := h.handleGrantType(ctx, req, client)
	if err != nil {
		return nil, err
	}
	if token.Client == nil {
		token.Client = client
	}

	bearer, err := oauth.BearerFromToken(token, h.now(), h.config.AllowExtendedTokenAttributes)
	if err != nil {
		return nil, err
	}
	res.Body = bearer.Map()
	res.Set("Cache-Control", "no-store")
	res.Set("Pragma", "no-cache")
	return token, nil
}

type clientCredentials struct {
	id     string
	secret string
}

func (h *TokenHandler) getClient(ctx context.Context, req *oauth.Request, res *oauth.Response) (*oauth.Client, error) {
	client, err := h.lookupClient(ctx, req)
	if err != nil {
		oe := oauth.AsError(err)
		if oe.Is(oauth.ErrInvalidClient) {
			h.auditor.LogAuthFailure(ctx, "", req.Body.Get("client_id"), clientIP(req), oe.Message)
			// RFC 6749 section 5.2: 401 with a challenge when the client
			// tried the Authorization header.
			if req.Get("Authorization") != "" {
				res.Set("WWW-Authenticate", `Basic realm="Service"`)
				return nil, oauth.NewError(oe.Name, http.StatusUnauthorized, oe.Message)
			}
		}
		return nil, oe
	}
	return client, nil
}

func (h *TokenHandler) lookupClient(ctx context.Context, req *oauth.Request) (*oauth.Client, error) {
	grantType := req.Body.Get("grant_type")
	creds, err := h.getClientCredentials(req, grantType)
	if err != nil {
		return nil, err
	}

	if creds.id == "" {
		return nil, oauth.NewInvalidRequestError("Missing parameter: `client_id`")
	}
	if h.config.clientAuthenticationRequired(grantType) && creds.secret == "" {
		return nil, oauth.NewInvalidRequestError("Missing parameter: `client_secret`")
	}
	if !validate.VSChar(creds.id) {
		return nil, oauth.NewInvalidRequestError("Invalid parameter: `client_id`")
	}
	if creds.secret != "" && !validate.VSChar(creds.secret) {
		return nil, oauth.NewInvalidRequestError("Invalid parameter: `client_secret`")
	}

	client, err := h.clients.GetClient(ctx, creds.id, creds.secret)
	if err != nil {
		return nil, err
	}
	if client == nil {
		h.logger.Debug("Client authentication failed", "client_id", util.SafeTruncate(creds.id, 32))
		return nil, oauth.NewInvalidClientError("Invalid client: client is invalid")
	}
	if client.Grants == nil {
		return nil, oauth.NewServerError("Server error: missing client `grants`")
	}
	return client, nil
}

// getClientCredentials reads HTTP Basic credentials, falling back to the
// request body (RFC 6749 section 2.3.1). Grant types without client
// authentication may send client_id alone.
func (h *TokenHandler) getClientCredentials(req *oauth.Request, grantType string) (clientCredentials, error) {
	if creds, ok := parseBasicAuth(req.Get("Authorization")); ok {
		return creds, nil
	}

	id := req.Body.Get("client_id")
	secret := req.Body.Get("client_secret")
	if id != "" && secret != "" {
		return clientCredentials{id: id, secret: secret}, nil
	}
	if !h.config.clientAuthenticationRequired(grantType) && id != "" {
		return clientCredentials{id: id}, nil
	}
	return clientCredentials{}, oauth.NewInvalidClientError("Invalid client: cannot retrieve client credentials")
}

// parseBasicAuth decodes an Authorization: Basic header. Both parts are
// form-urlencoded before encoding.
func parseBasicAuth(header string) (clientCredentials, bool) {
	scheme, encoded, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Basic") {
		return clientCredentials{}, false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return clientCredentials{}, false
	}
	id, secret, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return clientCredentials{}, false
	}
	if v, err := url.QueryUnescape(id); err == nil {
		id = v
	}
	if v, err := url.QueryUnescape(secret); err == nil {
		secret = v
	}
	return clientCredentials{id: id, secret: secret}, true
}

func (h *TokenHandler) handleGrantType(ctx context.Context, req *oauth.Request, client *oauth.Client) (*oauth.Token, error) {
	grantType := req.Body.Get("grant_type")
	if grantType == "" {
		return nil, oauth.NewInvalidRequestError("Missing parameter: `grant_type`")
	}
	if !validate.NChar(grantType) && !validate.URI(grantType) {
		return nil, oauth.NewInvalidRequestError("Invalid parameter: `grant_type`")
	}

	factory, ok := h.grantTypeFactory(grantType)
	if !ok {
		return nil, oauth.NewUnsupportedGrantTypeError("Unsupported grant type: `grant_type` is invalid")
	}
	if !client.HasGrant(grantType) {
		return nil, oauth.NewUnauthorizedClientError("Unauthorized client: `grant_type` is invalid")
	}

	grant, err := factory(granttype.Options{
		AccessTokenLifetime:        h.accessTokenLifetime(client),
		RefreshTokenLifetime:       h.refreshTokenLifetime(client),
		Model:                      h.model,
		AlwaysIssueNewRefreshToken: h.config.AlwaysIssueNewRefreshToken,
		Logger:                     h.logger,
		Auditor:                    h.auditor,
		Instrumentation:            h.inst,
		Now:                        h.now,
	})
	if err != nil {
		return nil, err
	}
	return grant.Handle(ctx, req, client)
}

func (h *TokenHandler) grantTypeFactory(name string) (GrantTypeFactory, bool) {
	switch name {
	case oauth.GrantTypeAuthorizationCode:
		return func(o granttype.Options) (granttype.GrantType, error) { return granttype.NewAuthorizationCode(o) }, true
	case oauth.GrantTypeClientCredentials:
		return func(o granttype.Options) (granttype.GrantType, error) { return granttype.NewClientCredentials(o) }, true
	case oauth.GrantTypePassword:
		return func(o granttype.Options) (granttype.GrantType, error) { return granttype.NewPassword(o) }, true
	case oauth.GrantTypeRefreshToken:
		return func(o granttype.Options) (granttype.GrantType, error) { return granttype.NewRefreshToken(o) }, true
	}
	f, ok := h.config.ExtendedGrantTypes[name]
	return f, ok && f != nil
}

func (h *TokenHandler) accessTokenLifetime(client *oauth.Client) time.Duration {
	if client.AccessTokenLifetime > 0 {
		return client.AccessTokenLifetime
	}
	return h.config.AccessTokenLifetime
}

func (h *TokenHandler) refreshTokenLifetime(client *oauth.Client) time.Duration {
	if client.RefreshTokenLifetime > 0 {
		return client.RefreshTokenLifetime
	}
	return h.config.RefreshTokenLifetime
}
