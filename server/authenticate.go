package server

import (
	"context"
	"net/http"
	"regexp"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/security"
)

var bearerHeader = regexp.MustCompile(`^Bearer\s(\S+)$`)

// AuthenticateHandler resolves the bearer token of a request to the stored
// access token (RFC 6750).
type AuthenticateHandler struct {
	*env
	tokens   oauth.AccessTokenGetter
	verifier oauth.ScopeVerifier
	scope    string
}

// NewAuthenticateHandler creates an authenticate handler. The model must
// implement GetAccessToken, and VerifyScope when Config.Scope is set.
func NewAuthenticateHandler(opts Options) (*AuthenticateHandler, error) {
	e, err := newEnv(opts)
	if err != nil {
		return nil, err
	}
	return newAuthenticateHandler(e, e.config.Scope)
}

func newAuthenticateHandler(e *env, scope string) (*AuthenticateHandler, error) {
	if err := oauth.RequireCapability[oauth.AccessTokenGetter](e.model, "getAccessToken"); err != nil {
		return nil, err
	}
	h := &AuthenticateHandler{
		env:    e,
		tokens: e.model.(oauth.AccessTokenGetter),
		scope:  scope,
	}
	if scope != "" {
		if err := oauth.RequireCapability[oauth.ScopeVerifier](e.model, "verifyScope"); err != nil {
			return nil, err
		}
		h.verifier = e.model.(oauth.ScopeVerifier)
	}
	return h, nil
}

// WithScope returns a copy of h that requires scope instead of the
// configured one.
func (h *AuthenticateHandler) WithScope(scope string) (*AuthenticateHandler, error) {
	return newAuthenticateHandler(h.env, scope)
}

// Handle authenticates req. On failure the error is also written to res,
// including a WWW-Authenticate challenge when no credentials were sent.
func (h *AuthenticateHandler) Handle(ctx context.Context, req *oauth.Request, res *oauth.Response) (*oauth.Token, error) {
	if req == nil {
		return nil, oauth.NewInvalidArgumentError("Missing parameter: `request`")
	}
	if res == nil {
		return nil, oauth.NewInvalidArgumentError("Missing parameter: `response`")
	}

	ctx, span := h.tracer.Start(ctx, "authenticate.handle", trace.WithAttributes(
		attribute.String(instrumentation.AttrScope, h.scope),
	))
	defer span.End()

	token, err := h.handle(ctx, req, res)
	if err != nil {
		oe := oauth.AsError(err)
		if oe.Is(oauth.ErrUnauthorizedRequest) {
			res.Set("WWW-Authenticate", `Bearer realm="Service"`)
		}
		res.SetError(oe)
		instrumentation.RecordError(span, oe)
		h.metrics.RecordAuthentication(ctx, oe.Name)
		return nil, oe
	}

	instrumentation.AddOAuthFlowAttributes(span, clientID(token.Client), oauth.UserID(token.User), token.Scope)
	instrumentation.SetSpanSuccess(span)
	h.metrics.RecordAuthentication(ctx, "")
	return token, nil
}

func (h *AuthenticateHandler) handle(ctx context.Context, req *oauth.Request, res *oauth.Response) (*oauth.Token, error) {
	raw, err := h.getTokenFromRequest(req)
	if err != nil {
		return nil, err
	}

	token, err := h.getAccessToken(ctx, raw)
	if err != nil {
		return nil, err
	}
	if security.IsExpired(token.AccessTokenExpiresAt, h.now()) {
		return nil, oauth.NewInvalidTokenError("Invalid token: access token has expired")
	}

	if h.scope != "" {
		ok, err := h.verifier.VerifyScope(ctx, token, h.scope)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, oauth.NewInsufficientScopeError("Insufficient scope: authorized scope is insufficient")
		}
		if *h.config.AddAcceptedScopesHeader {
			res.Set("X-Accepted-OAuth-Scopes", h.scope)
		}
		if *h.config.AddAuthorizedScopesHeader {
			res.Set("X-OAuth-Scopes", token.Scope)
		}
	}
	return token, nil
}

// getTokenFromRequest accepts exactly one of the three RFC 6750
// transmission methods.
func (h *AuthenticateHandler) getTokenFromRequest(req *oauth.Request) (string, error) {
	header := req.Get("Authorization")
	query := req.Query.Get("access_token")
	body := req.Body.Get("access_token")

	sources := 0
	for _, s := range []string{header, query, body} {
		if s != "" {
			sources++
		}
	}
	if sources > 1 {
		return "", oauth.NewInvalidRequestError("Invalid request: only one authentication method is allowed")
	}

	switch {
	case header != "":
		m := bearerHeader.FindStringSubmatch(header)
		if m == nil {
			return "", oauth.NewInvalidRequestError("Invalid request: malformed authorization header")
		}
		return m[1], nil
	case query != "":
		if !h.config.AllowBearerTokensInQueryString {
			return "", oauth.NewInvalidRequestError("Invalid request: do not send bearer tokens in query URLs")
		}
		return query, nil
	case body != "":
		if req.Method == http.MethodGet {
			return "", oauth.NewInvalidRequestError("Invalid request: token may not be passed in the body when using the GET verb")
		}
		if req.Is("application/x-www-form-urlencoded") == "" {
			return "", oauth.NewInvalidRequestError("Invalid request: content must be application/x-www-form-urlencoded")
		}
		return body, nil
	}
	return "", oauth.NewUnauthorizedRequestError("Unauthorized request: no authentication given")
}

func (h *AuthenticateHandler) getAccessToken(ctx context.Context, raw string) (*oauth.Token, error) {
	token, err := h.tokens.GetAccessToken(ctx, raw)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, oauth.NewInvalidTokenError("Invalid token: access token is invalid")
	}
	if token.User == nil {
		return nil, oauth.NewServerError("Server error: `getAccessToken()` did not return a `user` object")
	}
	return token, nil
}

func clientID(c *oauth.Client) string {
	if c == nil {
		return ""
	}
	return c.ID
}
