package server

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/granttype"
	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/internal/validate"
	"github.com/giantswarm/oauth2-engine/responsetype"
)

// UserResolver returns the resource owner who is authorizing the request.
type UserResolver interface {
	ResolveUser(ctx context.Context, req *oauth.Request, res *oauth.Response) (oauth.User, error)
}

// UserResolverFunc adapts a function to UserResolver.
type UserResolverFunc func(ctx context.Context, req *oauth.Request, res *oauth.Response) (oauth.User, error)

// ResolveUser calls f.
func (f UserResolverFunc) ResolveUser(ctx context.Context, req *oauth.Request, res *oauth.Response) (oauth.User, error) {
	return f(ctx, req, res)
}

// AuthorizeHandler serves the authorization endpoint (RFC 6749 section
// 3.1). Once the client and user are known, every failure is reported by
// redirecting to the client; the error is returned as well.
type AuthorizeHandler struct {
	*env
	clients      oauth.ClientGetter
	authenticate *AuthenticateHandler
	resolver     UserResolver
}

// NewAuthorizeHandler creates an authorize handler. The model must
// implement GetClient, and GetAccessToken unless opts.UserResolver is set.
func NewAuthorizeHandler(opts Options) (*AuthorizeHandler, error) {
	e, err := newEnv(opts)
	if err != nil {
		return nil, err
	}
	return newAuthorizeHandler(e, opts.UserResolver)
}

func newAuthorizeHandler(e *env, resolver UserResolver) (*AuthorizeHandler, error) {
	if err := oauth.RequireCapability[oauth.ClientGetter](e.model, "getClient"); err != nil {
		return nil, err
	}
	h := &AuthorizeHandler{env: e, clients: e.model.(oauth.ClientGetter), resolver: resolver}
	if resolver == nil {
		authenticate, err := newAuthenticateHandler(e, e.config.Scope)
		if err != nil {
			return nil, err
		}
		h.authenticate = authenticate
	}
	return h, nil
}

// Handle runs the authorization request. On success res redirects to the
// client with the issued artifact. Errors raised before the redirect
// target is known are written into res as a JSON error instead.
func (h *AuthorizeHandler) Handle(ctx context.Context, req *oauth.Request, res *oauth.Response) (*oauth.AuthorizationResult, error) {
	if req == nil {
		return nil, oauth.NewInvalidArgumentError("Missing parameter: `request`")
	}
	if res == nil {
		return nil, oauth.NewInvalidArgumentError("Missing parameter: `response`")
	}

	responseTypeName := req.Param("response_type")
	ctx, span := h.tracer.Start(ctx, "authorize.handle", trace.WithAttributes(
		attribute.String(instrumentation.AttrResponseType, responseTypeName),
	))
	defer span.End()

	result, err := h.handle(ctx, req, res, span)
	if err != nil {
		oe := oauth.AsError(err)
		instrumentation.RecordError(span, oe)
		h.metrics.RecordAuthorization(ctx, responseTypeName, oe.Name)
		return nil, oe
	}

	instrumentation.SetSpanSuccess(span)
	h.metrics.RecordAuthorization(ctx, responseTypeName, "")
	return result, nil
}

func (h *AuthorizeHandler) handle(ctx context.Context, req *oauth.Request, res *oauth.Response, span trace.Span) (*oauth.AuthorizationResult, error) {
	if req.Query.Get("allowed") == "false" {
		err := oauth.NewAccessDeniedError("Access denied: user denied access to application")
		h.auditor.LogAuthorizationDenied(ctx, "", req.Param("client_id"), "user denied access")
		res.SetError(err)
		return nil, err
	}

	client, err := h.getClient(ctx, req)
	if err != nil {
		res.SetError(oauth.AsError(err))
		return nil, err
	}
	span.SetAttributes(attribute.String(instrumentation.AttrClientID, client.ID))

	user, err := h.getUser(ctx, req, res)
	if err != nil {
		res.SetError(oauth.AsError(err))
		return nil, err
	}

	target := h.getRedirectURI(req, client)
	uri, err := oauth.ParseRedirectURI(target)
	if err != nil {
		res.SetError(oauth.AsError(err))
		return nil, err
	}
	span.SetAttributes(attribute.String(instrumentation.AttrRedirectURI, target))

	f := &authorizeFlow{handler: h, req: req, client: client, user: user, target: target}
	result, err := f.run(ctx)
	if err != nil {
		oe := oauth.AsError(err)
		redirect, rerr := f.errorRedirectURI(uri, oe)
		if rerr != nil {
			res.SetError(oauth.AsError(rerr))
			return nil, oe
		}
		res.Redirect(redirect.String())
		if oe.Is(oauth.ErrAccessDenied) || oe.Is(oauth.ErrInvalidScope) {
			h.auditor.LogAuthorizationDenied(ctx, oauth.UserID(user), client.ID, oe.Message)
		}
		return nil, oe
	}

	if err := f.redirectSuccess(res, uri); err != nil {
		return nil, err
	}
	return result, nil
}

// authorizeFlow holds what the redirecting part of an authorization
// request has learned so far. responseType stays nil until it is resolved
// and decides which part of the URI an error redirect reports into.
type authorizeFlow struct {
	handler *AuthorizeHandler
	req     *oauth.Request
	client  *oauth.Client
	user    oauth.User
	target  string

	state        string
	responseType responsetype.ResponseType
}

func (f *authorizeFlow) run(ctx context.Context) (*oauth.AuthorizationResult, error) {
	h := f.handler

	requested, err := granttype.GetScope(f.req)
	if err != nil {
		return nil, err
	}
	scope, err := h.validateScope(ctx, f.user, f.client, requested)
	if err != nil {
		return nil, err
	}

	state, err := h.getState(f.req)
	if err != nil {
		return nil, err
	}
	f.state = state

	name, err := h.getResponseType(f.req, f.client)
	if err != nil {
		return nil, err
	}
	rt, err := responsetype.New(name, responsetype.Options{
		AuthorizationCodeLifetime: h.config.AuthorizationCodeLifetime,
		AccessTokenLifetime:       h.config.AccessTokenLifetime,
		Model:                     h.model,
		Logger:                    h.logger,
		Auditor:                   h.auditor,
		Instrumentation:           h.inst,
		Now:                       h.now,
	})
	if err != nil {
		return nil, err
	}
	f.responseType = rt

	return rt.Handle(ctx, f.req, f.client, f.user, f.target, scope)
}

// redirectSuccess points res at the client with the issued artifact. A URI
// that cannot be built is written into res as an error.
func (f *authorizeFlow) redirectSuccess(res *oauth.Response, uri oauth.RedirectURI) error {
	redirect, err := f.successRedirectURI(uri)
	if err != nil {
		oe := oauth.AsError(err)
		res.SetError(oe)
		return oe
	}
	res.Redirect(redirect.String())
	return nil
}

func (f *authorizeFlow) successRedirectURI(uri oauth.RedirectURI) (oauth.RedirectURI, error) {
	uri, err := f.responseType.BuildRedirectURI(uri)
	if err != nil {
		return oauth.RedirectURI{}, err
	}
	return f.withState(uri)
}

// errorRedirectURI reports err in the part of the URI the response type
// uses, or in the query when the response type is not known yet.
func (f *authorizeFlow) errorRedirectURI(uri oauth.RedirectURI, err *oauth.Error) (oauth.RedirectURI, error) {
	set := f.setParam
	uri, perr := set(uri, "error", err.Name)
	if perr != nil {
		return oauth.RedirectURI{}, perr
	}
	if err.Message != "" {
		if uri, perr = set(uri, "error_description", err.Message); perr != nil {
			return oauth.RedirectURI{}, perr
		}
	}
	return f.withState(uri)
}

// withState echoes the client's state. A failure raised before state was
// validated still echoes it when it is well formed.
func (f *authorizeFlow) withState(uri oauth.RedirectURI) (oauth.RedirectURI, error) {
	state := f.state
	if state == "" {
		if s := f.req.Param("state"); validate.VSChar(s) {
			state = s
		}
	}
	if state == "" {
		return uri, nil
	}
	return f.setParam(uri, "state", state)
}

func (f *authorizeFlow) setParam(uri oauth.RedirectURI, key, value string) (oauth.RedirectURI, error) {
	if f.responseType != nil {
		return f.responseType.SetRedirectURIParam(uri, key, value)
	}
	return uri.WithQuery(key, value), nil
}

func (h *AuthorizeHandler) getClient(ctx context.Context, req *oauth.Request) (*oauth.Client, error) {
	id := req.Param("client_id")
	if id == "" {
		return nil, oauth.NewInvalidRequestError("Missing parameter: `client_id`")
	}
	if !validate.VSChar(id) {
		return nil, oauth.NewInvalidRequestError("Invalid parameter: `client_id`")
	}

	redirectURI := req.Param("redirect_uri")
	if redirectURI != "" && !validate.URI(redirectURI) {
		return nil, oauth.NewInvalidRequestError("Invalid request: `redirect_uri` is not a valid URI")
	}

	client, err := h.clients.GetClient(ctx, id, "")
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, oauth.NewInvalidClientError("Invalid client: client credentials are invalid")
	}
	if client.Grants == nil {
		return nil, oauth.NewInvalidClientError("Invalid client: missing client `grants`")
	}

	requestedGrant := oauth.GrantTypeAuthorizationCode
	if req.Param("response_type") == oauth.ResponseTypeToken {
		requestedGrant = oauth.GrantTypeImplicit
	}
	if !client.HasGrant(requestedGrant) {
		return nil, oauth.NewUnauthorizedClientError("Unauthorized client: `grant_type` is invalid")
	}

	if len(client.RedirectURIs) == 0 {
		return nil, oauth.NewInvalidClientError("Invalid client: missing client `redirectUri`")
	}
	if redirectURI != "" && !client.HasRedirectURI(redirectURI) {
		h.logger.Warn("Authorization request with unregistered redirect_uri", "client_id", client.ID)
		return nil, oauth.NewInvalidClientError("Invalid client: `redirect_uri` does not match client value")
	}
	return client, nil
}

func (h *AuthorizeHandler) getUser(ctx context.Context, req *oauth.Request, res *oauth.Response) (oauth.User, error) {
	if h.resolver == nil {
		token, err := h.authenticate.Handle(ctx, req, res)
		if err != nil {
			return nil, err
		}
		return token.User, nil
	}

	user, err := h.resolver.ResolveUser(ctx, req, res)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, oauth.NewServerError("Server error: `ResolveUser()` did not return a `user` object")
	}
	return user, nil
}

// getRedirectURI returns the requested redirect URI, else the first one the
// client registered.
func (h *AuthorizeHandler) getRedirectURI(req *oauth.Request, client *oauth.Client) string {
	if uri := req.Param("redirect_uri"); uri != "" {
		return uri
	}
	return client.RedirectURIs[0]
}

func (h *AuthorizeHandler) validateScope(ctx context.Context, user oauth.User, client *oauth.Client, scope string) (string, error) {
	v, ok := h.model.(oauth.ScopeValidator)
	if !ok {
		return scope, nil
	}
	validated, err := v.ValidateScope(ctx, user, client, scope)
	if err != nil {
		return "", err
	}
	if validated == "" {
		return "", oauth.NewInvalidScopeError("Invalid scope: Requested scope is invalid")
	}
	return validated, nil
}

func (h *AuthorizeHandler) getState(req *oauth.Request) (string, error) {
	state := req.Param("state")
	if state == "" {
		if h.config.AllowEmptyState {
			return "", nil
		}
		return "", oauth.NewInvalidRequestError("Missing parameter: `state`")
	}
	if !validate.VSChar(state) {
		return "", oauth.NewInvalidRequestError("Invalid parameter: `state`")
	}
	return state, nil
}

func (h *AuthorizeHandler) getResponseType(req *oauth.Request, client *oauth.Client) (string, error) {
	name := req.Param("response_type")
	if name == "" {
		return "", oauth.NewInvalidRequestError("Missing parameter: `response_type`")
	}
	if !responsetype.Supported(name) {
		return "", oauth.NewUnsupportedResponseTypeError("Unsupported response type: `response_type` is not supported")
	}
	if name == oauth.ResponseTypeToken && !client.HasGrant(oauth.GrantTypeImplicit) {
		return "", oauth.NewUnauthorizedClientError("Unauthorized client: `grant_type` is invalid")
	}
	return name, nil
}
