package granttype

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/internal/validate"
	"github.com/giantswarm/oauth2-engine/security"
)

// GrantType exchanges an authorization grant for a token. Implementations
// return *oauth.Error values only.
type GrantType interface {
	Handle(ctx context.Context, req *oauth.Request, client *oauth.Client) (*oauth.Token, error)
}

// Options configures a grant type.
type Options struct {
	// AccessTokenLifetime is required and must be positive.
	AccessTokenLifetime time.Duration

	// RefreshTokenLifetime is the lifetime of issued refresh tokens. Zero
	// issues refresh tokens without expiry.
	RefreshTokenLifetime time.Duration

	// Model is required. Each grant type asserts the capabilities it needs.
	Model oauth.Model

	// AlwaysIssueNewRefreshToken controls refresh token rotation in the
	// refresh_token grant. Nil means true.
	AlwaysIssueNewRefreshToken *bool

	// User and Scope are only read by the implicit grant, which runs after
	// the authorization endpoint has resolved both.
	User  oauth.User
	Scope string

	Logger          *slog.Logger
	Auditor         *security.Auditor
	Instrumentation *instrumentation.Instrumentation

	// Now is the clock used for expiry computation and checks. Defaults to
	// time.Now.
	Now func() time.Time
}

type base struct {
	accessTokenLifetime  time.Duration
	refreshTokenLifetime time.Duration
	model                oauth.Model
	logger               *slog.Logger
	auditor              *security.Auditor
	tracer               trace.Tracer
	metrics              *instrumentation.Metrics
	now                  func() time.Time
}

func newBase(opts Options) (base, error) {
	if opts.AccessTokenLifetime <= 0 {
		return base{}, oauth.NewInvalidArgumentError("Missing parameter: `accessTokenLifetime`")
	}
	if opts.Model == nil {
		return base{}, oauth.NewInvalidArgumentError("Missing parameter: `model`")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	inst := opts.Instrumentation
	if inst == nil {
		inst = instrumentation.Noop()
	}

	return base{
		accessTokenLifetime:  opts.AccessTokenLifetime,
		refreshTokenLifetime: opts.RefreshTokenLifetime,
		model:                opts.Model,
		logger:               logger,
		auditor:              opts.Auditor,
		tracer:               inst.Tracer("grant"),
		metrics:              inst.Metrics(),
		now:                  now,
	}, nil
}

// AccessTokenExpiresAt returns the expiry of an access token issued now.
func (b *base) AccessTokenExpiresAt() time.Time {
	return b.now().Add(b.accessTokenLifetime)
}

// RefreshTokenExpiresAt returns the expiry of a refresh token issued now, or
// the zero time when refresh tokens do not expire.
func (b *base) RefreshTokenExpiresAt() time.Time {
	if b.refreshTokenLifetime <= 0 {
		return time.Time{}
	}
	return b.now().Add(b.refreshTokenLifetime)
}

func (b *base) generateAccessToken(ctx context.Context, client *oauth.Client, user oauth.User, scope string) (string, error) {
	if g, ok := b.model.(oauth.AccessTokenGenerator); ok {
		token, err := g.GenerateAccessToken(ctx, client, user, scope)
		if err != nil {
			return "", err
		}
		if token != "" {
			return token, nil
		}
	}
	return oauth.GenerateRandomToken()
}

func (b *base) generateRefreshToken(ctx context.Context, client *oauth.Client, user oauth.User, scope string) (string, error) {
	if g, ok := b.model.(oauth.RefreshTokenGenerator); ok {
		token, err := g.GenerateRefreshToken(ctx, client, user, scope)
		if err != nil {
			return "", err
		}
		if token != "" {
			return token, nil
		}
	}
	return oauth.GenerateRandomToken()
}

// validateScope asks the model to narrow or reject scope. Without a
// ScopeValidator the requested scope passes through unchanged.
func (b *base) validateScope(ctx context.Context, user oauth.User, client *oauth.Client, scope string) (string, error) {
	v, ok := b.model.(oauth.ScopeValidator)
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

// GetScope returns the `scope` parameter of req. An empty scope is allowed;
// anything outside NQSCHAR is rejected.
func GetScope(req *oauth.Request) (string, error) {
	scope := req.Param("scope")
	if scope != "" && !validate.NQSChar(scope) {
		return "", oauth.NewInvalidScopeError("Invalid parameter: `scope`")
	}
	return scope, nil
}

type issueRequest struct {
	grantType string
	client    *oauth.Client
	user      oauth.User
	scope     string

	// skipScopeValidation keeps scope as is; set when it was already
	// validated when the grant was first issued.
	skipScopeValidation bool
	withRefresh         bool

	// refreshToken and refreshExpiresAt are carried over unchanged when set
	refreshToken     string
	refreshExpiresAt time.Time
}

// issue validates the scope and generates the token material concurrently,
// then hands the token to the model. The first failure wins and nothing is
// saved.
func (b *base) issue(ctx context.Context, r issueRequest) (*oauth.Token, error) {
	saver, ok := b.model.(oauth.TokenSaver)
	if !ok {
		return nil, oauth.NewInvalidArgumentError("Invalid argument: model does not implement `saveToken()`")
	}

	ctx, span := b.tracer.Start(ctx, "grant.issue", trace.WithAttributes(
		attribute.String(instrumentation.AttrGrantType, r.grantType),
		attribute.String(instrumentation.AttrClientID, r.client.ID),
	))
	defer span.End()

	token := &oauth.Token{
		RefreshToken:          r.refreshToken,
		RefreshTokenExpiresAt: r.refreshExpiresAt,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if r.skipScopeValidation {
			token.Scope = r.scope
			return nil
		}
		scope, err := b.validateScope(gctx, r.user, r.client, r.scope)
		token.Scope = scope
		return err
	})
	g.Go(func() error {
		access, err := b.generateAccessToken(gctx, r.client, r.user, r.scope)
		token.AccessToken = access
		return err
	})
	if r.withRefresh {
		g.Go(func() error {
			refresh, err := b.generateRefreshToken(gctx, r.client, r.user, r.scope)
			token.RefreshToken = refresh
			return err
		})
	}
	g.Go(func() error {
		token.AccessTokenExpiresAt = b.AccessTokenExpiresAt()
		if r.withRefresh {
			token.RefreshTokenExpiresAt = b.RefreshTokenExpiresAt()
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		instrumentation.RecordError(span, err)
		return nil, err
	}

	saved, err := saver.SaveToken(ctx, token, r.client, r.user)
	if err != nil {
		instrumentation.RecordError(span, err)
		return nil, err
	}
	if saved == nil {
		err := oauth.NewServerError("Server error: `saveToken()` did not return a token")
		instrumentation.RecordError(span, err)
		return nil, err
	}

	instrumentation.SetSpanSuccess(span)
	b.auditor.LogTokenIssued(ctx, oauth.UserID(r.user), r.client.ID, r.grantType, saved.Scope, saved.RefreshToken != "")
	return saved, nil
}

func checkArgs(req *oauth.Request, client *oauth.Client) error {
	if req == nil {
		return oauth.NewInvalidArgumentError("Missing parameter: `request`")
	}
	if client == nil {
		return oauth.NewInvalidArgumentError("Missing parameter: `client`")
	}
	return nil
}

// userID returns a loggable identifier for user, for users that expose one.
