package httpoauth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/security"
	"github.com/giantswarm/oauth2-engine/server"
)

const (
	// DefaultTokenPath is where Register mounts the token endpoint
	DefaultTokenPath = "/token"

	// DefaultAuthorizePath is where Register mounts the authorization endpoint
	DefaultAuthorizePath = "/authorize"

	// retryAfterSeconds is advertised on rate limited responses
	retryAfterSeconds = "60"

	errorCodeRateLimitExceeded = "rate_limit_exceeded"
)

// Config configures a Handler. Only Server is required.
type Config struct {
	Server *server.Server

	Logger          *slog.Logger
	Auditor         *security.Auditor
	Instrumentation *instrumentation.Instrumentation

	// RateLimiter limits token requests per client IP. Nil disables rate
	// limiting.
	RateLimiter *security.RateLimiter

	// Proxy controls whether forwarding headers are trusted for the
	// client IP.
	Proxy security.ProxyConfig

	// HTTPS adds Strict-Transport-Security to every response.
	HTTPS bool

	TokenPath     string // default: /token
	AuthorizePath string // default: /authorize
}

// Handler serves the OAuth endpoints of a server.Server over HTTP.
type Handler struct {
	server  *server.Server
	logger  *slog.Logger
	auditor *security.Auditor
	metrics *instrumentation.Metrics
	limiter *security.RateLimiter
	proxy   security.ProxyConfig
	https   bool

	tokenPath     string
	authorizePath string
}

// New creates a Handler.
func New(cfg Config) (*Handler, error) {
	if cfg.Server == nil {
		return nil, oauth.NewInvalidArgumentError("Missing parameter: `server`")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	inst := cfg.Instrumentation
	if inst == nil {
		inst = instrumentation.Noop()
	}
	tokenPath := cfg.TokenPath
	if tokenPath == "" {
		tokenPath = DefaultTokenPath
	}
	authorizePath := cfg.AuthorizePath
	if authorizePath == "" {
		authorizePath = DefaultAuthorizePath
	}

	if cfg.RateLimiter == nil {
		logger.Warn("SECURITY WARNING: token endpoint is not rate limited",
			"risk", "Online guessing of client secrets and resource owner passwords")
	}

	return &Handler{
		server:        cfg.Server,
		logger:        logger,
		auditor:       cfg.Auditor,
		metrics:       inst.Metrics(),
		limiter:       cfg.RateLimiter,
		proxy:         cfg.Proxy,
		https:         cfg.HTTPS,
		tokenPath:     tokenPath,
		authorizePath: authorizePath,
	}, nil
}

// Register mounts the token and authorization endpoints on r, behind the
// request ID middleware.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(security.RequestIDMiddleware)
		r.Post(h.tokenPath, h.ServeToken)
		r.Get(h.authorizePath, h.ServeAuthorize)
		r.Post(h.authorizePath, h.ServeAuthorize)
	})
}

// ServeToken handles token requests (RFC 6749 section 3.2).
func (h *Handler) ServeToken(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	defer func() { h.recordRequest(r, h.tokenPath, sw.status, start) }()

	clientIP := security.ClientIP(r, h.proxy)
	if !h.allow(sw, r, clientIP) {
		return
	}

	res := oauth.NewResponse(oauth.ResponseOptions{})
	req, err := NewRequest(sw, r, h.proxy)
	if err == nil {
		_, err = h.server.Token(r.Context(), req, res)
	}
	if err != nil {
		ensureError(res, err)
		h.logFailure(r, "Token request failed", err)
	}
	WriteResponse(sw, res, h.https, h.logger)
}

// ServeAuthorize handles authorization requests (RFC 6749 section 3.1).
// The resource owner is resolved by the server's UserResolver.
func (h *Handler) ServeAuthorize(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	defer func() { h.recordRequest(r, h.authorizePath, sw.status, start) }()

	res := oauth.NewResponse(oauth.ResponseOptions{})
	req, err := NewRequest(sw, r, h.proxy)
	if err == nil {
		_, err = h.server.Authorize(r.Context(), req, res)
	}
	if err != nil {
		ensureError(res, err)
		h.logFailure(r, "Authorization request failed", err)
	}
	WriteResponse(sw, res, h.https, h.logger)
}

// Authenticate returns middleware that requires a valid bearer token
// carrying scope (empty for any scope). The token is available to next
// through TokenFromContext.
func (h *Handler) Authenticate(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := oauth.NewResponse(oauth.ResponseOptions{})
			req, err := NewRequest(w, r, h.proxy)

			var token *oauth.Token
			if err == nil {
				if scope == "" {
					token, err = h.server.Authenticate(r.Context(), req, res)
				} else {
					token, err = h.server.AuthenticateScope(r.Context(), req, res, scope)
				}
			}
			if err != nil {
				ensureError(res, err)
				h.logFailure(r, "Bearer authentication failed", err)
				WriteResponse(w, res, h.https, h.logger)
				return
			}

			for field, value := range res.Headers {
				w.Header().Set(field, value)
			}
			next.ServeHTTP(w, r.WithContext(ContextWithToken(r.Context(), token)))
		})
	}
}

// allow applies the rate limiter. It writes a 429 and returns false when
// clientIP is over its limit.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request, clientIP string) bool {
	if h.limiter == nil || h.limiter.Allow(clientIP) {
		return true
	}

	h.logger.Warn("Rate limit exceeded", "ip", clientIP, "path", r.URL.Path)
	h.metrics.RecordRateLimitExceeded(r.Context(), "ip")
	h.auditor.LogRateLimitExceeded(r.Context(), clientIP, r.URL.Path)

	res := oauth.NewResponse(oauth.ResponseOptions{})
	res.Status = http.StatusTooManyRequests
	res.Body = map[string]any{
		"error":             errorCodeRateLimitExceeded,
		"error_description": "Rate limit exceeded. Please try again later.",
	}
	res.Set("Retry-After", retryAfterSeconds)
	WriteResponse(w, res, h.https, h.logger)
	return false
}

func (h *Handler) logFailure(r *http.Request, msg string, err error) {
	oe := oauth.AsError(err)
	attrs := []any{
		"path", r.URL.Path,
		"error", oe.Name,
		"description", oe.Message,
		"request_id", security.GetRequestID(r.Context()),
	}
	if oe.Inner != nil {
		attrs = append(attrs, "cause", oe.Inner)
	}
	if oe.Is(oauth.ErrServerError) || oe.Is(oauth.ErrInvalidArgument) {
		h.logger.Error(msg, attrs...)
		return
	}
	h.logger.Debug(msg, attrs...)
}

func (h *Handler) recordRequest(r *http.Request, endpoint string, status int, start time.Time) {
	ms := float64(time.Since(start).Microseconds()) / 1000
	h.metrics.RecordHTTPRequest(r.Context(), r.Method, endpoint, status, ms)
}

// statusWriter remembers the status code for metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

type tokenContextKey struct{}

// ContextWithToken returns a copy of ctx carrying token.
func ContextWithToken(ctx context.Context, token *oauth.Token) context.Context {
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext returns the token stored by the Authenticate middleware.
func TokenFromContext(ctx context.Context) (*oauth.Token, bool) {
	token, ok := ctx.Value(tokenContextKey{}).(*oauth.Token)
	return token, ok && token != nil
}
