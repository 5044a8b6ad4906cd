package httpoauth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/security"
	"github.com/giantswarm/oauth2-engine/server"
)

const (
	// ExtensionRequestID carries the X-Request-ID of the HTTP request.
	ExtensionRequestID = "request_id"

	// maxBodyBytes bounds form bodies on the OAuth endpoints
	maxBodyBytes = 1 << 20

	contentTypeJSON = "application/json;charset=UTF-8"
)

// NewRequest converts r into an engine request. Form bodies are parsed;
// the client IP (per proxy) and request ID travel as extensions.
func NewRequest(w http.ResponseWriter, r *http.Request, proxy security.ProxyConfig) (*oauth.Request, error) {
	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	}
	if err := r.ParseForm(); err != nil {
		oe := oauth.NewInvalidRequestError("Invalid request: malformed request body")
		oe.Inner = err
		return nil, oe
	}

	headers := make(map[string]string, len(r.Header))
	for field, values := range r.Header {
		headers[field] = strings.Join(values, ", ")
	}

	return oauth.NewRequest(oauth.RequestOptions{
		Body:    r.PostForm,
		Headers: headers,
		Method:  r.Method,
		Query:   r.URL.Query(),
		Extensions: map[string]any{
			server.ExtensionClientIP: security.ClientIP(r, proxy),
			ExtensionRequestID:       security.GetRequestID(r.Context()),
		},
	})
}

// WriteResponse writes res to w. Responses carrying a Location header and a
// 3xx status become redirects; everything else is written as JSON.
func WriteResponse(w http.ResponseWriter, res *oauth.Response, https bool, logger *slog.Logger) {
	h := w.Header()
	security.SetSecurityHeaders(h, https)
	for field, value := range res.Headers {
		h.Set(field, value)
	}

	if res.Get("Location") != "" && res.Status >= 300 && res.Status < 400 {
		w.WriteHeader(res.Status)
		return
	}

	h.Set("Content-Type", contentTypeJSON)
	w.WriteHeader(res.Status)
	if err := json.NewEncoder(w).Encode(res.Body); err != nil && logger != nil {
		logger.Error("Failed to encode response body", "error", err)
	}
}

// ensureError makes sure a failed handler left an error in res. Handlers
// write protocol errors themselves; this covers integration errors raised
// before res was touched.
func ensureError(res *oauth.Response, err error) {
	if err == nil {
		return
	}
	if res.Status != http.StatusOK || res.Get("Location") != "" {
		return
	}
	res.SetError(oauth.AsError(err))
}
