package oauth

import (
	"mime"
	"net/url"
	"strings"
)

// RequestOptions carries the raw parts of an incoming request, as produced
// by a transport binding.
type RequestOptions struct {
	Body    url.Values
	Headers map[string]string
	Method  string
	Query   url.Values

	// Extensions is a side-channel for transport specific metadata
	// (remote address, request ID, ...). The engine never reads it.
	Extensions map[string]any
}

// Request is the normalized, framework independent request every handler
// operates on. Header names are lower case and the method is upper case.
type Request struct {
	Body       url.Values
	Headers    map[string]string
	Method     string
	Query      url.Values
	Extensions map[string]any
}

// NewRequest validates and normalizes opts.
func NewRequest(opts RequestOptions) (*Request, error) {
	if opts.Headers == nil {
		return nil, NewInvalidArgumentError("Missing parameter: `headers`")
	}
	if opts.Method == "" {
		return nil, NewInvalidArgumentError("Missing parameter: `method`")
	}
	if strings.TrimSpace(opts.Method) != opts.Method || strings.ContainsAny(opts.Method, " \t\r\n") {
		return nil, NewInvalidArgumentError("Invalid parameter: `method`")
	}
	if opts.Query == nil {
		return nil, NewInvalidArgumentError("Missing parameter: `query`")
	}

	body := opts.Body
	if body == nil {
		body = url.Values{}
	}

	headers := make(map[string]string, len(opts.Headers))
	for field, value := range opts.Headers {
		headers[strings.ToLower(field)] = value
	}

	ext := make(map[string]any, len(opts.Extensions))
	for k, v := range opts.Extensions {
		ext[k] = v
	}

	return &Request{
		Body:       body,
		Headers:    headers,
		Method:     strings.ToUpper(opts.Method),
		Query:      opts.Query,
		Extensions: ext,
	}, nil
}

// Get returns a request header, case-insensitively.
func (r *Request) Get(field string) string {
	return r.Headers[strings.ToLower(field)]
}

// Param returns a parameter from the body, falling back to the query string.
func (r *Request) Param(key string) string {
	if v := r.Body.Get(key); v != "" {
		return v
	}
	return r.Query.Get(key)
}

// Is checks the request content type against the given media types and
// returns the first one that matches, or "" when none does. Besides full
// media types ("application/json") it accepts wildcards ("application/*")
// and the short forms "json", "urlencoded" and "form".
func (r *Request) Is(types ...string) string {
	ct := r.Get("content-type")
	if ct == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	for _, t := range types {
		if mediaTypeMatches(mediaType, normalizeMediaType(t)) {
			return t
		}
	}
	return ""
}

func normalizeMediaType(t string) string {
	switch strings.ToLower(t) {
	case "json":
		return "application/json"
	case "urlencoded", "form":
		return "application/x-www-form-urlencoded"
	}
	return strings.ToLower(t)
}

func mediaTypeMatches(actual, expected string) bool {
	if actual == expected {
		return true
	}
	aType, aSub, ok := strings.Cut(actual, "/")
	if !ok {
		return false
	}
	eType, eSub, ok := strings.Cut(expected, "/")
	if !ok {
		return false
	}
	return (eType == "*" || eType == aType) && (eSub == "*" || eSub == aSub)
}
