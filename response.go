package oauth

import (
	"net/http"
	"strings"
)

// ResponseOptions seeds a Response. All fields are optional.
type ResponseOptions struct {
	Body       map[string]any
	Headers    map[string]string
	Extensions map[string]any
}

// Response is the framework independent response handlers write into. A
// transport binding turns it into a real HTTP response afterwards.
type Response struct {
	Body       map[string]any
	Headers    map[string]string
	Status     int
	Extensions map[string]any
}

// NewResponse creates a response with status 200 and empty header and body
// maps, plus whatever opts carries.
func NewResponse(opts ResponseOptions) *Response {
	body := opts.Body
	if body == nil {
		body = map[string]any{}
	}

	headers := make(map[string]string, len(opts.Headers))
	for field, value := range opts.Headers {
		headers[strings.ToLower(field)] = value
	}

	ext := make(map[string]any, len(opts.Extensions))
	for k, v := range opts.Extensions {
		ext[k] = v
	}

	return &Response{
		Body:       body,
		Headers:    headers,
		Status:     http.StatusOK,
		Extensions: ext,
	}
}

// Get returns a response header, case-insensitively.
func (r *Response) Get(field string) string {
	return r.Headers[strings.ToLower(field)]
}

// Set sets a response header.
func (r *Response) Set(field, value string) {
	r.Headers[strings.ToLower(field)] = value
}

// Redirect sets the Location header and a 302 status.
func (r *Response) Redirect(url string) {
	r.Set("Location", url)
	r.Status = http.StatusFound
}

// SetError writes the JSON error body and status for err.
func (r *Response) SetError(err *Error) {
	r.Body = map[string]any{
		"error":             err.Name,
		"error_description": err.Message,
	}
	r.Status = err.Code
}
