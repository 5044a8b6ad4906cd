package oauth

import (
	"errors"
	"net/url"
	"testing"
)

func TestNewRequest(t *testing.T) {
	valid := func() RequestOptions {
		return RequestOptions{
			Headers: map[string]string{"Content-Type": "application/json"},
			Method:  "post",
			Query:   url.Values{},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*RequestOptions)
		wantMsg string
	}{
		{"missing headers", func(o *RequestOptions) { o.Headers = nil }, "Missing parameter: `headers`"},
		{"missing method", func(o *RequestOptions) { o.Method = "" }, "Missing parameter: `method`"},
		{"method with spaces", func(o *RequestOptions) { o.Method = "PO ST" }, "Invalid parameter: `method`"},
		{"missing query", func(o *RequestOptions) { o.Query = nil }, "Missing parameter: `query`"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := valid()
			tt.mutate(&opts)
			_, err := NewRequest(opts)
			var oe *Error
			if !errors.As(err, &oe) || oe.Name != ErrorCodeInvalidArgument || oe.Message != tt.wantMsg {
				t.Errorf("err = %v, want invalid_argument %q", err, tt.wantMsg)
			}
		})
	}

	t.Run("normalizes", func(t *testing.T) {
		opts := valid()
		opts.Extensions = map[string]any{"client_ip": "10.0.0.1"}
		req, err := NewRequest(opts)
		if err != nil {
			t.Fatalf("NewRequest() error = %v", err)
		}
		if req.Method != "POST" {
			t.Errorf("Method = %q", req.Method)
		}
		if req.Headers["content-type"] != "application/json" {
			t.Errorf("Headers = %v", req.Headers)
		}
		if req.Body == nil {
			t.Error("Body should default to an empty map")
		}
		opts.Extensions["client_ip"] = "changed"
		if req.Extensions["client_ip"] != "10.0.0.1" {
			t.Error("Extensions should be copied")
		}
	})
}

func TestRequest_Param(t *testing.T) {
	req, err := NewRequest(RequestOptions{
		Body:    url.Values{"a": {"body"}},
		Headers: map[string]string{},
		Method:  "POST",
		Query:   url.Values{"a": {"query"}, "b": {"query"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := req.Param("a"); got != "body" {
		t.Errorf("Param(a) = %q, want body", got)
	}
	if got := req.Param("b"); got != "query" {
		t.Errorf("Param(b) = %q, want query", got)
	}
	if got := req.Param("c"); got != "" {
		t.Errorf("Param(c) = %q", got)
	}
}

func TestRequest_Is(t *testing.T) {
	tests := []struct {
		contentType string
		types       []string
		want        string
	}{
		{"application/x-www-form-urlencoded", []string{"application/x-www-form-urlencoded"}, "application/x-www-form-urlencoded"},
		{"application/x-www-form-urlencoded; charset=utf-8", []string{"urlencoded"}, "urlencoded"},
		{"Application/JSON", []string{"form", "json"}, "json"},
		{"application/json", []string{"application/*"}, "application/*"},
		{"text/html", []string{"json", "urlencoded"}, ""},
		{"", []string{"json"}, ""},
		{"not a media type;;", []string{"json"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			req, err := NewRequest(RequestOptions{
				Headers: map[string]string{"Content-Type": tt.contentType},
				Method:  "POST",
				Query:   url.Values{},
			})
			if err != nil {
				t.Fatal(err)
			}
			if got := req.Is(tt.types...); got != tt.want {
				t.Errorf("Is(%v) = %q, want %q", tt.types, got, tt.want)
			}
		})
	}
}
