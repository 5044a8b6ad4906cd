// Package testutil provides testing utilities for the OAuth engine.
package testutil

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	oauth "github.com/giantswarm/oauth2-engine"
)

// MockTime provides a controllable time source for deterministic testing
type MockTime struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockTime creates a new mock time provider
func NewMockTime(t time.Time) *MockTime {
	return &MockTime{now: t}
}

// Now returns the current mock time
func (m *MockTime) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the mock time forward by the given duration
func (m *MockTime) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Set sets the mock time to a specific value
func (m *MockTime) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// GenerateRandomString generates a random base64url string of the given length
func GenerateRandomString(length int) string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("failed to generate random string: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length]
}

// NewClient creates a test client with a single redirect URI.
func NewClient(id string, grants ...string) *oauth.Client {
	return &oauth.Client{
		ID:           id,
		Grants:       grants,
		RedirectURIs: []string{"https://client.example.com/cb"},
	}
}

// RequestOptions builds the options for a form encoded POST request.
func RequestOptions(body url.Values) oauth.RequestOptions {
	return oauth.RequestOptions{
		Body:    body,
		Headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		Method:  "POST",
		Query:   url.Values{},
	}
}

// NewPostRequest builds a form encoded POST request and fails the test on
// error.
func NewPostRequest(t *testing.T, body url.Values) *oauth.Request {
	t.Helper()
	req, err := oauth.NewRequest(RequestOptions(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	return req
}

// NewGetRequest builds a GET request with the given query and headers.
func NewGetRequest(t *testing.T, query url.Values, headers map[string]string) *oauth.Request {
	t.Helper()
	if headers == nil {
		headers = map[string]string{}
	}
	req, err := oauth.NewRequest(oauth.RequestOptions{
		Headers: headers,
		Method:  "GET",
		Query:   query,
	})
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	return req
}

// AssertOAuthError fails the test unless err is an *oauth.Error with the
// given name and, when message is non-empty, the given message.
func AssertOAuthError(t *testing.T, err error, name, message string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", name)
	}
	oe, ok := err.(*oauth.Error)
	if !ok {
		t.Fatalf("expected *oauth.Error, got %T: %v", err, err)
	}
	if oe.Name != name {
		t.Errorf("error name = %q, want %q (message %q)", oe.Name, name, oe.Message)
	}
	if message != "" && oe.Message != message {
		t.Errorf("error message = %q, want %q", oe.Message, message)
	}
}

// AssertNoError fails the test if err is not nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
