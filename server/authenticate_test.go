package server

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/internal/testutil"
)

func newAuthenticateModel() *testutil.Model {
	model := testutil.NewModel()
	model.AccessTokens["good"] = &oauth.Token{
		AccessToken:          "good",
		AccessTokenExpiresAt: testNow.Add(time.Hour),
		Scope:                "read write",
		User:                 "alice",
	}
	model.AccessTokens["expired"] = &oauth.Token{
		AccessToken:          "expired",
		AccessTokenExpiresAt: testNow.Add(-time.Second),
		User:                 "alice",
	}
	model.AccessTokens["forever"] = &oauth.Token{AccessToken: "forever", User: "alice"}
	model.AccessTokens["orphan"] = &oauth.Token{AccessToken: "orphan", AccessTokenExpiresAt: testNow.Add(time.Hour)}
	return model
}

func TestNewAuthenticateHandler(t *testing.T) {
	_, err := NewAuthenticateHandler(Options{Model: struct{}{}})
	testutil.AssertOAuthError(t, err, oauth.ErrorCodeInvalidArgument, "Invalid argument: model does not implement `getAccessToken()`")

	type tokensOnly struct{ oauth.AccessTokenGetter }
	_, err = NewAuthenticateHandler(Options{Model: tokensOnly{}, Config: &Config{Scope: "read"}})
	testutil.AssertOAuthError(t, err, oauth.ErrorCodeInvalidArgument, "Invalid argument: model does not implement `verifyScope()`")
}

func TestAuthenticate(t *testing.T) {
	form := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}

	tests := []struct {
		name     string
		method   string
		headers  map[string]string
		query    url.Values
		body     url.Values
		config   *Config
		wantName string
		wantMsg  string
		wantUser oauth.User
	}{
		{
			name:     "header",
			headers:  map[string]string{"Authorization": "Bearer good"},
			wantUser: "alice",
		},
		{
			name:     "token without expiry",
			headers:  map[string]string{"Authorization": "Bearer forever"},
			wantUser: "alice",
		},
		{
			name:     "form body",
			method:   "POST",
			headers:  form,
			body:     url.Values{"access_token": {"good"}},
			wantUser: "alice",
		},
		{
			name:     "query when allowed",
			query:    url.Values{"access_token": {"good"}},
			config:   &Config{AllowBearerTokensInQueryString: true},
			wantUser: "alice",
		},
		{
			name:     "no credentials",
			wantName: oauth.ErrorCodeUnauthorizedRequest,
			wantMsg:  "Unauthorized request: no authentication given",
		},
		{
			name:     "two methods",
			headers:  map[string]string{"Authorization": "Bearer good"},
			query:    url.Values{"access_token": {"good"}},
			wantName: oauth.ErrorCodeInvalidRequest,
			wantMsg:  "Invalid request: only one authentication method is allowed",
		},
		{
			name:     "malformed header",
			headers:  map[string]string{"Authorization": "Basic Zm9vOmJhcg=="},
			wantName: oauth.ErrorCodeInvalidRequest,
			wantMsg:  "Invalid request: malformed authorization header",
		},
		{
			name:     "query not allowed",
			query:    url.Values{"access_token": {"good"}},
			wantName: oauth.ErrorCodeInvalidRequest,
			wantMsg:  "Invalid request: do not send bearer tokens in query URLs",
		},
		{
			name:     "body with GET",
			method:   "GET",
			headers:  form,
			body:     url.Values{"access_token": {"good"}},
			wantName: oauth.ErrorCodeInvalidRequest,
			wantMsg:  "Invalid request: token may not be passed in the body when using the GET verb",
		},
		{
			name:     "body not form encoded",
			method:   "POST",
			headers:  map[string]string{"Content-Type": "application/json"},
			body:     url.Values{"access_token": {"good"}},
			wantName: oauth.ErrorCodeInvalidRequest,
			wantMsg:  "Invalid request: content must be application/x-www-form-urlencoded",
		},
		{
			name:     "unknown token",
			headers:  map[string]string{"Authorization": "Bearer nope"},
			wantName: oauth.ErrorCodeInvalidToken,
			wantMsg:  "Invalid token: access token is invalid",
		},
		{
			name:     "expired token",
			headers:  map[string]string{"Authorization": "Bearer expired"},
			wantName: oauth.ErrorCodeInvalidToken,
			wantMsg:  "Invalid token: access token has expired",
		},
		{
			name:     "token without user",
			headers:  map[string]string{"Authorization": "Bearer orphan"},
			wantName: oauth.ErrorCodeServerError,
			wantMsg:  "Server error: `getAccessToken()` did not return a `user` object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewAuthenticateHandler(newTestOptions(newAuthenticateModel(), tt.config))
			testutil.AssertNoError(t, err)

			method := tt.method
			if method == "" {
				method = "GET"
			}
			headers := map[string]string{}
			for k, v := range tt.headers {
				headers[k] = v
			}
			query := tt.query
			if query == nil {
				query = url.Values{}
			}
			req, err := oauth.NewRequest(oauth.RequestOptions{Body: tt.body, Headers: headers, Method: method, Query: query})
			testutil.AssertNoError(t, err)
			res := oauth.NewResponse(oauth.ResponseOptions{})

			token, err := h.Handle(context.Background(), req, res)
			if tt.wantName != "" {
				testutil.AssertOAuthError(t, err, tt.wantName, tt.wantMsg)
				if res.Body["error"] != tt.wantName {
					t.Errorf("Body = %v", res.Body)
				}
				challenge := res.Get("WWW-Authenticate")
				if tt.wantName == oauth.ErrorCodeUnauthorizedRequest {
					if challenge != `Bearer realm="Service"` || res.Status != http.StatusUnauthorized {
						t.Errorf("challenge = %q, status %d", challenge, res.Status)
					}
				} else if challenge != "" {
					t.Errorf("unexpected challenge %q", challenge)
				}
				return
			}
			testutil.AssertNoError(t, err)
			if token.User != tt.wantUser {
				t.Errorf("User = %v, want %v", token.User, tt.wantUser)
			}
		})
	}
}

func TestAuthenticate_Scope(t *testing.T) {
	req := testutil.NewGetRequest(t, url.Values{}, map[string]string{"Authorization": "Bearer good"})

	t.Run("sufficient scope sets headers", func(t *testing.T) {
		model := newAuthenticateModel()
		h, err := NewAuthenticateHandler(newTestOptions(model, &Config{Scope: "read"}))
		testutil.AssertNoError(t, err)

		res := oauth.NewResponse(oauth.ResponseOptions{})
		_, err = h.Handle(context.Background(), req, res)
		testutil.AssertNoError(t, err)

		if res.Get("X-Accepted-OAuth-Scopes") != "read" || res.Get("X-OAuth-Scopes") != "read write" {
			t.Errorf("Headers = %v", res.Headers)
		}
		if !model.Called("VerifyScope") {
			t.Error("VerifyScope not called")
		}
	})

	t.Run("headers can be disabled", func(t *testing.T) {
		off := false
		config := &Config{Scope: "read", AddAcceptedScopesHeader: &off, AddAuthorizedScopesHeader: &off}
		h, err := NewAuthenticateHandler(newTestOptions(newAuthenticateModel(), config))
		testutil.AssertNoError(t, err)

		res := oauth.NewResponse(oauth.ResponseOptions{})
		_, err = h.Handle(context.Background(), req, res)
		testutil.AssertNoError(t, err)
		if len(res.Headers) != 0 {
			t.Errorf("Headers = %v, want none", res.Headers)
		}
	})

	t.Run("insufficient scope", func(t *testing.T) {
		model := newAuthenticateModel()
		model.VerifyScopeFunc = func(context.Context, *oauth.Token, string) (bool, error) { return false, nil }
		h, err := NewAuthenticateHandler(newTestOptions(model, nil))
		testutil.AssertNoError(t, err)
		h, err = h.WithScope("admin")
		testutil.AssertNoError(t, err)

		res := oauth.NewResponse(oauth.ResponseOptions{})
		_, err = h.Handle(context.Background(), req, res)
		testutil.AssertOAuthError(t, err, oauth.ErrorCodeInsufficientScope, "Insufficient scope: authorized scope is insufficient")
		if res.Status != http.StatusForbidden {
			t.Errorf("Status = %d, want 403", res.Status)
		}
	})
}

func TestServer(t *testing.T) {
	model := newTestModel()
	model.AccessTokens["good"] = &oauth.Token{AccessToken: "good", User: "alice", Scope: "read"}

	srv, err := New(newTestOptions(model, nil))
	testutil.AssertNoError(t, err)

	res := oauth.NewResponse(oauth.ResponseOptions{})
	token, err := srv.Token(context.Background(), tokenRequest(t, passwordBody(), nil), res)
	testutil.AssertNoError(t, err)

	req := testutil.NewGetRequest(t, url.Values{}, map[string]string{"Authorization": "Bearer " + token.AccessToken})
	got, err := srv.AuthenticateScope(context.Background(), req, oauth.NewResponse(oauth.ResponseOptions{}), "read")
	testutil.AssertNoError(t, err)
	if got.User != "alice" {
		t.Errorf("User = %v", got.User)
	}

	if srv.Config.AccessTokenLifetime != time.Hour || srv.Config.AuthorizationCodeLifetime != 5*time.Minute {
		t.Errorf("Config defaults not applied: %+v", srv.Config)
	}
}
