package granttype

import (
	"context"
	"net/url"
	"testing"
	"time"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/internal/testutil"
)

func TestAuthorizationCode_Handle(t *testing.T) {
	client := testutil.NewClient("client-1", oauth.GrantTypeAuthorizationCode)
	other := testutil.NewClient("client-2", oauth.GrantTypeAuthorizationCode)
	redirect := "https://client.example.com/cb"

	validCode := func() *oauth.AuthorizationCode {
		return &oauth.AuthorizationCode{
			Code:        "code-1",
			ExpiresAt:   testNow.Add(5 * time.Minute),
			RedirectURI: redirect,
			Scope:       "read",
			Client:      client,
			User:        "alice",
		}
	}

	tests := []struct {
		name     string
		body     url.Values
		code     func() *oauth.AuthorizationCode
		revoke   *bool
		wantName string
		wantMsg  string
	}{
		{
			name:     "missing code",
			body:     url.Values{},
			code:     validCode,
			wantName: oauth.ErrorCodeInvalidRequest,
			wantMsg:  "Missing parameter: `code`",
		},
		{
			name:     "code with control characters",
			body:     url.Values{"code": {"co\x01de"}},
			code:     validCode,
			wantName: oauth.ErrorCodeInvalidRequest,
			wantMsg:  "Invalid parameter: `code`",
		},
		{
			name:     "unknown code",
			body:     url.Values{"code": {"nope"}, "redirect_uri": {redirect}},
			code:     validCode,
			wantName: oauth.ErrorCodeInvalidGrant,
			wantMsg:  "Invalid grant: authorization code is invalid",
		},
		{
			name: "missing client on stored code",
			body: url.Values{"code": {"code-1"}, "redirect_uri": {redirect}},
			code: func() *oauth.AuthorizationCode {
				c := validCode()
				c.Client = nil
				return c
			},
			wantName: oauth.ErrorCodeServerError,
			wantMsg:  "Server error: `getAuthorizationCode()` did not return a `client` object",
		},
		{
			name: "missing user on stored code",
			body: url.Values{"code": {"code-1"}, "redirect_uri": {redirect}},
			code: func() *oauth.AuthorizationCode {
				c := validCode()
				c.User = nil
				return c
			},
			wantName: oauth.ErrorCodeServerError,
			wantMsg:  "Server error: `getAuthorizationCode()` did not return a `user` object",
		},
		{
			name: "code issued to another client",
			body: url.Values{"code": {"code-1"}, "redirect_uri": {redirect}},
			code: func() *oauth.AuthorizationCode {
				c := validCode()
				c.Client = other
				return c
			},
			wantName: oauth.ErrorCodeInvalidGrant,
			wantMsg:  "Invalid grant: authorization code is invalid",
		},
		{
			name: "expired code",
			body: url.Values{"code": {"code-1"}, "redirect_uri": {redirect}},
			code: func() *oauth.AuthorizationCode {
				c := validCode()
				c.ExpiresAt = testNow.Add(-time.Second)
				return c
			},
			wantName: oauth.ErrorCodeInvalidGrant,
			wantMsg:  "Invalid grant: authorization code has expired",
		},
		{
			name: "stored redirect uri is not a uri",
			body: url.Values{"code": {"code-1"}, "redirect_uri": {redirect}},
			code: func() *oauth.AuthorizationCode {
				c := validCode()
				c.RedirectURI = "not a uri"
				return c
			},
			wantName: oauth.ErrorCodeInvalidGrant,
			wantMsg:  "Invalid grant: `redirect_uri` is not a valid URI",
		},
		{
			name:     "request redirect uri is not a uri",
			body:     url.Values{"code": {"code-1"}, "redirect_uri": {"/relative"}},
			code:     validCode,
			wantName: oauth.ErrorCodeInvalidRequest,
			wantMsg:  "Invalid request: `redirect_uri` is not a valid URI",
		},
		{
			name:     "redirect uri mismatch",
			body:     url.Values{"code": {"code-1"}, "redirect_uri": {"https://evil.example.com/cb"}},
			code:     validCode,
			wantName: oauth.ErrorCodeInvalidRequest,
			wantMsg:  "Invalid request: `redirect_uri` is invalid",
		},
		{
			name:     "redirect uri omitted",
			body:     url.Values{"code": {"code-1"}},
			code:     validCode,
			wantName: oauth.ErrorCodeInvalidRequest,
			wantMsg:  "Invalid request: `redirect_uri` is invalid",
		},
		{
			name:     "code already consumed",
			body:     url.Values{"code": {"code-1"}, "redirect_uri": {redirect}},
			code:     validCode,
			revoke:   new(bool),
			wantName: oauth.ErrorCodeInvalidGrant,
			wantMsg:  "Invalid grant: authorization code is invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := testutil.NewModel()
			code := tt.code()
			model.Codes[code.Code] = code
			if tt.revoke != nil {
				model.RevokeAuthorizationCodeFunc = func(context.Context, *oauth.AuthorizationCode) (bool, error) {
					return *tt.revoke, nil
				}
			}

			grant, err := NewAuthorizationCode(testOptions(model))
			testutil.AssertNoError(t, err)

			_, err = grant.Handle(context.Background(), testutil.NewPostRequest(t, tt.body), client)
			testutil.AssertOAuthError(t, err, tt.wantName, tt.wantMsg)
			if model.Called("SaveToken") {
				t.Error("SaveToken must not be called on failure")
			}
		})
	}
}

func TestAuthorizationCode_Success(t *testing.T) {
	client := testutil.NewClient("client-1", oauth.GrantTypeAuthorizationCode)
	model := testutil.NewModel()
	model.Codes["code-1"] = &oauth.AuthorizationCode{
		Code:        "code-1",
		ExpiresAt:   testNow.Add(5 * time.Minute),
		RedirectURI: "https://client.example.com/cb",
		Scope:       "read",
		Client:      client,
		User:        "alice",
	}

	grant, err := NewAuthorizationCode(testOptions(model))
	testutil.AssertNoError(t, err)

	body := url.Values{"code": {"code-1"}, "redirect_uri": {"https://client.example.com/cb"}}
	token, err := grant.Handle(context.Background(), testutil.NewPostRequest(t, body), client)
	testutil.AssertNoError(t, err)

	if token.Scope != "read" {
		t.Errorf("Scope = %q, want the code's scope", token.Scope)
	}
	if token.RefreshToken == "" {
		t.Error("authorization code grant must issue a refresh token")
	}
	if token.User != "alice" {
		t.Errorf("User = %v, want alice", token.User)
	}
	if len(model.RevokedCode) != 1 {
		t.Error("code must be revoked exactly once")
	}

	// single use
	_, err = grant.Handle(context.Background(), testutil.NewPostRequest(t, body), client)
	testutil.AssertOAuthError(t, err, oauth.ErrorCodeInvalidGrant, "Invalid grant: authorization code is invalid")
}

func TestAuthorizationCode_NoStoredRedirect(t *testing.T) {
	client := testutil.NewClient("client-1", oauth.GrantTypeAuthorizationCode)
	model := testutil.NewModel()
	model.Codes["code-1"] = &oauth.AuthorizationCode{
		Code:      "code-1",
		ExpiresAt: testNow.Add(time.Minute),
		Client:    client,
		User:      "alice",
	}

	grant, err := NewAuthorizationCode(testOptions(model))
	testutil.AssertNoError(t, err)

	_, err = grant.Handle(context.Background(), testutil.NewPostRequest(t, url.Values{"code": {"code-1"}}), client)
	testutil.AssertNoError(t, err)
}
