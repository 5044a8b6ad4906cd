package granttype

import (
	"context"
	"errors"
	"net/url"
	"testing"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/internal/testutil"
)

func TestPassword_Handle(t *testing.T) {
	client := testutil.NewClient("client-1", oauth.GrantTypePassword)

	tests := []struct {
		name     string
		body     url.Values
		setup    func(m *testutil.Model)
		wantName string
		wantMsg  string
	}{
		{
			name:     "missing username",
			body:     url.Values{"password": {"pw"}},
			wantName: oauth.ErrorCodeInvalidRequest,
			wantMsg:  "Missing parameter: `username`",
		},
		{
			name:     "missing password",
			body:     url.Values{"username": {"alice"}},
			wantName: oauth.ErrorCodeInvalidRequest,
			wantMsg:  "Missing parameter: `password`",
		},
		{
			name:     "username with newline",
			body:     url.Values{"username": {"ali\nce"}, "password": {"pw"}},
			wantName: oauth.ErrorCodeInvalidRequest,
			wantMsg:  "Invalid parameter: `username`",
		},
		{
			name:     "password with carriage return",
			body:     url.Values{"username": {"alice"}, "password": {"p\rw"}},
			wantName: oauth.ErrorCodeInvalidRequest,
			wantMsg:  "Invalid parameter: `password`",
		},
		{
			name:     "invalid scope",
			body:     url.Values{"username": {"alice"}, "password": {"pw"}, "scope": {`"bad"`}},
			wantName: oauth.ErrorCodeInvalidScope,
			wantMsg:  "Invalid parameter: `scope`",
		},
		{
			name:     "unknown user",
			body:     url.Values{"username": {"alice"}, "password": {"wrong"}},
			wantName: oauth.ErrorCodeInvalidGrant,
			wantMsg:  "Invalid grant: user credentials are invalid",
		},
		{
			name: "model failure becomes server error",
			body: url.Values{"username": {"alice"}, "password": {"pw"}},
			setup: func(m *testutil.Model) {
				m.GetUserFunc = func(context.Context, string, string) (oauth.User, error) {
					return nil, errors.New("db down")
				}
			},
			wantName: oauth.ErrorCodeServerError,
			wantMsg:  "Service Unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := testutil.NewModel()
			model.Users["alice:pw"] = "alice"
			if tt.setup != nil {
				tt.setup(model)
			}
			grant, err := NewPassword(testOptions(model))
			testutil.AssertNoError(t, err)

			_, err = grant.Handle(context.Background(), testutil.NewPostRequest(t, tt.body), client)
			testutil.AssertOAuthError(t, err, tt.wantName, tt.wantMsg)
			if model.Called("SaveToken") {
				t.Error("SaveToken must not be called on failure")
			}
		})
	}
}

func TestPassword_Success(t *testing.T) {
	model := testutil.NewModel()
	model.Users["alice:pw"] = "alice"
	client := testutil.NewClient("client-1", oauth.GrantTypePassword)

	grant, err := NewPassword(testOptions(model))
	testutil.AssertNoError(t, err)

	body := url.Values{"username": {"alice"}, "password": {"pw"}, "scope": {"read"}}
	token, err := grant.Handle(context.Background(), testutil.NewPostRequest(t, body), client)
	testutil.AssertNoError(t, err)

	if !hexToken.MatchString(token.AccessToken) {
		t.Errorf("AccessToken = %q", token.AccessToken)
	}
	if token.RefreshToken == "" {
		t.Error("password grant must issue a refresh token")
	}
	if token.Scope != "read" {
		t.Errorf("Scope = %q, want read", token.Scope)
	}
	if token.User != "alice" || token.Client != client {
		t.Errorf("token bound to %v / %v", token.User, token.Client)
	}
	if len(model.SavedTokens) != 1 {
		t.Errorf("saved %d tokens, want 1", len(model.SavedTokens))
	}
}
