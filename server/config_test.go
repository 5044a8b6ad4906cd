package server

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	c := applyDefaults(nil, logger)
	if c.AccessTokenLifetime != time.Hour {
		t.Errorf("AccessTokenLifetime = %v", c.AccessTokenLifetime)
	}
	if c.RefreshTokenLifetime != 14*24*time.Hour {
		t.Errorf("RefreshTokenLifetime = %v", c.RefreshTokenLifetime)
	}
	if c.AuthorizationCodeLifetime != 5*time.Minute {
		t.Errorf("AuthorizationCodeLifetime = %v", c.AuthorizationCodeLifetime)
	}
	if !*c.AlwaysIssueNewRefreshToken || !*c.AddAcceptedScopesHeader || !*c.AddAuthorizedScopesHeader {
		t.Error("boolean defaults should be true")
	}
	if c.AllowEmptyState || c.AllowBearerTokensInQueryString || c.AllowExtendedTokenAttributes {
		t.Error("permissive options should default to false")
	}

	in := &Config{AccessTokenLifetime: time.Minute, AlwaysIssueNewRefreshToken: boolPtr(false)}
	c = applyDefaults(in, logger)
	if c.AccessTokenLifetime != time.Minute || *c.AlwaysIssueNewRefreshToken {
		t.Errorf("explicit values were overwritten: %+v", c)
	}
	if in.RefreshTokenLifetime != 0 {
		t.Error("applyDefaults modified its input")
	}
}

func TestClientAuthenticationRequired(t *testing.T) {
	c := &Config{RequireClientAuthentication: map[string]bool{"password": false, "refresh_token": true}}

	tests := map[string]bool{
		"password":           false,
		"refresh_token":      true,
		"client_credentials": true,
	}
	for grant, want := range tests {
		t.Run(grant, func(t *testing.T) {
			if got := c.clientAuthenticationRequired(grant); got != want {
				t.Errorf("clientAuthenticationRequired(%q) = %v, want %v", grant, got, want)
			}
		})
	}
}

func TestLogSecurityWarnings(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	applyDefaults(&Config{
		AllowBearerTokensInQueryString: true,
		AllowEmptyState:                true,
		AlwaysIssueNewRefreshToken:     boolPtr(false),
	}, logger)

	out := buf.String()
	for _, want := range []string{
		"bearer tokens accepted in query strings",
		"without `state` are accepted",
		"refresh token rotation is disabled",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	applyDefaults(nil, logger)
	if buf.Len() != 0 {
		t.Errorf("defaults should not warn, got:\n%s", buf.String())
	}
}
