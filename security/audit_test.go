package security

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewAuditor(t *testing.T) {
	tests := []struct {
		name    string
		logger  *slog.Logger
		enabled bool
	}{
		{
			name:    "enabled with logger",
			logger:  slog.Default(),
			enabled: true,
		},
		{
			name:    "disabled with logger",
			logger:  slog.Default(),
			enabled: false,
		},
		{
			name:    "enabled with nil logger",
			logger:  nil,
			enabled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auditor := NewAuditor(tt.logger, tt.enabled)
			if auditor.enabled != tt.enabled {
				t.Errorf("enabled = %v, want %v", auditor.enabled, tt.enabled)
			}
			if auditor.logger == nil {
				t.Error("logger should not be nil")
			}
		})
	}
}

func TestAuditor_Events(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		enabled   bool
		log       func(a *Auditor)
		wantEvent string
	}{
		{
			name:      "token issued",
			enabled:   true,
			log:       func(a *Auditor) { a.LogTokenIssued(ctx, "user-1", "client-1", "password", "read", true) },
			wantEvent: EventTokenIssued,
		},
		{
			name:      "refresh rotated",
			enabled:   true,
			log:       func(a *Auditor) { a.LogRefreshTokenRotated(ctx, "user-1", "client-1") },
			wantEvent: EventRefreshTokenRotated,
		},
		{
			name:      "code issued",
			enabled:   true,
			log:       func(a *Auditor) { a.LogAuthorizationCodeIssued(ctx, "user-1", "client-1", "read") },
			wantEvent: EventAuthorizationCodeIssued,
		},
		{
			name:      "authorization denied",
			enabled:   true,
			log:       func(a *Auditor) { a.LogAuthorizationDenied(ctx, "", "client-1", "access_denied") },
			wantEvent: EventAuthorizationDenied,
		},
		{
			name:      "auth failure",
			enabled:   true,
			log:       func(a *Auditor) { a.LogAuthFailure(ctx, "", "client-1", "10.0.0.1", "invalid_client") },
			wantEvent: EventAuthFailure,
		},
		{
			name:      "rate limit",
			enabled:   true,
			log:       func(a *Auditor) { a.LogRateLimitExceeded(ctx, "10.0.0.1", "/token") },
			wantEvent: EventRateLimitExceeded,
		},
		{
			name:    "disabled logs nothing",
			enabled: false,
			log:     func(a *Auditor) { a.LogTokenIssued(ctx, "user-1", "client-1", "password", "", false) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			auditor := NewAuditor(slog.New(slog.NewTextHandler(&buf, nil)), tt.enabled)
			tt.log(auditor)

			out := buf.String()
			if tt.wantEvent == "" {
				if out != "" {
					t.Errorf("expected no output, got %q", out)
				}
				return
			}
			if !strings.Contains(out, "event_type="+tt.wantEvent) {
				t.Errorf("output %q does not contain event %q", out, tt.wantEvent)
			}
		})
	}
}

func TestAuditor_HashesUserID(t *testing.T) {
	var buf bytes.Buffer
	auditor := NewAuditor(slog.New(slog.NewTextHandler(&buf, nil)), true)
	auditor.LogTokenIssued(context.Background(), "alice@example.com", "client-1", "password", "", false)

	out := buf.String()
	if strings.Contains(out, "alice@example.com") {
		t.Error("user ID must not appear in clear text")
	}
	if !strings.Contains(out, "user_id_hash="+hashForLogging("alice@example.com")) {
		t.Errorf("output %q missing hashed user ID", out)
	}
}

func TestAuditor_NilSafe(t *testing.T) {
	var a *Auditor
	a.LogAuthFailure(context.Background(), "", "", "", "x")
}

func TestHashForLogging(t *testing.T) {
	if got := hashForLogging(""); got != "<empty>" {
		t.Errorf("hashForLogging(\"\") = %q", got)
	}
	h := hashForLogging("secret")
	if len(h) != 16 {
		t.Errorf("hash length = %d, want 16", len(h))
	}
	if h != hashForLogging("secret") {
		t.Error("hash is not deterministic")
	}
}
