package memory

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/internal/testutil"
	"github.com/giantswarm/oauth2-engine/server"
	"github.com/giantswarm/oauth2-engine/storage"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, clock *testutil.MockTime) *Store {
	t.Helper()
	s := New(Config{DefaultScope: "profile", Now: clock.Now, CleanupInterval: time.Hour})
	t.Cleanup(s.Stop)

	ctx := context.Background()
	err := s.RegisterClient(ctx, storage.ClientRecord{
		ID:           "confidential",
		Grants:       []string{oauth.GrantTypePassword, oauth.GrantTypeRefreshToken, oauth.GrantTypeClientCredentials},
		RedirectURIs: []string{"https://client.example.com/cb"},
		Scope:        "profile read write",
		UserID:       "service-account",
	}, "s3cret")
	testutil.AssertNoError(t, err)
	err = s.RegisterClient(ctx, storage.ClientRecord{ID: "public", Grants: []string{oauth.GrantTypeImplicit}}, "")
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, s.RegisterUser(ctx, "alice", "wonderland"))
	return s
}

func TestStore_RegisterRejectsInvalidRecords(t *testing.T) {
	s := New(Config{})
	defer s.Stop()

	if err := s.RegisterClient(context.Background(), storage.ClientRecord{Grants: []string{"password"}}, ""); !errors.Is(err, storage.ErrInvalidRecord) {
		t.Errorf("RegisterClient() without id error = %v", err)
	}
	if err := s.RegisterUser(context.Background(), "bob", ""); !errors.Is(err, storage.ErrInvalidRecord) {
		t.Errorf("RegisterUser() without password error = %v", err)
	}
}

func TestStore_GetClient(t *testing.T) {
	s := newTestStore(t, testutil.NewMockTime(testNow))

	tests := []struct {
		name   string
		id     string
		secret string
		want   bool
	}{
		{"secret matches", "confidential", "s3cret", true},
		{"no secret", "confidential", "", true},
		{"wrong secret", "confidential", "nope", false},
		{"unknown client", "ghost", "s3cret", false},
		{"unknown client without secret", "ghost", "", false},
		{"public client", "public", "", true},
		{"public client with secret", "public", "anything", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := s.GetClient(context.Background(), tt.id, tt.secret)
			testutil.AssertNoError(t, err)
			if (c != nil) != tt.want {
				t.Fatalf("GetClient() = %v, want found=%v", c, tt.want)
			}
			if c != nil && c.ID != tt.id {
				t.Errorf("ID = %q", c.ID)
			}
		})
	}
}

func TestStore_Users(t *testing.T) {
	s := newTestStore(t, testutil.NewMockTime(testNow))
	ctx := context.Background()

	u, err := s.GetUser(ctx, "alice", "wonderland")
	testutil.AssertNoError(t, err)
	if u != "alice" {
		t.Errorf("GetUser() = %v", u)
	}
	if u, _ := s.GetUser(ctx, "alice", "wrong"); u != nil {
		t.Errorf("wrong password returned %v", u)
	}
	if u, _ := s.GetUser(ctx, "nobody", "wonderland"); u != nil {
		t.Errorf("unknown user returned %v", u)
	}

	u, err = s.GetUserFromClient(ctx, &oauth.Client{ID: "confidential"})
	testutil.AssertNoError(t, err)
	if u != "service-account" {
		t.Errorf("GetUserFromClient() = %v", u)
	}
	if u, _ := s.GetUserFromClient(ctx, &oauth.Client{ID: "public"}); u != nil {
		t.Errorf("client without user returned %v", u)
	}
}

func TestStore_Tokens(t *testing.T) {
	s := newTestStore(t, testutil.NewMockTime(testNow))
	ctx := context.Background()
	client := &oauth.Client{ID: "confidential"}

	saved, err := s.SaveToken(ctx, &oauth.Token{
		AccessToken:           "at",
		AccessTokenExpiresAt:  testNow.Add(time.Hour),
		RefreshToken:          "rt",
		RefreshTokenExpiresAt: testNow.Add(24 * time.Hour),
		Scope:                 "read",
	}, client, "alice")
	testutil.AssertNoError(t, err)
	if saved.Client != client || saved.User != "alice" {
		t.Errorf("SaveToken() = %+v", saved)
	}

	got, err := s.GetAccessToken(ctx, "at")
	testutil.AssertNoError(t, err)
	if got == nil || got.RefreshToken != "rt" || got.User != "alice" {
		t.Fatalf("GetAccessToken() = %+v", got)
	}
	got.Scope = "mutated"
	if again, _ := s.GetAccessToken(ctx, "at"); again.Scope != "read" {
		t.Error("returned token aliases the stored one")
	}

	byRefresh, err := s.GetRefreshToken(ctx, "rt")
	testutil.AssertNoError(t, err)
	if byRefresh == nil || byRefresh.AccessToken != "at" {
		t.Fatalf("GetRefreshToken() = %+v", byRefresh)
	}

	ok, err := s.RevokeToken(ctx, byRefresh)
	testutil.AssertNoError(t, err)
	if !ok {
		t.Error("first RevokeToken() = false")
	}
	if ok, _ := s.RevokeToken(ctx, byRefresh); ok {
		t.Error("second RevokeToken() = true")
	}
	if tok, _ := s.GetRefreshToken(ctx, "rt"); tok != nil {
		t.Error("revoked refresh token still found")
	}

	if _, err := s.SaveToken(ctx, &oauth.Token{}, client, "alice"); err == nil {
		t.Error("SaveToken() without access token should fail")
	}
}

func TestStore_AuthorizationCodes(t *testing.T) {
	s := newTestStore(t, testutil.NewMockTime(testNow))
	ctx := context.Background()

	code := &oauth.AuthorizationCode{Code: "c1", ExpiresAt: testNow.Add(5 * time.Minute), Scope: "read"}
	_, err := s.SaveAuthorizationCode(ctx, code, &oauth.Client{ID: "confidential"}, "alice")
	testutil.AssertNoError(t, err)

	got, err := s.GetAuthorizationCode(ctx, "c1")
	testutil.AssertNoError(t, err)
	if got == nil || got.User != "alice" || got.Client.ID != "confidential" {
		t.Fatalf("GetAuthorizationCode() = %+v", got)
	}

	var wg sync.WaitGroup
	wins := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := s.RevokeAuthorizationCode(ctx, got)
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for ok := range wins {
		if ok {
			count++
		}
	}
	if count != 1 {
		t.Errorf("code consumed %d times, want exactly once", count)
	}
	if c, _ := s.GetAuthorizationCode(ctx, "c1"); c != nil {
		t.Error("consumed code still found")
	}
}

func TestStore_Scope(t *testing.T) {
	s := newTestStore(t, testutil.NewMockTime(testNow))
	ctx := context.Background()
	registered := &oauth.Client{ID: "confidential", Scope: "profile read write"}
	open := &oauth.Client{ID: "public"}

	tests := []struct {
		name      string
		client    *oauth.Client
		requested string
		want      string
	}{
		{"subset of registered", registered, "read", "read"},
		{"outside registered", registered, "admin", ""},
		{"empty uses registered", registered, "", "profile read write"},
		{"empty uses default", open, "", "profile"},
		{"unrestricted client", open, "anything", "anything"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ValidateScope(ctx, "alice", tt.client, tt.requested)
			testutil.AssertNoError(t, err)
			if got != tt.want {
				t.Errorf("ValidateScope(%q) = %q, want %q", tt.requested, got, tt.want)
			}
		})
	}

	tok := &oauth.Token{Scope: "read write"}
	if ok, _ := s.VerifyScope(ctx, tok, "write read"); !ok {
		t.Error("VerifyScope() rejected a covered scope")
	}
	if ok, _ := s.VerifyScope(ctx, tok, "read admin"); ok {
		t.Error("VerifyScope() accepted an uncovered scope")
	}
}

func TestStore_Cleanup(t *testing.T) {
	clock := testutil.NewMockTime(testNow)
	s := newTestStore(t, clock)
	ctx := context.Background()
	client := &oauth.Client{ID: "confidential"}

	_, _ = s.SaveToken(ctx, &oauth.Token{
		AccessToken:           "short",
		AccessTokenExpiresAt:  testNow.Add(time.Minute),
		RefreshToken:          "long",
		RefreshTokenExpiresAt: testNow.Add(time.Hour),
	}, client, "alice")
	_, _ = s.SaveToken(ctx, &oauth.Token{AccessToken: "forever"}, client, "alice")
	_, _ = s.SaveAuthorizationCode(ctx, &oauth.AuthorizationCode{Code: "c", ExpiresAt: testNow.Add(time.Minute)}, client, "alice")

	if n := s.cleanup(); n != 0 {
		t.Errorf("cleanup() before expiry = %d", n)
	}

	clock.Advance(2 * time.Minute)
	if n := s.cleanup(); n != 2 {
		t.Errorf("cleanup() = %d, want access token and code", n)
	}
	if tok, _ := s.GetAccessToken(ctx, "short"); tok != nil {
		t.Error("expired access token kept")
	}
	if tok, _ := s.GetRefreshToken(ctx, "long"); tok == nil {
		t.Error("refresh token dropped before its expiry")
	}
	if tok, _ := s.GetAccessToken(ctx, "forever"); tok == nil {
		t.Error("token without expiry dropped")
	}

	clock.Advance(time.Hour)
	if n := s.cleanup(); n != 1 {
		t.Errorf("cleanup() = %d, want refresh token", n)
	}
	if got := s.tokensCount.Load(); got != 1 {
		t.Errorf("tokensCount = %d, want 1", got)
	}
}

func TestStore_ServesTokenEndpoint(t *testing.T) {
	clock := testutil.NewMockTime(testNow)
	s := newTestStore(t, clock)

	srv, err := server.New(server.Options{Model: s, Now: clock.Now})
	testutil.AssertNoError(t, err)

	token := func(body url.Values) (*oauth.Token, *oauth.Response) {
		t.Helper()
		body.Set("client_id", "confidential")
		body.Set("client_secret", "s3cret")
		req := testutil.NewPostRequest(t, body)
		res := oauth.NewResponse(oauth.ResponseOptions{})
		tok, _ := srv.Token(context.Background(), req, res)
		return tok, res
	}

	first, res := token(url.Values{"grant_type": {"password"}, "username": {"alice"}, "password": {"wonderland"}, "scope": {"read"}})
	if first == nil {
		t.Fatalf("password grant failed: %v", res.Body)
	}
	if res.Body["scope"] != "read" || res.Body["refresh_token"] == "" {
		t.Errorf("Body = %v", res.Body)
	}

	second, res := token(url.Values{"grant_type": {"refresh_token"}, "refresh_token": {first.RefreshToken}})
	if second == nil {
		t.Fatalf("refresh grant failed: %v", res.Body)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Error("refresh token was not rotated")
	}

	_, res = token(url.Values{"grant_type": {"refresh_token"}, "refresh_token": {first.RefreshToken}})
	if res.Body["error"] != oauth.ErrorCodeInvalidGrant {
		t.Errorf("reused refresh token: Body = %v", res.Body)
	}

	req := testutil.NewGetRequest(t, url.Values{}, map[string]string{"Authorization": "Bearer " + second.AccessToken})
	got, err := srv.AuthenticateScope(context.Background(), req, oauth.NewResponse(oauth.ResponseOptions{}), "read")
	testutil.AssertNoError(t, err)
	if got.User != "alice" {
		t.Errorf("User = %v", got.User)
	}
}
