package testutil

import (
	"context"
	"sync"

	oauth "github.com/giantswarm/oauth2-engine"
)

// Model is a fake implementing every model capability. Each method calls
// its Func field when set and otherwise serves from the maps. Calls are
// recorded by method name.
type Model struct {
	mu    sync.Mutex
	calls []string

	Clients       map[string]*oauth.Client // by client ID, secrets are not checked
	Users         map[string]oauth.User    // by "username:password"
	ClientUser    oauth.User
	DefaultScope  string // granted by ValidateScope when none is requested
	AccessTokens  map[string]*oauth.Token
	RefreshTokens map[string]*oauth.Token
	Codes         map[string]*oauth.AuthorizationCode

	SavedTokens []*oauth.Token
	SavedCodes  []*oauth.AuthorizationCode
	RevokedCode []*oauth.AuthorizationCode
	Revoked     []*oauth.Token

	GetClientFunc                 func(ctx context.Context, id, secret string) (*oauth.Client, error)
	GetUserFunc                   func(ctx context.Context, username, password string) (oauth.User, error)
	GetUserFromClientFunc         func(ctx context.Context, client *oauth.Client) (oauth.User, error)
	SaveTokenFunc                 func(ctx context.Context, token *oauth.Token, client *oauth.Client, user oauth.User) (*oauth.Token, error)
	GetAccessTokenFunc            func(ctx context.Context, accessToken string) (*oauth.Token, error)
	GetAuthorizationCodeFunc      func(ctx context.Context, code string) (*oauth.AuthorizationCode, error)
	SaveAuthorizationCodeFunc     func(ctx context.Context, code *oauth.AuthorizationCode, client *oauth.Client, user oauth.User) (*oauth.AuthorizationCode, error)
	RevokeAuthorizationCodeFunc   func(ctx context.Context, code *oauth.AuthorizationCode) (bool, error)
	GetRefreshTokenFunc           func(ctx context.Context, refreshToken string) (*oauth.Token, error)
	RevokeTokenFunc               func(ctx context.Context, token *oauth.Token) (bool, error)
	ValidateScopeFunc             func(ctx context.Context, user oauth.User, client *oauth.Client, scope string) (string, error)
	VerifyScopeFunc               func(ctx context.Context, token *oauth.Token, scope string) (bool, error)
	GenerateAccessTokenFunc       func(ctx context.Context, client *oauth.Client, user oauth.User, scope string) (string, error)
	GenerateRefreshTokenFunc      func(ctx context.Context, client *oauth.Client, user oauth.User, scope string) (string, error)
	GenerateAuthorizationCodeFunc func(ctx context.Context, client *oauth.Client, user oauth.User, scope string) (string, error)
}

// NewModel returns an empty fake model.
func NewModel() *Model {
	return &Model{
		Clients:       map[string]*oauth.Client{},
		Users:         map[string]oauth.User{},
		AccessTokens:  map[string]*oauth.Token{},
		RefreshTokens: map[string]*oauth.Token{},
		Codes:         map[string]*oauth.AuthorizationCode{},
		DefaultScope:  "default",
	}
}

func (m *Model) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

// Calls returns the recorded method names in call order.
func (m *Model) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Called reports whether name was called at least once.
func (m *Model) Called(name string) bool {
	for _, c := range m.Calls() {
		if c == name {
			return true
		}
	}
	return false
}

func (m *Model) GetClient(ctx context.Context, id, secret string) (*oauth.Client, error) {
	m.record("GetClient")
	if m.GetClientFunc != nil {
		return m.GetClientFunc(ctx, id, secret)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Clients[id], nil
}

func (m *Model) GetUser(ctx context.Context, username, password string) (oauth.User, error) {
	m.record("GetUser")
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx, username, password)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Users[username+":"+password], nil
}

func (m *Model) GetUserFromClient(ctx context.Context, client *oauth.Client) (oauth.User, error) {
	m.record("GetUserFromClient")
	if m.GetUserFromClientFunc != nil {
		return m.GetUserFromClientFunc(ctx, client)
	}
	return m.ClientUser, nil
}

func (m *Model) SaveToken(ctx context.Context, token *oauth.Token, client *oauth.Client, user oauth.User) (*oauth.Token, error) {
	m.record("SaveToken")
	if m.SaveTokenFunc != nil {
		return m.SaveTokenFunc(ctx, token, client, user)
	}
	saved := *token
	saved.Client = client
	saved.User = user

	m.mu.Lock()
	defer m.mu.Unlock()
	m.SavedTokens = append(m.SavedTokens, &saved)
	m.AccessTokens[saved.AccessToken] = &saved
	if saved.RefreshToken != "" {
		m.RefreshTokens[saved.RefreshToken] = &saved
	}
	return &saved, nil
}

func (m *Model) GetAccessToken(ctx context.Context, accessToken string) (*oauth.Token, error) {
	m.record("GetAccessToken")
	if m.GetAccessTokenFunc != nil {
		return m.GetAccessTokenFunc(ctx, accessToken)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.AccessTokens[accessToken], nil
}

func (m *Model) GetAuthorizationCode(ctx context.Context, code string) (*oauth.AuthorizationCode, error) {
	m.record("GetAuthorizationCode")
	if m.GetAuthorizationCodeFunc != nil {
		return m.GetAuthorizationCodeFunc(ctx, code)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Codes[code], nil
}

func (m *Model) SaveAuthorizationCode(ctx context.Context, code *oauth.AuthorizationCode, client *oauth.Client, user oauth.User) (*oauth.AuthorizationCode, error) {
	m.record("SaveAuthorizationCode")
	if m.SaveAuthorizationCodeFunc != nil {
		return m.SaveAuthorizationCodeFunc(ctx, code, client, user)
	}
	saved := *code
	saved.Client = client
	saved.User = user

	m.mu.Lock()
	defer m.mu.Unlock()
	m.SavedCodes = append(m.SavedCodes, &saved)
	m.Codes[saved.Code] = &saved
	return &saved, nil
}

func (m *Model) RevokeAuthorizationCode(ctx context.Context, code *oauth.AuthorizationCode) (bool, error) {
	m.record("RevokeAuthorizationCode")
	if m.RevokeAuthorizationCodeFunc != nil {
		return m.RevokeAuthorizationCodeFunc(ctx, code)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Codes[code.Code]; !ok {
		return false, nil
	}
	delete(m.Codes, code.Code)
	m.RevokedCode = append(m.RevokedCode, code)
	return true, nil
}

func (m *Model) GetRefreshToken(ctx context.Context, refreshToken string) (*oauth.Token, error) {
	m.record("GetRefreshToken")
	if m.GetRefreshTokenFunc != nil {
		return m.GetRefreshTokenFunc(ctx, refreshToken)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RefreshTokens[refreshToken], nil
}

func (m *Model) RevokeToken(ctx context.Context, token *oauth.Token) (bool, error) {
	m.record("RevokeToken")
	if m.RevokeTokenFunc != nil {
		return m.RevokeTokenFunc(ctx, token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.RefreshTokens[token.RefreshToken]; !ok {
		return false, nil
	}
	delete(m.RefreshTokens, token.RefreshToken)
	m.Revoked = append(m.Revoked, token)
	return true, nil
}

func (m *Model) ValidateScope(ctx context.Context, user oauth.User, client *oauth.Client, scope string) (string, error) {
	m.record("ValidateScope")
	if m.ValidateScopeFunc != nil {
		return m.ValidateScopeFunc(ctx, user, client, scope)
	}
	if scope == "" {
		return m.DefaultScope, nil
	}
	return scope, nil
}

func (m *Model) VerifyScope(ctx context.Context, token *oauth.Token, scope string) (bool, error) {
	m.record("VerifyScope")
	if m.VerifyScopeFunc != nil {
		return m.VerifyScopeFunc(ctx, token, scope)
	}
	return true, nil
}

func (m *Model) GenerateAccessToken(ctx context.Context, client *oauth.Client, user oauth.User, scope string) (string, error) {
	m.record("GenerateAccessToken")
	if m.GenerateAccessTokenFunc != nil {
		return m.GenerateAccessTokenFunc(ctx, client, user, scope)
	}
	return "", nil
}

func (m *Model) GenerateRefreshToken(ctx context.Context, client *oauth.Client, user oauth.User, scope string) (string, error) {
	m.record("GenerateRefreshToken")
	if m.GenerateRefreshTokenFunc != nil {
		return m.GenerateRefreshTokenFunc(ctx, client, user, scope)
	}
	return "", nil
}

func (m *Model) GenerateAuthorizationCode(ctx context.Context, client *oauth.Client, user oauth.User, scope string) (string, error) {
	m.record("GenerateAuthorizationCode")
	if m.GenerateAuthorizationCodeFunc != nil {
		return m.GenerateAuthorizationCodeFunc(ctx, client, user, scope)
	}
	return "", nil
}
