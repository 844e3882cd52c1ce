package idp

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"

	"github.com/dzerik/oauth-service/internal/model"
)

// MockProvider is an in-process provider for development and tests. It
// accepts any authorization code and mints fake token sets for a fixed
// profile, so the full flow can run without a real identity provider.
type MockProvider struct {
	name    string
	profile model.UserInfo

	mu     sync.Mutex
	tokens map[string]bool // access tokens issued by this provider

	// Hooks for tests; when nil the default behavior applies.
	ExchangeFunc func(ctx context.Context, code string) (*model.TokenSet, error)
	UserInfoFunc func(ctx context.Context, accessToken string) (*model.UserInfo, error)
	RefreshFunc  func(ctx context.Context, refreshToken string) (*model.TokenSet, error)
}

// NewMockProvider creates a mock provider with a default developer
// profile.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		name: name,
		profile: model.UserInfo{
			ProviderUserID: "mock-user-1",
			Email:          "developer@example.test",
			EmailVerified:  true,
			Name:           "Developer",
		},
		tokens: make(map[string]bool),
	}
}

// SetProfile overrides the profile returned by UserInfo.
func (p *MockProvider) SetProfile(profile model.UserInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profile = profile
}

// Name returns the provider name.
func (p *MockProvider) Name() string {
	return p.name
}

// AuthURL generates a fake authorization URL carrying the state.
func (p *MockProvider) AuthURL(opts AuthURLOptions) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("state", opts.State)
	if opts.Nonce != "" {
		q.Set("nonce", opts.Nonce)
	}
	return "https://mock.idp.test/authorize?" + q.Encode()
}

// Exchange accepts any non-empty code and mints a fake token set.
func (p *MockProvider) Exchange(ctx context.Context, code string) (*model.TokenSet, error) {
	if p.ExchangeFunc != nil {
		return p.ExchangeFunc(ctx, code)
	}
	if code == "" {
		return nil, fmt.Errorf("%w: empty code", ErrExchangeFailed)
	}

	access := "mock-access-" + uuid.NewString()
	p.mu.Lock()
	p.tokens[access] = true
	p.mu.Unlock()

	return &model.TokenSet{
		AccessToken:  access,
		RefreshToken: "mock-refresh-" + uuid.NewString(),
		TokenType:    "Bearer",
		ExpiresIn:    3600,
	}, nil
}

// UserInfo returns the configured profile for tokens this provider
// issued.
func (p *MockProvider) UserInfo(ctx context.Context, accessToken string) (*model.UserInfo, error) {
	if p.UserInfoFunc != nil {
		return p.UserInfoFunc(ctx, accessToken)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.tokens[accessToken] {
		return nil, fmt.Errorf("%w: unknown access token", ErrUserInfoFailed)
	}
	profile := p.profile
	return &profile, nil
}

// Refresh mints a new fake token set.
func (p *MockProvider) Refresh(ctx context.Context, refreshToken string) (*model.TokenSet, error) {
	if p.RefreshFunc != nil {
		return p.RefreshFunc(ctx, refreshToken)
	}
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: empty refresh token", ErrRefreshFailed)
	}

	access := "mock-access-" + uuid.NewString()
	p.mu.Lock()
	p.tokens[access] = true
	p.mu.Unlock()

	return &model.TokenSet{
		AccessToken:  access,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    3600,
	}, nil
}
