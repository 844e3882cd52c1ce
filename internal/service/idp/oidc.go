package idp

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/dzerik/oauth-service/internal/model"
	"github.com/dzerik/oauth-service/internal/service/credentials"
)

// OIDCProvider implements Provider for any OIDC-compliant issuer
// (Google, Keycloak, Okta, ...). The discovery document is fetched once
// at construction.
type OIDCProvider struct {
	name         string
	provider     *oidc.Provider
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
}

// NewOIDCProvider creates an OIDC provider from resolved credentials.
func NewOIDCProvider(creds *credentials.ProviderCredentials) (*OIDCProvider, error) {
	if !creds.Configured {
		return nil, ErrProviderNotConfigured
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	provider, err := oidc.NewProvider(ctx, creds.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider %s: %w", creds.Provider, err)
	}

	scopes := creds.Scopes
	hasOpenID := false
	for _, s := range scopes {
		if s == oidc.ScopeOpenID {
			hasOpenID = true
			break
		}
	}
	if !hasOpenID {
		scopes = append([]string{oidc.ScopeOpenID}, scopes...)
	}

	oauth2Config := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  creds.RedirectURI,
		Endpoint:     provider.Endpoint(),
		Scopes:       scopes,
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: creds.ClientID})

	return &OIDCProvider{
		name:         creds.Provider,
		provider:     provider,
		oauth2Config: oauth2Config,
		verifier:     verifier,
	}, nil
}

// Name returns the provider name.
func (p *OIDCProvider) Name() string {
	return p.name
}

// AuthURL generates the authorization URL with the given state.
func (p *OIDCProvider) AuthURL(opts AuthURLOptions) string {
	authOpts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("response_type", "code"),
	}
	if opts.Nonce != "" {
		authOpts = append(authOpts, oauth2.SetAuthURLParam("nonce", opts.Nonce))
	}
	if opts.LoginHint != "" {
		authOpts = append(authOpts, oauth2.SetAuthURLParam("login_hint", opts.LoginHint))
	}
	if opts.Prompt != "" {
		authOpts = append(authOpts, oauth2.SetAuthURLParam("prompt", opts.Prompt))
	}
	return p.oauth2Config.AuthCodeURL(opts.State, authOpts...)
}

// Exchange exchanges the authorization code for tokens. The redirect_uri
// sent here comes from the same oauth2.Config used to build the
// authorization URL, so the two can never diverge.
func (p *OIDCProvider) Exchange(ctx context.Context, code string) (*model.TokenSet, error) {
	token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, classifyError(ErrExchangeFailed, err)
	}
	return tokenSetFrom(token), nil
}

// UserInfo retrieves user information using the access token.
func (p *OIDCProvider) UserInfo(ctx context.Context, accessToken string) (*model.UserInfo, error) {
	userInfo, err := p.provider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
	}))
	if err != nil {
		return nil, classifyError(ErrUserInfoFailed, err)
	}

	var claims struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
		Locale        string `json:"locale"`
	}
	if err := userInfo.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	return &model.UserInfo{
		ProviderUserID: claims.Sub,
		Email:          claims.Email,
		EmailVerified:  claims.EmailVerified,
		Name:           claims.Name,
		Picture:        claims.Picture,
		Locale:         claims.Locale,
	}, nil
}

// Refresh refreshes the access token using the refresh token.
func (p *OIDCProvider) Refresh(ctx context.Context, refreshToken string) (*model.TokenSet, error) {
	tokenSource := p.oauth2Config.TokenSource(ctx, &oauth2.Token{
		RefreshToken: refreshToken,
	})
	token, err := tokenSource.Token()
	if err != nil {
		return nil, classifyError(ErrRefreshFailed, err)
	}
	return tokenSetFrom(token), nil
}

func tokenSetFrom(token *oauth2.Token) *model.TokenSet {
	idToken, _ := token.Extra("id_token").(string)

	expiresIn := int64(0)
	if !token.Expiry.IsZero() {
		expiresIn = int64(time.Until(token.Expiry).Seconds())
	}

	scope, _ := token.Extra("scope").(string)

	return &model.TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		IDToken:      idToken,
		TokenType:    token.TokenType,
		ExpiresIn:    expiresIn,
		Scope:        scope,
	}
}
