// Package auth orchestrates the authorization-code flow end to end:
// state issuance, callback validation, user persistence, and token
// lifecycle. Handlers call into this package and never touch the
// underlying services directly.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/dzerik/oauth-service/internal/model"
	"github.com/dzerik/oauth-service/internal/service/idp"
	"github.com/dzerik/oauth-service/internal/service/state"
	"github.com/dzerik/oauth-service/internal/service/token"
	"github.com/dzerik/oauth-service/internal/store"
	"github.com/dzerik/oauth-service/pkg/logger"
)

var (
	// ErrInvalidRedirect is returned for redirect targets that are not
	// local paths. External targets are rejected to prevent open
	// redirects.
	ErrInvalidRedirect = errors.New("invalid redirect target")
	// ErrNonceMismatch is returned when the ID token's nonce does not
	// match the nonce bound to the state.
	ErrNonceMismatch = errors.New("nonce mismatch")
	// ErrTokenRevoked is returned when a refresh is attempted with a
	// revoked token record. Revocation is permanent.
	ErrTokenRevoked = errors.New("token is revoked")
)

const defaultRedirect = "/"

// Orchestrator wires the state manager, provider registry, user store,
// and token manager into the login, callback, refresh, and logout
// operations.
type Orchestrator struct {
	states    *state.Manager
	tokens    *token.Manager
	users     store.Repository
	providers *idp.Registry
	log       *zap.Logger
}

// NewOrchestrator creates the auth orchestrator.
func NewOrchestrator(states *state.Manager, tokens *token.Manager, users store.Repository, providers *idp.Registry) *Orchestrator {
	return &Orchestrator{
		states:    states,
		tokens:    tokens,
		users:     users,
		providers: providers,
		log:       logger.Named("auth"),
	}
}

// BeginAuthorization starts the flow for a provider: it issues a signed
// single-use state bound to the post-login redirect and returns the
// provider's authorization URL. The redirect target must be a local
// path.
func (o *Orchestrator) BeginAuthorization(ctx context.Context, provider, redirectURL string) (string, error) {
	p, err := o.providers.Get(provider)
	if err != nil {
		return "", err
	}

	redirect, err := validateRedirect(redirectURL)
	if err != nil {
		return "", err
	}

	flowContext := map[string]string{}
	if redirect != defaultRedirect {
		flowContext["redirect"] = redirect
	}

	rec, err := o.states.Issue(provider, flowContext)
	if err != nil {
		return "", fmt.Errorf("failed to begin authorization: %w", err)
	}

	o.log.Info("authorization started",
		zap.String("provider", provider),
		zap.String("correlation_id", logger.GetCorrelationID(ctx)),
	)

	return p.AuthURL(idp.AuthURLOptions{
		State: rec.Token,
		Nonce: rec.Nonce,
	}), nil
}

// CompleteAuthorization handles the provider callback. It consumes the
// state, exchanges the code, verifies the ID token nonce against the
// state's nonce, upserts the user, and issues a token record. State
// consumption happens first, so a replayed callback fails before any
// provider call is made.
func (o *Orchestrator) CompleteAuthorization(ctx context.Context, stateToken, code string) (*model.Session, error) {
	rec, err := o.states.Validate(stateToken)
	if err != nil {
		return nil, err
	}

	p, err := o.providers.Get(rec.Provider)
	if err != nil {
		return nil, err
	}

	set, err := p.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	if set.IDToken != "" && rec.Nonce != "" {
		tokenNonce := extractNonce(set.IDToken)
		if tokenNonce != "" && tokenNonce != rec.Nonce {
			o.log.Warn("nonce mismatch on callback",
				zap.String("provider", rec.Provider),
				zap.String("correlation_id", logger.GetCorrelationID(ctx)),
			)
			return nil, ErrNonceMismatch
		}
	}

	info, err := p.UserInfo(ctx, set.AccessToken)
	if err != nil {
		return nil, err
	}

	user, err := o.users.UpsertUser(ctx, rec.Provider, info)
	if err != nil {
		return nil, fmt.Errorf("failed to persist user: %w", err)
	}

	tokenRec, err := o.tokens.Issue(ctx, user.ID, rec.Provider, set)
	if err != nil {
		return nil, err
	}

	o.log.Info("authorization completed",
		zap.String("provider", rec.Provider),
		zap.String("user_id", user.ID),
		zap.String("token_id", tokenRec.ID),
		zap.String("correlation_id", logger.GetCorrelationID(ctx)),
	)

	redirect := rec.Context["redirect"]
	if redirect == "" {
		redirect = defaultRedirect
	}
	return &model.Session{
		User:        user,
		Token:       tokenRec,
		RedirectURL: redirect,
	}, nil
}

// RefreshSession exchanges a refresh token for new token material via
// the original provider and updates the record in place. Revoked
// records never refresh.
func (o *Orchestrator) RefreshSession(ctx context.Context, refreshToken string) (*model.TokenRecord, error) {
	rec, err := o.tokens.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if rec.IsRevoked {
		return nil, ErrTokenRevoked
	}

	p, err := o.providers.Get(rec.Provider)
	if err != nil {
		return nil, err
	}

	set, err := p.Refresh(ctx, rec.RefreshToken)
	if err != nil {
		return nil, err
	}

	updated, err := o.tokens.Refresh(ctx, rec.ID, set)
	if err != nil {
		return nil, err
	}

	o.log.Info("session refreshed",
		zap.String("token_id", updated.ID),
		zap.String("provider", updated.Provider),
		zap.String("correlation_id", logger.GetCorrelationID(ctx)),
	)
	return updated, nil
}

// Logout revokes the token record. It reports whether a record was
// actually revoked; unknown or already-revoked records report false
// without error, so logout stays idempotent.
func (o *Orchestrator) Logout(ctx context.Context, tokenID string) (bool, error) {
	revoked, err := o.tokens.Revoke(ctx, tokenID)
	if err != nil {
		return false, err
	}
	if revoked {
		o.log.Info("session terminated",
			zap.String("token_id", tokenID),
			zap.String("correlation_id", logger.GetCorrelationID(ctx)),
		)
	}
	return revoked, nil
}

// validateRedirect accepts only local paths. Absolute URLs, scheme
// prefixes, and protocol-relative (//) targets are rejected.
func validateRedirect(redirect string) (string, error) {
	if redirect == "" {
		return defaultRedirect, nil
	}
	if !strings.HasPrefix(redirect, "/") || strings.HasPrefix(redirect, "//") {
		return "", ErrInvalidRedirect
	}
	if strings.Contains(redirect, "://") || strings.ContainsAny(redirect, "\r\n") {
		return "", ErrInvalidRedirect
	}
	return redirect, nil
}

// extractNonce reads the nonce claim from an ID token without verifying
// the signature. Signature verification is the provider's concern at
// exchange time; here only the nonce binding matters.
func extractNonce(idToken string) string {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(idToken, claims); err != nil {
		return ""
	}
	nonce, _ := claims["nonce"].(string)
	return nonce
}
