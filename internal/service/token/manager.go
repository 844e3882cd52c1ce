// Package token implements the token lifecycle: issuance, refresh,
// revocation, and expiry of persisted token records.
package token

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dzerik/oauth-service/internal/model"
	"github.com/dzerik/oauth-service/internal/store"
	"github.com/dzerik/oauth-service/pkg/logger"
)

// ErrTokenNotFound mirrors the repository sentinel for callers that only
// import this package.
var ErrTokenNotFound = store.ErrTokenNotFound

// Manager enforces the single-active-token invariant: for any
// (subject, provider) pair at most one record is active at a time.
// Issuance for the same pair is serialized with a per-pair lock on top of
// the repository's own atomicity, so the invariant holds even with a
// repository that cannot provide transactions.
type Manager struct {
	repo store.Repository
	log  *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// now can be overridden in tests.
	now func() time.Time
}

// NewManager creates a token lifecycle manager over the given repository.
func NewManager(repo store.Repository) *Manager {
	return &Manager{
		repo:  repo,
		log:   logger.Named("token"),
		locks: make(map[string]*sync.Mutex),
		now:   time.Now,
	}
}

// Issue deactivates any prior active records for (subjectID, provider)
// and inserts a new active record built from the token set. Expiry is
// derived from the set's ExpiresIn, defaulting to one hour.
func (m *Manager) Issue(ctx context.Context, subjectID, provider string, set *model.TokenSet) (*model.TokenRecord, error) {
	lock := m.pairLock(subjectID, provider)
	lock.Lock()
	defer lock.Unlock()

	now := m.now()
	tokenType := set.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	rec := &model.TokenRecord{
		ID:           uuid.NewString(),
		SubjectID:    subjectID,
		Provider:     provider,
		AccessToken:  set.AccessToken,
		RefreshToken: set.RefreshToken,
		IDToken:      set.IDToken,
		TokenType:    tokenType,
		Scope:        set.Scope,
		IssuedAt:     now,
		ExpiresAt:    model.ExpiryFrom(now, set.ExpiresIn),
		IsActive:     true,
	}

	if err := m.repo.IssueToken(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	m.log.Info("token issued",
		zap.String("token_id", rec.ID),
		zap.String("subject_id", subjectID),
		zap.String("provider", provider),
		zap.Time("expires_at", rec.ExpiresAt),
	)
	return rec, nil
}

// Refresh updates a record's token values in place from the set the
// provider returned. Refresh and ID tokens the provider omitted keep
// their prior values. Expiry is recomputed only when ExpiresIn is
// positive; that is a policy choice: a provider that omits expires_in
// on refresh has not extended the token's life.
func (m *Manager) Refresh(ctx context.Context, tokenID string, set *model.TokenSet) (*model.TokenRecord, error) {
	rec, err := m.repo.GetToken(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	rec.AccessToken = set.AccessToken
	if set.RefreshToken != "" {
		rec.RefreshToken = set.RefreshToken
	}
	if set.IDToken != "" {
		rec.IDToken = set.IDToken
	}
	if set.ExpiresIn > 0 {
		rec.ExpiresAt = m.now().Add(time.Duration(set.ExpiresIn) * time.Second)
	}

	if err := m.repo.UpdateToken(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to update token: %w", err)
	}

	m.log.Info("token refreshed",
		zap.String("token_id", rec.ID),
		zap.Time("expires_at", rec.ExpiresAt),
	)
	return rec, nil
}

// Revoke marks a record revoked and inactive. Revocation is permanent and
// idempotent: revoking an already-revoked or unknown token reports
// success=false without error.
func (m *Manager) Revoke(ctx context.Context, tokenID string) (bool, error) {
	ok, err := m.repo.RevokeToken(ctx, tokenID)
	if err != nil {
		return false, fmt.Errorf("failed to revoke token: %w", err)
	}
	if ok {
		m.log.Info("token revoked", zap.String("token_id", tokenID))
	}
	return ok, nil
}

// IsValid reports whether a record is usable: active, not revoked, and
// not past expiry.
func (m *Manager) IsValid(rec *model.TokenRecord) bool {
	if rec == nil {
		return false
	}
	return rec.IsActive && !rec.IsRevoked && m.now().Before(rec.ExpiresAt)
}

// ActiveToken returns the active record for a (subject, provider) pair.
func (m *Manager) ActiveToken(ctx context.Context, subjectID, provider string) (*model.TokenRecord, error) {
	return m.repo.GetActiveToken(ctx, subjectID, provider)
}

// FindByRefreshToken looks up a record by its refresh token value.
func (m *Manager) FindByRefreshToken(ctx context.Context, refreshToken string) (*model.TokenRecord, error) {
	return m.repo.GetTokenByRefresh(ctx, refreshToken)
}

// CleanupExpired deactivates (not revokes) all active records past their
// expiry and returns the count affected. Safe to call repeatedly and
// concurrently.
func (m *Manager) CleanupExpired(ctx context.Context) (int, error) {
	count, err := m.repo.DeactivateExpired(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate expired tokens: %w", err)
	}
	if count > 0 {
		m.log.Info("expired tokens deactivated", zap.Int("count", count))
	}
	return count, nil
}

// pairLock returns the mutex guarding issuance for one (subject, provider)
// pair.
func (m *Manager) pairLock(subjectID, provider string) *sync.Mutex {
	key := subjectID + "/" + provider
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key] = lock
	}
	return lock
}
