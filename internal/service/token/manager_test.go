package token

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dzerik/oauth-service/internal/model"
	"github.com/dzerik/oauth-service/internal/store"
)

func newTestManager() (*Manager, *store.MemoryRepository) {
	repo := store.NewMemoryRepository()
	return NewManager(repo), repo
}

func TestManager_Issue(t *testing.T) {
	mgr, _ := newTestManager()
	ctx := context.Background()

	rec, err := mgr.Issue(ctx, "subject-1", "google", &model.TokenSet{
		AccessToken: "A1",
		ExpiresIn:   3600,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "Bearer", rec.TokenType)
	assert.True(t, rec.IsActive)
	assert.False(t, rec.IsRevoked)
	assert.WithinDuration(t, time.Now().Add(time.Hour), rec.ExpiresAt, 2*time.Second)
}

func TestManager_Issue_DefaultExpiry(t *testing.T) {
	mgr, _ := newTestManager()

	rec, err := mgr.Issue(context.Background(), "subject-1", "google", &model.TokenSet{
		AccessToken: "A1",
	})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(model.DefaultTokenTTL), rec.ExpiresAt, 2*time.Second)
}

func TestManager_Issue_SingleActiveInvariant(t *testing.T) {
	mgr, repo := newTestManager()
	ctx := context.Background()

	const n = 5
	var last *model.TokenRecord
	for i := 0; i < n; i++ {
		rec, err := mgr.Issue(ctx, "subject-1", "google", &model.TokenSet{AccessToken: "A"})
		require.NoError(t, err)
		last = rec
	}

	active, err := repo.GetActiveToken(ctx, "subject-1", "google")
	require.NoError(t, err)
	assert.Equal(t, last.ID, active.ID)
}

func TestManager_Issue_Concurrent(t *testing.T) {
	mgr, repo := newTestManager()
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Issue(ctx, "subject-1", "google", &model.TokenSet{AccessToken: "A"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Exactly one record may remain active after concurrent issuance.
	count, err := repo.DeactivateTokens(ctx, "subject-1", "google")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestManager_Refresh(t *testing.T) {
	mgr, _ := newTestManager()
	ctx := context.Background()

	rec, err := mgr.Issue(ctx, "subject-1", "google", &model.TokenSet{
		AccessToken:  "A1",
		RefreshToken: "R1",
		IDToken:      "ID1",
		ExpiresIn:    3600,
	})
	require.NoError(t, err)

	refreshed, err := mgr.Refresh(ctx, rec.ID, &model.TokenSet{
		AccessToken: "A2",
		IDToken:     "ID2",
		ExpiresIn:   7200,
	})
	require.NoError(t, err)
	assert.Equal(t, "A2", refreshed.AccessToken)
	assert.Equal(t, "R1", refreshed.RefreshToken, "empty refresh token keeps the prior value")
	assert.Equal(t, "ID2", refreshed.IDToken, "refreshed id token replaces the prior value")
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), refreshed.ExpiresAt, 2*time.Second)
}

func TestManager_Refresh_KeepsExpiryWithoutExpiresIn(t *testing.T) {
	mgr, _ := newTestManager()
	ctx := context.Background()

	rec, err := mgr.Issue(ctx, "subject-1", "google", &model.TokenSet{
		AccessToken: "A1",
		IDToken:     "ID1",
		ExpiresIn:   3600,
	})
	require.NoError(t, err)

	refreshed, err := mgr.Refresh(ctx, rec.ID, &model.TokenSet{
		AccessToken:  "A2",
		RefreshToken: "R2",
	})
	require.NoError(t, err)
	assert.Equal(t, "A2", refreshed.AccessToken)
	assert.Equal(t, "R2", refreshed.RefreshToken)
	assert.Equal(t, "ID1", refreshed.IDToken, "omitted id token keeps the prior value")
	assert.Equal(t, rec.ExpiresAt, refreshed.ExpiresAt, "expiry untouched when expires_in absent")
}

func TestManager_Refresh_NotFound(t *testing.T) {
	mgr, _ := newTestManager()

	_, err := mgr.Refresh(context.Background(), "missing", &model.TokenSet{AccessToken: "A2"})
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestManager_Revoke(t *testing.T) {
	mgr, repo := newTestManager()
	ctx := context.Background()

	rec, err := mgr.Issue(ctx, "subject-1", "google", &model.TokenSet{AccessToken: "A1"})
	require.NoError(t, err)

	ok, err := mgr.Revoke(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.GetToken(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRevoked)
	assert.False(t, got.IsActive)
	assert.False(t, mgr.IsValid(got))

	// Idempotent: revoking again reports false without error.
	ok, err = mgr.Revoke(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	// Unknown token: success=false, no error.
	ok, err = mgr.Revoke(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_RevocationPermanence(t *testing.T) {
	mgr, repo := newTestManager()
	ctx := context.Background()

	rec, err := mgr.Issue(ctx, "subject-1", "google", &model.TokenSet{
		AccessToken:  "A1",
		RefreshToken: "R1",
	})
	require.NoError(t, err)

	_, err = mgr.Revoke(ctx, rec.ID)
	require.NoError(t, err)

	// A refresh after revocation must not resurrect the record.
	refreshed, err := mgr.Refresh(ctx, rec.ID, &model.TokenSet{AccessToken: "A2", ExpiresIn: 3600})
	require.NoError(t, err)
	assert.True(t, refreshed.IsRevoked)
	assert.False(t, refreshed.IsActive)
	assert.False(t, mgr.IsValid(refreshed))

	got, err := repo.GetToken(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestManager_IsValid(t *testing.T) {
	mgr, _ := newTestManager()
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name     string
		rec      *model.TokenRecord
		expected bool
	}{
		{"nil record", nil, false},
		{"valid", &model.TokenRecord{IsActive: true, ExpiresAt: future}, true},
		{"inactive", &model.TokenRecord{ExpiresAt: future}, false},
		{"revoked", &model.TokenRecord{IsActive: true, IsRevoked: true, ExpiresAt: future}, false},
		{"expired", &model.TokenRecord{IsActive: true, ExpiresAt: time.Now().Add(-time.Minute)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, mgr.IsValid(tt.rec))
		})
	}
}

func TestManager_CleanupExpired(t *testing.T) {
	mgr, _ := newTestManager()
	ctx := context.Background()

	_, err := mgr.Issue(ctx, "subject-1", "google", &model.TokenSet{AccessToken: "A", ExpiresIn: 3600})
	require.NoError(t, err)
	expired, err := mgr.Issue(ctx, "subject-2", "google", &model.TokenSet{AccessToken: "B", ExpiresIn: 3600})
	require.NoError(t, err)

	// Move the clock past the second record's expiry only for cleanup.
	mgr.now = func() time.Time { return expired.ExpiresAt.Add(time.Minute) }
	defer func() { mgr.now = time.Now }()

	count, err := mgr.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = mgr.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
