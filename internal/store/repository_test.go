package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dzerik/oauth-service/internal/model"
)

// The same behavioral suite runs against both repository implementations.
func repositories(t *testing.T) map[string]Repository {
	t.Helper()

	sqliteRepo, err := OpenSQLite(filepath.Join(t.TempDir(), "tokens.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteRepo.Close() })

	return map[string]Repository{
		"memory": NewMemoryRepository(),
		"sqlite": sqliteRepo,
	}
}

func newTokenRecord(subjectID, provider string) *model.TokenRecord {
	now := time.Now()
	return &model.TokenRecord{
		ID:          uuid.NewString(),
		SubjectID:   subjectID,
		Provider:    provider,
		AccessToken: "access-" + uuid.NewString(),
		TokenType:   "Bearer",
		IssuedAt:    now,
		ExpiresAt:   now.Add(time.Hour),
		IsActive:    true,
	}
}

func TestRepository_UpsertUser(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			info := &model.UserInfo{
				ProviderUserID: "goog-123",
				Email:          "alice@example.com",
				EmailVerified:  true,
				Name:           "Alice",
			}

			created, err := repo.UpsertUser(ctx, "google", info)
			require.NoError(t, err)
			assert.NotEmpty(t, created.ID)
			assert.Equal(t, "alice@example.com", created.Email)

			// Second upsert updates profile fields, keeps identity.
			info.Email = "alice@new.example.com"
			updated, err := repo.UpsertUser(ctx, "google", info)
			require.NoError(t, err)
			assert.Equal(t, created.ID, updated.ID)
			assert.Equal(t, "alice@new.example.com", updated.Email)

			got, err := repo.GetUserByProviderID(ctx, "google", "goog-123")
			require.NoError(t, err)
			assert.Equal(t, created.ID, got.ID)

			_, err = repo.GetUserByProviderID(ctx, "github", "goog-123")
			assert.ErrorIs(t, err, ErrUserNotFound)
		})
	}
}

func TestRepository_IssueToken_SingleActive(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			var last *model.TokenRecord
			for i := 0; i < 5; i++ {
				rec := newTokenRecord("subject-1", "google")
				require.NoError(t, repo.IssueToken(ctx, rec))
				last = rec
			}

			active, err := repo.GetActiveToken(ctx, "subject-1", "google")
			require.NoError(t, err)
			assert.Equal(t, last.ID, active.ID)

			// Prior records are deactivated, none remain active.
			count, err := repo.DeactivateTokens(ctx, "subject-1", "google")
			require.NoError(t, err)
			assert.Equal(t, 1, count)
		})
	}
}

func TestRepository_IssueToken_IndependentPairs(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			google := newTokenRecord("subject-1", "google")
			github := newTokenRecord("subject-1", "github")
			require.NoError(t, repo.IssueToken(ctx, google))
			require.NoError(t, repo.IssueToken(ctx, github))

			got, err := repo.GetActiveToken(ctx, "subject-1", "google")
			require.NoError(t, err)
			assert.Equal(t, google.ID, got.ID)

			got, err = repo.GetActiveToken(ctx, "subject-1", "github")
			require.NoError(t, err)
			assert.Equal(t, github.ID, got.ID)
		})
	}
}

func TestRepository_RevokeToken(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			rec := newTokenRecord("subject-1", "google")
			require.NoError(t, repo.IssueToken(ctx, rec))

			ok, err := repo.RevokeToken(ctx, rec.ID)
			require.NoError(t, err)
			assert.True(t, ok)

			got, err := repo.GetToken(ctx, rec.ID)
			require.NoError(t, err)
			assert.True(t, got.IsRevoked)
			assert.False(t, got.IsActive)

			// Revoking again or revoking an unknown token reports
			// false, not an error.
			ok, err = repo.RevokeToken(ctx, rec.ID)
			require.NoError(t, err)
			assert.False(t, ok)

			ok, err = repo.RevokeToken(ctx, "missing-id")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestRepository_UpdateToken(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			rec := newTokenRecord("subject-1", "google")
			require.NoError(t, repo.IssueToken(ctx, rec))

			rec.AccessToken = "rotated-access"
			rec.ExpiresAt = rec.ExpiresAt.Add(time.Hour)
			require.NoError(t, repo.UpdateToken(ctx, rec))

			got, err := repo.GetToken(ctx, rec.ID)
			require.NoError(t, err)
			assert.Equal(t, "rotated-access", got.AccessToken)

			missing := newTokenRecord("subject-1", "google")
			assert.ErrorIs(t, repo.UpdateToken(ctx, missing), ErrTokenNotFound)
		})
	}
}

func TestRepository_GetTokenByRefresh(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			rec := newTokenRecord("subject-1", "google")
			rec.RefreshToken = "refresh-abc"
			require.NoError(t, repo.IssueToken(ctx, rec))

			got, err := repo.GetTokenByRefresh(ctx, "refresh-abc")
			require.NoError(t, err)
			assert.Equal(t, rec.ID, got.ID)

			_, err = repo.GetTokenByRefresh(ctx, "")
			assert.ErrorIs(t, err, ErrTokenNotFound)

			_, err = repo.GetTokenByRefresh(ctx, "nope")
			assert.ErrorIs(t, err, ErrTokenNotFound)
		})
	}
}

func TestRepository_DeactivateExpired(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			live := newTokenRecord("subject-1", "google")
			require.NoError(t, repo.IssueToken(ctx, live))

			expired := newTokenRecord("subject-2", "google")
			expired.ExpiresAt = time.Now().Add(-time.Minute)
			require.NoError(t, repo.IssueToken(ctx, expired))

			count, err := repo.DeactivateExpired(ctx, time.Now())
			require.NoError(t, err)
			assert.Equal(t, 1, count)

			// Idempotent: a second sweep affects nothing.
			count, err = repo.DeactivateExpired(ctx, time.Now())
			require.NoError(t, err)
			assert.Equal(t, 0, count)

			_, err = repo.GetActiveToken(ctx, "subject-2", "google")
			assert.ErrorIs(t, err, ErrTokenNotFound)
		})
	}
}
