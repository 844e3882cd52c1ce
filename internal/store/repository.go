// Package store provides persistence for users and token records.
// Two implementations are available: an in-memory repository for tests and
// single-instance development, and a SQLite repository for durable
// deployments.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/dzerik/oauth-service/internal/model"
)

var (
	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrTokenNotFound is returned when no token record matches the lookup.
	ErrTokenNotFound = errors.New("token not found")
)

// Repository is the persistence interface consumed by the token lifecycle
// manager and the auth orchestrator.
type Repository interface {
	// CreateUser inserts a new user.
	CreateUser(ctx context.Context, user *model.User) (*model.User, error)

	// GetUserByProviderID looks up a user by provider identity.
	GetUserByProviderID(ctx context.Context, provider, providerUserID string) (*model.User, error)

	// UpsertUser creates the user on first login and refreshes profile
	// fields on subsequent logins.
	UpsertUser(ctx context.Context, provider string, info *model.UserInfo) (*model.User, error)

	// IssueToken deactivates all active records for the record's
	// (subject, provider) pair and inserts the new record as one atomic
	// operation. At no point do two active records coexist.
	IssueToken(ctx context.Context, rec *model.TokenRecord) error

	// GetToken looks up a token record by id.
	GetToken(ctx context.Context, id string) (*model.TokenRecord, error)

	// GetActiveToken returns the active record for a (subject, provider)
	// pair, or ErrTokenNotFound.
	GetActiveToken(ctx context.Context, subjectID, provider string) (*model.TokenRecord, error)

	// GetTokenByRefresh looks up a record by its refresh token value.
	GetTokenByRefresh(ctx context.Context, refreshToken string) (*model.TokenRecord, error)

	// UpdateToken persists changed token fields in place.
	UpdateToken(ctx context.Context, rec *model.TokenRecord) error

	// DeactivateTokens deactivates all active records for a
	// (subject, provider) pair and returns the count affected.
	DeactivateTokens(ctx context.Context, subjectID, provider string) (int, error)

	// RevokeToken marks a record revoked and inactive. Returns false
	// (not an error) when the record does not exist, so logout stays
	// idempotent-tolerant.
	RevokeToken(ctx context.Context, id string) (bool, error)

	// DeactivateExpired deactivates all active records past their expiry
	// and returns the count affected. Safe to call repeatedly.
	DeactivateExpired(ctx context.Context, now time.Time) (int, error)

	// Close releases any resources held by the repository.
	Close() error
}
