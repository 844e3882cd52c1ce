package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dzerik/oauth-service/internal/model"
)

// MemoryRepository is a mutex-guarded in-memory Repository.
// All returned records are copies; callers never share memory with the
// stored state.
type MemoryRepository struct {
	mu     sync.Mutex
	users  map[string]*model.User        // keyed by user id
	tokens map[string]*model.TokenRecord // keyed by token record id
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:  make(map[string]*model.User),
		tokens: make(map[string]*model.TokenRecord),
	}
}

// CreateUser inserts a new user, assigning an id when absent.
func (r *MemoryRepository) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := *user
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	r.users[u.ID] = &u

	out := u
	return &out, nil
}

// GetUserByProviderID looks up a user by provider identity.
func (r *MemoryRepository) GetUserByProviderID(ctx context.Context, provider, providerUserID string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Provider == provider && u.ProviderUserID == providerUserID {
			out := *u
			return &out, nil
		}
	}
	return nil, ErrUserNotFound
}

// UpsertUser creates the user on first login and refreshes profile fields
// on subsequent logins.
func (r *MemoryRepository) UpsertUser(ctx context.Context, provider string, info *model.UserInfo) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Provider == provider && u.ProviderUserID == info.ProviderUserID {
			u.Email = info.Email
			u.EmailVerified = info.EmailVerified
			u.Name = info.Name
			u.Picture = info.Picture
			u.Locale = info.Locale
			u.UpdatedAt = time.Now()
			out := *u
			return &out, nil
		}
	}

	now := time.Now()
	u := &model.User{
		ID:             uuid.NewString(),
		Provider:       provider,
		ProviderUserID: info.ProviderUserID,
		Email:          info.Email,
		EmailVerified:  info.EmailVerified,
		Name:           info.Name,
		Picture:        info.Picture,
		Locale:         info.Locale,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.users[u.ID] = u

	out := *u
	return &out, nil
}

// IssueToken deactivates prior active records and inserts the new one
// under a single lock acquisition.
func (r *MemoryRepository) IssueToken(ctx context.Context, rec *model.TokenRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tokens {
		if t.SubjectID == rec.SubjectID && t.Provider == rec.Provider && t.IsActive {
			t.IsActive = false
		}
	}

	stored := *rec
	r.tokens[stored.ID] = &stored
	return nil
}

// GetToken looks up a token record by id.
func (r *MemoryRepository) GetToken(ctx context.Context, id string) (*model.TokenRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[id]
	if !ok {
		return nil, ErrTokenNotFound
	}
	out := *t
	return &out, nil
}

// GetActiveToken returns the active record for a (subject, provider) pair.
func (r *MemoryRepository) GetActiveToken(ctx context.Context, subjectID, provider string) (*model.TokenRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tokens {
		if t.SubjectID == subjectID && t.Provider == provider && t.IsActive {
			out := *t
			return &out, nil
		}
	}
	return nil, ErrTokenNotFound
}

// GetTokenByRefresh looks up a record by its refresh token value.
func (r *MemoryRepository) GetTokenByRefresh(ctx context.Context, refreshToken string) (*model.TokenRecord, error) {
	if refreshToken == "" {
		return nil, ErrTokenNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tokens {
		if t.RefreshToken == refreshToken {
			out := *t
			return &out, nil
		}
	}
	return nil, ErrTokenNotFound
}

// UpdateToken persists changed token fields in place.
func (r *MemoryRepository) UpdateToken(ctx context.Context, rec *model.TokenRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[rec.ID]; !ok {
		return ErrTokenNotFound
	}
	stored := *rec
	r.tokens[rec.ID] = &stored
	return nil
}

// DeactivateTokens deactivates all active records for a pair.
func (r *MemoryRepository) DeactivateTokens(ctx context.Context, subjectID, provider string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, t := range r.tokens {
		if t.SubjectID == subjectID && t.Provider == provider && t.IsActive {
			t.IsActive = false
			count++
		}
	}
	return count, nil
}

// RevokeToken marks a record revoked and inactive.
func (r *MemoryRepository) RevokeToken(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[id]
	if !ok || t.IsRevoked {
		return false, nil
	}
	t.IsRevoked = true
	t.IsActive = false
	return true, nil
}

// DeactivateExpired deactivates all active records past their expiry.
func (r *MemoryRepository) DeactivateExpired(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, t := range r.tokens {
		if t.IsActive && now.After(t.ExpiresAt) {
			t.IsActive = false
			count++
		}
	}
	return count, nil
}

// Close is a no-op for the in-memory repository.
func (r *MemoryRepository) Close() error {
	return nil
}
