// Package state implements CSRF state issuance and validation for the
// authorization-code flow. State records are single-use: a token validates
// successfully at most once, regardless of the backing store.
package state

import (
	"errors"
	"time"
)

var (
	// ErrStateNotFound is returned when a state token doesn't exist or was
	// already consumed.
	ErrStateNotFound = errors.New("state not found")
	// ErrStateExpired is returned when a state token has passed its expiry.
	ErrStateExpired = errors.New("state expired")
	// ErrStateSignatureInvalid is returned when the token's HMAC signature
	// does not verify.
	ErrStateSignatureInvalid = errors.New("state signature invalid")
	// ErrContextTooLarge is returned when the caller-supplied flow context
	// exceeds the size cap.
	ErrContextTooLarge = errors.New("state context too large")
)

// Record is a stored authorization state binding a request to its callback.
type Record struct {
	Token     string            `json:"token"`
	Provider  string            `json:"provider"`
	Nonce     string            `json:"nonce"`
	Context   map[string]string `json:"context,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// Expired reports whether the record is past its expiry at the given time.
func (r *Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Store holds state records keyed by token.
// Implementations must be safe for concurrent use, and Consume must be
// atomic: for a given token only one caller can ever receive the record.
type Store interface {
	// Save stores a new state record.
	Save(rec *Record) error

	// Consume retrieves and removes a record in one step (one-time use).
	// A second Consume for the same token returns ErrStateNotFound.
	Consume(token string) (*Record, error)

	// SweepExpired removes all records past their expiry and returns the
	// number removed. Calling it when nothing is expired is a no-op.
	SweepExpired(now time.Time) int

	// Count returns the number of stored records.
	Count() int

	// Close releases any resources held by the store.
	Close() error

	// Name returns the store type name.
	Name() string
}

// Config holds state store configuration.
type Config struct {
	// Type is the store type: "memory" or "redis".
	Type string
	// TTL is the state token lifetime.
	TTL time.Duration
	// Redis configuration (used when Type is "redis").
	Redis RedisConfig
}

// RedisConfig holds Redis-specific state store configuration.
type RedisConfig struct {
	Addresses  []string
	Password   string
	DB         int
	KeyPrefix  string
	MasterName string
}

// DefaultConfig returns default state store configuration.
func DefaultConfig() Config {
	return Config{
		Type: "memory",
		TTL:  10 * time.Minute,
		Redis: RedisConfig{
			KeyPrefix: "oauthsvc:state:",
		},
	}
}
