package state

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTTL is the default state token lifetime.
	DefaultTTL = 10 * time.Minute
	// maxContextBytes caps the canonicalized flow context size.
	maxContextBytes = 4096
	// tokenRandomBytes is the entropy of the random token segment.
	tokenRandomBytes = 32
	// minKeyBytes is the minimum accepted signing key length.
	minKeyBytes = 32
)

// Manager issues and validates signed, single-use state tokens.
//
// Token format: <random>.<unix-ts>.<signature>, where random is 32 bytes
// base64url-encoded and signature is an HMAC-SHA256 over the random
// segment, the timestamp, and the canonicalized context.
type Manager struct {
	store Store
	key   []byte
	ttl   time.Duration

	// now can be overridden in tests.
	now func() time.Time
}

// NewManager creates a state manager. The signing key is required; a
// missing or short key is a startup misconfiguration, not a per-call
// failure mode.
func NewManager(store Store, signingKey []byte, ttl time.Duration) (*Manager, error) {
	if len(signingKey) < minKeyBytes {
		return nil, fmt.Errorf("state signing key must be at least %d bytes, got %d", minKeyBytes, len(signingKey))
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		store: store,
		key:   signingKey,
		ttl:   ttl,
		now:   time.Now,
	}, nil
}

// Issue generates a signed state token bound to the provider and the
// caller-supplied flow context, and stores the record.
func (m *Manager) Issue(provider string, context map[string]string) (*Record, error) {
	canonical, err := canonicalizeContext(context)
	if err != nil {
		return nil, err
	}

	random := make([]byte, tokenRandomBytes)
	if _, err := io.ReadFull(rand.Reader, random); err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}
	randomPart := base64.RawURLEncoding.EncodeToString(random)

	nonce := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := m.now()
	ts := strconv.FormatInt(now.Unix(), 10)
	sig := m.sign(randomPart, ts, canonical)

	rec := &Record{
		Token:     randomPart + "." + ts + "." + sig,
		Provider:  provider,
		Nonce:     base64.RawURLEncoding.EncodeToString(nonce),
		Context:   context,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Save(rec); err != nil {
		return nil, fmt.Errorf("failed to save state: %w", err)
	}
	return rec, nil
}

// Validate consumes a state token and returns the stored record.
// It fails with ErrStateNotFound for unknown or already-consumed tokens,
// ErrStateExpired for expired tokens (the record is removed), and
// ErrStateSignatureInvalid when the HMAC does not verify. A successful
// validation removes the record, so a second call can never succeed.
func (m *Manager) Validate(token string) (*Record, error) {
	randomPart, ts, sig, ok := splitToken(token)
	if !ok {
		return nil, ErrStateNotFound
	}

	// Consume is atomic in every store; concurrent validates of the same
	// token are serialized here and only one receives the record.
	rec, err := m.store.Consume(token)
	if err != nil {
		return nil, err
	}

	if rec.Expired(m.now()) {
		return nil, ErrStateExpired
	}

	canonical, err := canonicalizeContext(rec.Context)
	if err != nil {
		return nil, ErrStateSignatureInvalid
	}
	expected := m.sign(randomPart, ts, canonical)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return nil, ErrStateSignatureInvalid
	}

	return rec, nil
}

// SweepExpired removes all expired records from the store.
func (m *Manager) SweepExpired() int {
	return m.store.SweepExpired(m.now())
}

// Store returns the backing store.
func (m *Manager) Store() Store {
	return m.store
}

// TTL returns the configured state lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

func (m *Manager) sign(randomPart, ts, canonicalContext string) string {
	mac := hmac.New(sha256.New, m.key)
	mac.Write([]byte(randomPart))
	mac.Write([]byte{'|'})
	mac.Write([]byte(ts))
	mac.Write([]byte{'|'})
	mac.Write([]byte(canonicalContext))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func splitToken(token string) (randomPart, ts, sig string, ok bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return "", "", "", false
	}
	if _, err := strconv.ParseInt(parts[1], 10, 64); err != nil {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// canonicalizeContext produces a deterministic representation of the flow
// context for signing. JSON marshalling of a string map sorts keys, which
// makes the output stable across issue and validate.
func canonicalizeContext(context map[string]string) (string, error) {
	if len(context) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(context)
	if err != nil {
		return "", errors.New("context is not canonicalizable")
	}
	if len(data) > maxContextBytes {
		return "", ErrContextTooLarge
	}
	return string(data), nil
}
