package model

import "time"

// DefaultTokenTTL is applied when a provider supplies neither an explicit
// expiry nor an expires_in value.
const DefaultTokenTTL = time.Hour

// TokenSet carries the raw token material returned by a provider's token
// endpoint. Values are secrets and must never appear in logs or error
// messages.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	TokenType    string
	ExpiresIn    int64 // seconds
	Scope        string
}

// TokenRecord is the persisted server-side record of an issued token set.
type TokenRecord struct {
	ID           string    `json:"id"`
	SubjectID    string    `json:"subject_id"`
	Provider     string    `json:"provider"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	IDToken      string    `json:"-"`
	TokenType    string    `json:"token_type"`
	Scope        string    `json:"scope,omitempty"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	IsActive     bool      `json:"is_active"`
	IsRevoked    bool      `json:"is_revoked"`
}

// IsExpired reports whether the record's expiry has passed.
func (t *TokenRecord) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// IsValid reports whether the record can still be used: active, not
// revoked, and not past its expiry.
func (t *TokenRecord) IsValid() bool {
	return t.IsActive && !t.IsRevoked && !t.IsExpired()
}

// ExpiryFrom computes an absolute expiry from an expires_in value,
// falling back to the default TTL when the provider supplied none.
func ExpiryFrom(issuedAt time.Time, expiresIn int64) time.Time {
	if expiresIn <= 0 {
		return issuedAt.Add(DefaultTokenTTL)
	}
	return issuedAt.Add(time.Duration(expiresIn) * time.Second)
}

// Session is the result of a completed authorization flow: the
// authenticated user plus the issued token record and the post-login
// redirect target carried through the state.
type Session struct {
	User        *User        `json:"user"`
	Token       *TokenRecord `json:"token"`
	RedirectURL string       `json:"redirect_url,omitempty"`
}
