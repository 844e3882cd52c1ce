// Package model defines the core domain types for the OAuth service.
package model

import "time"

// User represents an authenticated user account linked to an external
// identity provider.
type User struct {
	ID             string    `json:"id"`
	Provider       string    `json:"provider"`
	ProviderUserID string    `json:"provider_user_id"`
	Email          string    `json:"email"`
	EmailVerified  bool      `json:"email_verified"`
	Name           string    `json:"name"`
	Picture        string    `json:"picture,omitempty"`
	Locale         string    `json:"locale,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UserInfo is the profile payload returned by an identity provider's
// userinfo endpoint.
type UserInfo struct {
	ProviderUserID string `json:"provider_user_id"`
	Email          string `json:"email"`
	EmailVerified  bool   `json:"email_verified"`
	Name           string `json:"name"`
	Picture        string `json:"picture,omitempty"`
	Locale         string `json:"locale,omitempty"`
}
