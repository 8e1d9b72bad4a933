package storage

import (
	"context"
	"errors"
	"time"
)

// ErrGrantNotFound is returned when a user has no stored grant for a platform
var ErrGrantNotFound = errors.New("social grant not found")

// ErrStateNotFound is returned when an OAuth state is missing, expired, or
// was already consumed
var ErrStateNotFound = errors.New("oauth state not found")

// StateTTL bounds how long an initiated connect flow stays valid
const StateTTL = 10 * time.Minute

// SocialGrant holds the provider tokens and identity for one connected
// (user, platform) pair. Token fields are plaintext in memory; persistent
// backends encrypt them before writing.
type SocialGrant struct {
	UserID         string    `json:"user_id"`
	Platform       string    `json:"platform"`
	PlatformUserID string    `json:"platform_user_id"`
	AccessToken    string    `json:"access_token"`
	RefreshToken   string    `json:"refresh_token,omitempty"`
	Expiry         time.Time `json:"expiry,omitempty"`
	ConnectedAt    time.Time `json:"connected_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AuthState is the server-side half of a CSRF state token: who started the
// connect flow and for which platform. One-time use.
type AuthState struct {
	UserID    string    `json:"user_id"`
	Platform  string    `json:"platform"`
	Verifier  string    `json:"verifier,omitempty"` // PKCE code verifier, set for platforms that require it
	CreatedAt time.Time `json:"created_at"`
}

// Storage combines grant persistence and one-time OAuth state handling.
// Implementations must enforce at most one unconsumed state per
// (user, platform): storing a new state invalidates the previous one.
type Storage interface {
	// Grant persistence
	UpsertGrant(ctx context.Context, grant *SocialGrant) error
	GetGrant(ctx context.Context, userID, platform string) (*SocialGrant, error)
	DeleteGrant(ctx context.Context, userID, platform string) error
	ListGrants(ctx context.Context, userID string) ([]*SocialGrant, error)

	// One-time OAuth state. ConsumeState must be atomic: concurrent callbacks
	// presenting the same nonce must not both succeed.
	StoreState(ctx context.Context, nonce string, state *AuthState) error
	ConsumeState(ctx context.Context, nonce string) (*AuthState, error)

	Close() error
}
