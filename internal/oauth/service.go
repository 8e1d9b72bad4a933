// Package oauth implements the connect lifecycle for social platforms:
// authorization initiation, callback completion, status with token refresh,
// disconnect, and publishing through stored grants.
package oauth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/postboard/social-front/internal/crypto"
	"github.com/postboard/social-front/internal/log"
	"github.com/postboard/social-front/internal/providers"
	"github.com/postboard/social-front/internal/storage"
)

// ErrNotConnected is returned when an operation needs a grant the user does
// not have
var ErrNotConnected = errors.New("platform not connected")

// ErrUnknownPlatform is returned for platform names outside the configured set
var ErrUnknownPlatform = errors.New("unknown platform")

// ErrInvalidState is returned when a callback state fails signature or
// format checks. Distinct from storage.ErrStateNotFound, which covers
// expired or already-consumed states.
var ErrInvalidState = errors.New("invalid oauth state")

// ErrContentTooLong is returned when post content exceeds the platform limit
var ErrContentTooLong = errors.New("content exceeds platform limit")

// exchangeTimeout bounds the code-for-token exchange so a stalled provider
// cannot hold the callback request open indefinitely
const exchangeTimeout = 30 * time.Second

// Service orchestrates the OAuth flows against the configured providers
type Service struct {
	store     storage.Storage
	providers map[string]providers.Provider
	stateKey  []byte
}

// NewService builds the connect service. stateKey signs state tokens and must
// stay stable across restarts for in-flight flows to survive.
func NewService(store storage.Storage, provs map[string]providers.Provider, stateKey []byte) *Service {
	return &Service{
		store:     store,
		providers: provs,
		stateKey:  stateKey,
	}
}

func (s *Service) provider(platform string) (providers.Provider, error) {
	p, ok := s.providers[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, platform)
	}
	return p, nil
}

// Platforms returns the configured platform names
func (s *Service) Platforms() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	return names
}

// Constraints returns the rendering limits for a platform
func (s *Service) Constraints(platform string) (providers.Constraints, error) {
	p, err := s.provider(platform)
	if err != nil {
		return providers.Constraints{}, err
	}
	return p.Constraints(), nil
}

// Authorize starts a connect flow: it mints a signed one-time state bound to
// the user and platform, stores the server-side half, and returns the
// provider authorization URL to open in a popup.
func (s *Service) Authorize(ctx context.Context, userID, platform string) (string, error) {
	p, err := s.provider(platform)
	if err != nil {
		return "", err
	}

	state, err := crypto.NewStateToken(userID, platform, s.stateKey)
	if err != nil {
		return "", fmt.Errorf("creating state token: %w", err)
	}
	nonce, err := crypto.StateNonce(state)
	if err != nil {
		return "", err
	}

	record := &storage.AuthState{
		UserID:    userID,
		Platform:  platform,
		CreatedAt: time.Now(),
	}

	var opts []oauth2.AuthCodeOption
	if p.UsesPKCE() {
		verifier := oauth2.GenerateVerifier()
		record.Verifier = verifier
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}

	if err := s.store.StoreState(ctx, nonce, record); err != nil {
		return "", fmt.Errorf("storing oauth state: %w", err)
	}

	log.LogInfoWithFields("oauth", "Connect flow initiated", map[string]interface{}{
		"user_id":  userID,
		"platform": platform,
	})
	return p.AuthCodeURL(state, opts...), nil
}

// CallbackResult describes a completed connect flow for the completion page
type CallbackResult struct {
	UserID   string
	Platform string
	Handle   string
}

// CompleteCallback finishes a connect flow from the provider redirect. It
// consumes the one-time state, verifies the token signature against the
// recorded user and platform, exchanges the code, fetches the provider
// profile, and persists the grant.
func (s *Service) CompleteCallback(ctx context.Context, platform, state, code string) (*CallbackResult, error) {
	nonce, err := crypto.StateNonce(state)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	record, err := s.store.ConsumeState(ctx, nonce)
	if err != nil {
		return nil, err
	}
	if record.Platform != platform {
		return nil, fmt.Errorf("%w: platform mismatch", ErrInvalidState)
	}
	if _, err := crypto.ParseStateToken(state, record.UserID, record.Platform, s.stateKey); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	p, err := s.provider(platform)
	if err != nil {
		return nil, err
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()

	var opts []oauth2.AuthCodeOption
	if record.Verifier != "" {
		opts = append(opts, oauth2.VerifierOption(record.Verifier))
	}
	token, err := p.Exchange(exchangeCtx, code, opts...)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}

	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	profile, err := p.Profile(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("fetching %s profile: %w", platform, err)
	}

	now := time.Now()
	grant := &storage.SocialGrant{
		UserID:         record.UserID,
		Platform:       platform,
		PlatformUserID: profile.ID,
		AccessToken:    token.AccessToken,
		RefreshToken:   token.RefreshToken,
		Expiry:         token.Expiry,
		ConnectedAt:    now,
		UpdatedAt:      now,
	}
	if existing, err := s.store.GetGrant(ctx, record.UserID, platform); err == nil {
		grant.ConnectedAt = existing.ConnectedAt
	}
	if err := s.store.UpsertGrant(ctx, grant); err != nil {
		return nil, fmt.Errorf("persisting grant: %w", err)
	}

	log.LogInfoWithFields("oauth", "Connect flow completed", map[string]interface{}{
		"user_id":  record.UserID,
		"platform": platform,
	})
	return &CallbackResult{
		UserID:   record.UserID,
		Platform: platform,
		Handle:   profile.Handle,
	}, nil
}

// Status is the connection state of one (user, platform) pair
type Status struct {
	Platform    string     `json:"platform"`
	Connected   bool       `json:"connected"`
	Username    string     `json:"username,omitempty"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
}

// Status reports whether the user has a usable grant for the platform. A
// grant whose token expired and cannot be refreshed reports disconnected
// rather than erroring; the client's remedy either way is to reconnect.
func (s *Service) Status(ctx context.Context, userID, platform string) (*Status, error) {
	p, err := s.provider(platform)
	if err != nil {
		return nil, err
	}

	grant, err := s.store.GetGrant(ctx, userID, platform)
	if errors.Is(err, storage.ErrGrantNotFound) {
		return &Status{Platform: platform, Connected: false}, nil
	}
	if err != nil {
		return nil, err
	}

	if !grant.Expiry.IsZero() && time.Now().After(grant.Expiry) {
		if _, _, err := s.freshToken(ctx, p, grant); err != nil {
			log.LogWarnWithFields("oauth", "Token refresh failed, reporting disconnected", map[string]interface{}{
				"user_id":  userID,
				"platform": platform,
				"error":    err.Error(),
			})
			return &Status{Platform: platform, Connected: false}, nil
		}
	}

	connectedAt := grant.ConnectedAt
	return &Status{
		Platform:    platform,
		Connected:   true,
		Username:    grant.PlatformUserID,
		ConnectedAt: &connectedAt,
	}, nil
}

// Disconnect revokes the token at the provider (best effort) and removes the
// stored grant. Disconnecting an unconnected platform succeeds.
func (s *Service) Disconnect(ctx context.Context, userID, platform string) error {
	p, err := s.provider(platform)
	if err != nil {
		return err
	}

	grant, err := s.store.GetGrant(ctx, userID, platform)
	if errors.Is(err, storage.ErrGrantNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(grantToken(grant)))
	if err := p.Revoke(ctx, client, grant.AccessToken); err != nil {
		log.LogWarnWithFields("oauth", "Provider token revocation failed", map[string]interface{}{
			"user_id":  userID,
			"platform": platform,
			"error":    err.Error(),
		})
	}

	if err := s.store.DeleteGrant(ctx, userID, platform); err != nil {
		return fmt.Errorf("removing grant: %w", err)
	}

	log.LogInfoWithFields("oauth", "Platform disconnected", map[string]interface{}{
		"user_id":  userID,
		"platform": platform,
	})
	return nil
}

// PostRequest is a decoded publish request
type PostRequest struct {
	Content     string
	ImageBase64 string
	ImageMIME   string
}

// Publish posts content on behalf of the user, refreshing the token first
// when needed
func (s *Service) Publish(ctx context.Context, userID, platform string, req PostRequest) (*providers.PostResult, error) {
	p, err := s.provider(platform)
	if err != nil {
		return nil, err
	}

	constraints := p.Constraints()
	if constraints.MaxChars > 0 && len([]rune(req.Content)) > constraints.MaxChars {
		return nil, fmt.Errorf("%w: %d > %d characters", ErrContentTooLong, len([]rune(req.Content)), constraints.MaxChars)
	}

	post := providers.Post{Content: req.Content}
	if req.ImageBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			return nil, fmt.Errorf("decoding image data: %w", err)
		}
		post.ImageData = data
		post.ImageMIME = req.ImageMIME
	}

	grant, err := s.store.GetGrant(ctx, userID, platform)
	if errors.Is(err, storage.ErrGrantNotFound) {
		return nil, ErrNotConnected
	}
	if err != nil {
		return nil, err
	}

	_, client, err := s.freshToken(ctx, p, grant)
	if err != nil {
		return nil, fmt.Errorf("refreshing %s token: %w", platform, err)
	}

	result, err := p.Publish(ctx, client, post)
	if err != nil {
		return nil, err
	}

	log.LogInfoWithFields("oauth", "Post published", map[string]interface{}{
		"user_id":  userID,
		"platform": platform,
		"post_id":  result.ID,
	})
	return result, nil
}

// freshToken resolves a usable token for the grant, persisting it back when
// the provider issued a refreshed one, and returns an HTTP client carrying it
func (s *Service) freshToken(ctx context.Context, p providers.Provider, grant *storage.SocialGrant) (*oauth2.Token, *http.Client, error) {
	current := grantToken(grant)
	token, err := p.TokenSource(ctx, current).Token()
	if err != nil {
		return nil, nil, err
	}

	if token.AccessToken != current.AccessToken {
		grant.AccessToken = token.AccessToken
		if token.RefreshToken != "" {
			grant.RefreshToken = token.RefreshToken
		}
		grant.Expiry = token.Expiry
		grant.UpdatedAt = time.Now()
		if err := s.store.UpsertGrant(ctx, grant); err != nil {
			log.LogWarnWithFields("oauth", "Failed to persist refreshed token", map[string]interface{}{
				"user_id":  grant.UserID,
				"platform": grant.Platform,
				"error":    err.Error(),
			})
		}
	}

	return token, oauth2.NewClient(ctx, oauth2.StaticTokenSource(token)), nil
}

func grantToken(grant *storage.SocialGrant) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		Expiry:       grant.Expiry,
	}
}
