package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/postboard/social-front/internal/config"
)

// Profile is the provider-side identity of a connected account
type Profile struct {
	ID     string
	Handle string
}

// Post is a decoded publish request: text plus an optional inline image
type Post struct {
	Content   string
	ImageData []byte
	ImageMIME string
}

// PostResult is the provider's acknowledgment of a published post
type PostResult struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

// Constraints describes per-platform rendering limits used by preview and
// pre-post validation
type Constraints struct {
	MaxChars       int
	SupportsImages bool
}

// Provider wraps one social platform's OAuth and publishing API. All calls
// that reach the platform take an *http.Client already carrying the user's
// token (built by the connect service from the stored grant).
type Provider interface {
	Name() string

	// AuthCodeURL builds the provider authorization URL for the given state.
	// Extra options carry the PKCE challenge when UsesPKCE is true.
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
	TokenSource(ctx context.Context, token *oauth2.Token) oauth2.TokenSource

	// UsesPKCE reports whether the platform requires a PKCE code challenge
	UsesPKCE() bool

	// Profile fetches the provider-side identity of the authorized user
	Profile(ctx context.Context, client *http.Client) (*Profile, error)

	// Publish creates a post on the platform
	Publish(ctx context.Context, client *http.Client, post Post) (*PostResult, error)

	// Revoke invalidates the token at the provider. Best effort: disconnect
	// proceeds even when revocation fails.
	Revoke(ctx context.Context, client *http.Client, token string) error

	Constraints() Constraints
}

// New constructs the provider for a platform name
func New(name string, cfg config.PlatformConfig, redirectURI string) (Provider, error) {
	switch name {
	case "linkedin":
		return newLinkedIn(cfg, redirectURI), nil
	case "facebook":
		return newFacebook(cfg, redirectURI), nil
	case "twitter":
		return newTwitter(cfg, redirectURI), nil
	default:
		return nil, fmt.Errorf("unknown platform %q", name)
	}
}

// overrideEndpoint applies config test overrides onto a default endpoint
func overrideEndpoint(base oauth2.Endpoint, cfg config.PlatformConfig) oauth2.Endpoint {
	if cfg.AuthURL != "" {
		base.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		base.TokenURL = cfg.TokenURL
	}
	return base
}

// apiError turns a non-2xx provider response into an error carrying the
// best available detail from the body
func apiError(platform string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	detail := strings.TrimSpace(string(body))

	// Providers wrap errors differently; try the common shapes first
	var parsed struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		switch {
		case parsed.Error.Message != "":
			detail = parsed.Error.Message
		case parsed.Message != "":
			detail = parsed.Message
		case parsed.Detail != "":
			detail = parsed.Detail
		}
	}

	if detail == "" {
		detail = resp.Status
	}
	return fmt.Errorf("%s api: status %d: %s", platform, resp.StatusCode, detail)
}

// decodeInto decodes a 2xx JSON response body
func decodeInto(resp *http.Response, v any) error {
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
