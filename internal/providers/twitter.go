package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/postboard/social-front/internal/config"
)

const twitterMaxChars = 280

// twitterEndpoint is the X/Twitter OAuth 2.0 endpoint pair. The v2 API
// requires PKCE for all user-context flows.
var twitterEndpoint = oauth2.Endpoint{
	AuthURL:  "https://twitter.com/i/oauth2/authorize",
	TokenURL: "https://api.twitter.com/2/oauth2/token",
}

type twitter struct {
	oauth     *oauth2.Config
	apiURL    string
	uploadURL string
}

func newTwitter(cfg config.PlatformConfig, redirectURI string) *twitter {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	uploadURL := "https://upload.twitter.com/1.1"
	if apiURL == "" {
		apiURL = "https://api.twitter.com"
	} else {
		// Test override: point media upload at the same fake
		uploadURL = apiURL + "/1.1"
	}
	return &twitter{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID.String(),
			ClientSecret: cfg.ClientSecret.String(),
			RedirectURL:  redirectURI,
			Scopes:       []string{"tweet.read", "tweet.write", "users.read", "offline.access"},
			Endpoint:     overrideEndpoint(twitterEndpoint, cfg),
		},
		apiURL:    apiURL,
		uploadURL: uploadURL,
	}
}

func (t *twitter) Name() string { return "twitter" }

func (t *twitter) UsesPKCE() bool { return true }

func (t *twitter) AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string {
	return t.oauth.AuthCodeURL(state, opts...)
}

func (t *twitter) Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	return t.oauth.Exchange(ctx, code, opts...)
}

func (t *twitter) TokenSource(ctx context.Context, token *oauth2.Token) oauth2.TokenSource {
	return t.oauth.TokenSource(ctx, token)
}

func (t *twitter) Constraints() Constraints {
	return Constraints{MaxChars: twitterMaxChars, SupportsImages: true}
}

// Profile fetches the authorized user via the v2 users endpoint
func (t *twitter) Profile(ctx context.Context, client *http.Client) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.apiURL+"/2/users/me", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twitter profile: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("twitter", resp)
	}

	var me struct {
		Data struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"data"`
	}
	if err := decodeInto(resp, &me); err != nil {
		return nil, err
	}
	return &Profile{ID: me.Data.ID, Handle: me.Data.Username}, nil
}

// tweetRequest is the v2 tweet creation body
type tweetRequest struct {
	Text  string `json:"text"`
	Media *struct {
		MediaIDs []string `json:"media_ids"`
	} `json:"media,omitempty"`
}

// Publish creates a tweet, uploading the image through the media endpoint
// first when one is attached
func (t *twitter) Publish(ctx context.Context, client *http.Client, post Post) (*PostResult, error) {
	body := tweetRequest{Text: post.Content}

	if len(post.ImageData) > 0 {
		mediaID, err := t.uploadMedia(ctx, client, post)
		if err != nil {
			return nil, err
		}
		body.Media = &struct {
			MediaIDs []string `json:"media_ids"`
		}{MediaIDs: []string{mediaID}}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling tweet: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL+"/2/tweets", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twitter tweet: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, apiError("twitter", resp)
	}

	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := decodeInto(resp, &created); err != nil {
		return nil, err
	}
	return &PostResult{
		ID:  created.Data.ID,
		URL: "https://twitter.com/i/web/status/" + created.Data.ID,
	}, nil
}

// uploadMedia pushes the image to the v1.1 media endpoint as base64 form data
func (t *twitter) uploadMedia(ctx context.Context, client *http.Client, post Post) (string, error) {
	form := url.Values{
		"media_data":     {base64.StdEncoding.EncodeToString(post.ImageData)},
		"media_category": {"tweet_image"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.uploadURL+"/media/upload.json", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("twitter media upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", apiError("twitter", resp)
	}

	var uploaded struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := decodeInto(resp, &uploaded); err != nil {
		return "", err
	}
	if uploaded.MediaIDString == "" {
		return "", fmt.Errorf("twitter media upload: empty media id")
	}
	return uploaded.MediaIDString, nil
}

// Revoke invalidates the token via the OAuth 2.0 revocation endpoint
func (t *twitter) Revoke(ctx context.Context, client *http.Client, token string) error {
	form := url.Values{
		"token":           {token},
		"token_type_hint": {"access_token"},
		"client_id":       {t.oauth.ClientID},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL+"/2/oauth2/revoke", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("twitter revoke: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError("twitter", resp)
	}
	return nil
}
