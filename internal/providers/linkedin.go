package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/postboard/social-front/internal/config"
)

const linkedinMaxChars = 3000

type linkedIn struct {
	oauth  *oauth2.Config
	apiURL string
}

func newLinkedIn(cfg config.PlatformConfig, redirectURI string) *linkedIn {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = "https://api.linkedin.com"
	}
	return &linkedIn{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID.String(),
			ClientSecret: cfg.ClientSecret.String(),
			RedirectURL:  redirectURI,
			Scopes:       []string{"openid", "profile", "w_member_social"},
			Endpoint:     overrideEndpoint(endpoints.LinkedIn, cfg),
		},
		apiURL: apiURL,
	}
}

func (l *linkedIn) Name() string { return "linkedin" }

func (l *linkedIn) UsesPKCE() bool { return false }

func (l *linkedIn) AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string {
	return l.oauth.AuthCodeURL(state, opts...)
}

func (l *linkedIn) Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	return l.oauth.Exchange(ctx, code, opts...)
}

func (l *linkedIn) TokenSource(ctx context.Context, token *oauth2.Token) oauth2.TokenSource {
	return l.oauth.TokenSource(ctx, token)
}

func (l *linkedIn) Constraints() Constraints {
	return Constraints{MaxChars: linkedinMaxChars, SupportsImages: true}
}

// Profile fetches the member identity via the OpenID userinfo endpoint
func (l *linkedIn) Profile(ctx context.Context, client *http.Client) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.apiURL+"/v2/userinfo", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("linkedin userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("linkedin", resp)
	}

	var info struct {
		Sub  string `json:"sub"`
		Name string `json:"name"`
	}
	if err := decodeInto(resp, &info); err != nil {
		return nil, err
	}
	return &Profile{ID: info.Sub, Handle: info.Name}, nil
}

// ugcPost is the request body for the LinkedIn UGC post API
type ugcPost struct {
	Author          string         `json:"author"`
	LifecycleState  string         `json:"lifecycleState"`
	SpecificContent map[string]any `json:"specificContent"`
	Visibility      map[string]any `json:"visibility"`
}

// Publish creates a UGC post, registering and uploading an image asset first
// when one is attached
func (l *linkedIn) Publish(ctx context.Context, client *http.Client, post Post) (*PostResult, error) {
	profile, err := l.Profile(ctx, client)
	if err != nil {
		return nil, err
	}
	author := "urn:li:person:" + profile.ID

	shareContent := map[string]any{
		"shareCommentary":    map[string]any{"text": post.Content},
		"shareMediaCategory": "NONE",
	}

	if len(post.ImageData) > 0 {
		assetURN, err := l.uploadImage(ctx, client, author, post)
		if err != nil {
			return nil, err
		}
		shareContent["shareMediaCategory"] = "IMAGE"
		shareContent["media"] = []map[string]any{{
			"status": "READY",
			"media":  assetURN,
		}}
	}

	body := ugcPost{
		Author:         author,
		LifecycleState: "PUBLISHED",
		SpecificContent: map[string]any{
			"com.linkedin.ugc.ShareContent": shareContent,
		},
		Visibility: map[string]any{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling ugc post: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.apiURL+"/v2/ugcPosts", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("linkedin ugc post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, apiError("linkedin", resp)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := decodeInto(resp, &created); err != nil {
		return nil, err
	}
	return &PostResult{
		ID:  created.ID,
		URL: "https://www.linkedin.com/feed/update/" + created.ID,
	}, nil
}

// uploadImage runs the two-step assets flow: register the upload, then PUT
// the raw bytes to the returned URL
func (l *linkedIn) uploadImage(ctx context.Context, client *http.Client, author string, post Post) (string, error) {
	registerBody := map[string]any{
		"registerUploadRequest": map[string]any{
			"recipes": []string{"urn:li:digitalmediaRecipe:feedshare-image"},
			"owner":   author,
			"serviceRelationships": []map[string]any{{
				"relationshipType": "OWNER",
				"identifier":       "urn:li:userGeneratedContent",
			}},
		},
	}
	payload, err := json.Marshal(registerBody)
	if err != nil {
		return "", fmt.Errorf("marshaling register upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.apiURL+"/v2/assets?action=registerUpload", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("linkedin register upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", apiError("linkedin", resp)
	}

	var registered struct {
		Value struct {
			Asset           string `json:"asset"`
			UploadMechanism map[string]struct {
				UploadURL string `json:"uploadUrl"`
			} `json:"uploadMechanism"`
		} `json:"value"`
	}
	if err := decodeInto(resp, &registered); err != nil {
		return "", err
	}

	var uploadURL string
	for _, mech := range registered.Value.UploadMechanism {
		if mech.UploadURL != "" {
			uploadURL = mech.UploadURL
			break
		}
	}
	if uploadURL == "" {
		return "", fmt.Errorf("linkedin register upload: no upload URL in response")
	}

	putReq, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(post.ImageData))
	if err != nil {
		return "", err
	}
	putReq.Header.Set("Content-Type", post.ImageMIME)

	putResp, err := client.Do(putReq)
	if err != nil {
		return "", fmt.Errorf("linkedin image upload: %w", err)
	}
	defer putResp.Body.Close()
	if putResp.StatusCode >= http.StatusMultipleChoices {
		return "", apiError("linkedin", putResp)
	}

	return registered.Value.Asset, nil
}

// Revoke is a no-op for LinkedIn, which has no self-serve revocation
// endpoint for member tokens; the stored grant is simply deleted.
func (l *linkedIn) Revoke(ctx context.Context, client *http.Client, token string) error {
	return nil
}
