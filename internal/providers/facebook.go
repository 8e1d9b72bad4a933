package providers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/postboard/social-front/internal/config"
)

const facebookMaxChars = 63206

type facebook struct {
	oauth  *oauth2.Config
	apiURL string
}

func newFacebook(cfg config.PlatformConfig, redirectURI string) *facebook {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = "https://graph.facebook.com/v19.0"
	}
	return &facebook{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID.String(),
			ClientSecret: cfg.ClientSecret.String(),
			RedirectURL:  redirectURI,
			Scopes:       []string{"public_profile", "pages_manage_posts", "pages_read_engagement"},
			Endpoint:     overrideEndpoint(endpoints.Facebook, cfg),
		},
		apiURL: apiURL,
	}
}

func (f *facebook) Name() string { return "facebook" }

func (f *facebook) UsesPKCE() bool { return false }

func (f *facebook) AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string {
	return f.oauth.AuthCodeURL(state, opts...)
}

func (f *facebook) Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	return f.oauth.Exchange(ctx, code, opts...)
}

func (f *facebook) TokenSource(ctx context.Context, token *oauth2.Token) oauth2.TokenSource {
	return f.oauth.TokenSource(ctx, token)
}

func (f *facebook) Constraints() Constraints {
	return Constraints{MaxChars: facebookMaxChars, SupportsImages: true}
}

// Profile fetches the Graph API identity of the authorized user
func (f *facebook) Profile(ctx context.Context, client *http.Client) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.apiURL+"/me?fields=id,name", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("facebook profile: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("facebook", resp)
	}

	var me struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := decodeInto(resp, &me); err != nil {
		return nil, err
	}
	return &Profile{ID: me.ID, Handle: me.Name}, nil
}

// Publish posts to the user's feed, or to /photos when an image is attached
func (f *facebook) Publish(ctx context.Context, client *http.Client, post Post) (*PostResult, error) {
	if len(post.ImageData) > 0 {
		return f.publishPhoto(ctx, client, post)
	}

	form := url.Values{"message": {post.Content}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.apiURL+"/me/feed", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("facebook feed post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("facebook", resp)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := decodeInto(resp, &created); err != nil {
		return nil, err
	}
	return &PostResult{ID: created.ID, URL: "https://www.facebook.com/" + created.ID}, nil
}

// publishPhoto uploads the image and caption as one multipart request
func (f *facebook) publishPhoto(ctx context.Context, client *http.Client, post Post) (*PostResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("caption", post.Content); err != nil {
		return nil, fmt.Errorf("building photo upload: %w", err)
	}
	part, err := writer.CreateFormFile("source", "image"+extensionFor(post.ImageMIME))
	if err != nil {
		return nil, fmt.Errorf("building photo upload: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(post.ImageData)); err != nil {
		return nil, fmt.Errorf("building photo upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("building photo upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.apiURL+"/me/photos", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("facebook photo post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("facebook", resp)
	}

	var created struct {
		ID     string `json:"id"`
		PostID string `json:"post_id"`
	}
	if err := decodeInto(resp, &created); err != nil {
		return nil, err
	}
	id := created.PostID
	if id == "" {
		id = created.ID
	}
	return &PostResult{ID: id, URL: "https://www.facebook.com/" + id}, nil
}

// Revoke deletes the app permissions, invalidating the token
func (f *facebook) Revoke(ctx context.Context, client *http.Client, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, f.apiURL+"/me/permissions", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("facebook revoke: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError("facebook", resp)
	}
	return nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
