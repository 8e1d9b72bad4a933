package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postboard/social-front/internal/config"
)

func platformConfig(apiURL string) config.PlatformConfig {
	return config.PlatformConfig{
		ClientID:     config.NewConfigValue("client-id"),
		ClientSecret: config.NewConfigValue("client-secret"),
		AuthURL:      "http://auth.test/authorize",
		TokenURL:     "http://auth.test/token",
		APIURL:       apiURL,
	}
}

func TestNewKnownPlatforms(t *testing.T) {
	for _, name := range []string{"linkedin", "facebook", "twitter"} {
		p, err := New(name, platformConfig(""), "http://localhost/cb")
		require.NoError(t, err)
		assert.Equal(t, name, p.Name())
	}

	_, err := New("myspace", platformConfig(""), "http://localhost/cb")
	assert.Error(t, err)
}

func TestAuthCodeURLUsesOverrides(t *testing.T) {
	p, err := New("linkedin", platformConfig(""), "http://localhost/cb")
	require.NoError(t, err)

	authURL := p.AuthCodeURL("state-123")
	assert.True(t, strings.HasPrefix(authURL, "http://auth.test/authorize"))
	assert.Contains(t, authURL, "state=state-123")
	assert.Contains(t, authURL, "client_id=client-id")
	assert.Contains(t, authURL, "w_member_social")
}

func TestTwitterRequiresPKCE(t *testing.T) {
	tw, err := New("twitter", platformConfig(""), "http://localhost/cb")
	require.NoError(t, err)
	assert.True(t, tw.UsesPKCE())

	li, err := New("linkedin", platformConfig(""), "http://localhost/cb")
	require.NoError(t, err)
	assert.False(t, li.UsesPKCE())
}

func TestConstraints(t *testing.T) {
	tests := []struct {
		platform string
		maxChars int
	}{
		{"twitter", 280},
		{"linkedin", 3000},
		{"facebook", 63206},
	}
	for _, tt := range tests {
		t.Run(tt.platform, func(t *testing.T) {
			p, err := New(tt.platform, platformConfig(""), "http://localhost/cb")
			require.NoError(t, err)
			c := p.Constraints()
			assert.Equal(t, tt.maxChars, c.MaxChars)
			assert.True(t, c.SupportsImages)
		})
	}
}

func TestTwitterPublishTextOnly(t *testing.T) {
	var gotBody tweetRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/2/tweets", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"1790000000000000000"}}`))
	}))
	defer server.Close()

	p, err := New("twitter", platformConfig(server.URL), "http://localhost/cb")
	require.NoError(t, err)

	result, err := p.Publish(context.Background(), server.Client(), Post{Content: "Hello world"})
	require.NoError(t, err)
	assert.Equal(t, "1790000000000000000", result.ID)
	assert.Equal(t, "Hello world", gotBody.Text)
	assert.Nil(t, gotBody.Media, "no media block when no image attached")
}

func TestTwitterPublishWithImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/1.1/media/upload.json":
			require.NoError(t, r.ParseForm())
			assert.NotEmpty(t, r.Form.Get("media_data"))
			_, _ = w.Write([]byte(`{"media_id_string":"media-42"}`))
		case "/2/tweets":
			var body tweetRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.NotNil(t, body.Media)
			assert.Equal(t, []string{"media-42"}, body.Media.MediaIDs)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"data":{"id":"tw-1"}}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	p, err := New("twitter", platformConfig(server.URL), "http://localhost/cb")
	require.NoError(t, err)

	result, err := p.Publish(context.Background(), server.Client(), Post{
		Content:   "with image",
		ImageData: []byte{0xFF, 0xD8, 0xFF},
		ImageMIME: "image/jpeg",
	})
	require.NoError(t, err)
	assert.Equal(t, "tw-1", result.ID)
}

func TestFacebookPublishFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/me/feed", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "Hello fb", r.Form.Get("message"))
		_, _ = w.Write([]byte(`{"id":"123_456"}`))
	}))
	defer server.Close()

	p, err := New("facebook", platformConfig(server.URL), "http://localhost/cb")
	require.NoError(t, err)

	result, err := p.Publish(context.Background(), server.Client(), Post{Content: "Hello fb"})
	require.NoError(t, err)
	assert.Equal(t, "123_456", result.ID)
}

func TestFacebookPublishPhotoMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/me/photos", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "caption text", r.FormValue("caption"))
		_, _, err := r.FormFile("source")
		assert.NoError(t, err)
		_, _ = w.Write([]byte(`{"id":"789","post_id":"123_789"}`))
	}))
	defer server.Close()

	p, err := New("facebook", platformConfig(server.URL), "http://localhost/cb")
	require.NoError(t, err)

	result, err := p.Publish(context.Background(), server.Client(), Post{
		Content:   "caption text",
		ImageData: []byte{0x89, 0x50, 0x4E, 0x47},
		ImageMIME: "image/png",
	})
	require.NoError(t, err)
	assert.Equal(t, "123_789", result.ID)
}

func TestLinkedInProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/userinfo", r.URL.Path)
		_, _ = w.Write([]byte(`{"sub":"abc123","name":"Jess Doe"}`))
	}))
	defer server.Close()

	p, err := New("linkedin", platformConfig(server.URL), "http://localhost/cb")
	require.NoError(t, err)

	profile, err := p.Profile(context.Background(), server.Client())
	require.NoError(t, err)
	assert.Equal(t, "abc123", profile.ID)
	assert.Equal(t, "Jess Doe", profile.Handle)
}

func TestAPIErrorExtractsDetail(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"graph style", `{"error":{"message":"Invalid OAuth access token"}}`, "Invalid OAuth access token"},
		{"message field", `{"message":"Rate limited"}`, "Rate limited"},
		{"detail field", `{"detail":"Not authorized"}`, "Not authorized"},
		{"plain text", `gateway exploded`, "gateway exploded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			resp, err := http.Get(server.URL)
			require.NoError(t, err)
			defer resp.Body.Close()

			err = apiError("testplatform", resp)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "status 403")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
