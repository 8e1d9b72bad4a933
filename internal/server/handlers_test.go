package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postboard/social-front/internal/config"
	"github.com/postboard/social-front/internal/oauth"
	"github.com/postboard/social-front/internal/providers"
	"github.com/postboard/social-front/internal/storage"
)

var testEncryptionKey = []byte("0123456789abcdef0123456789abcdef")

// testEnv wires a full mux over memory storage and fake provider endpoints
type testEnv struct {
	mux      *http.ServeMux
	store    *storage.MemoryStorage
	provider *httptest.Server
}

// newTestEnv stands up a fake provider server that handles the token
// exchange and the LinkedIn-shaped profile endpoint
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"provider-token","token_type":"Bearer","expires_in":3600}`))
		case "/v2/userinfo":
			_, _ = w.Write([]byte(`{"sub":"li-user-9","name":"Test User"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(provider.Close)

	platformCfg := config.PlatformConfig{
		ClientID:     config.NewConfigValue("client-id"),
		ClientSecret: config.NewConfigValue("client-secret"),
		AuthURL:      provider.URL + "/authorize",
		TokenURL:     provider.URL + "/token",
		APIURL:       provider.URL,
	}

	provs := make(map[string]providers.Provider)
	for _, name := range []string{"linkedin", "twitter"} {
		p, err := providers.New(name, platformCfg, "http://localhost/api/integrations/"+name+"/callback")
		require.NoError(t, err)
		provs[name] = p
	}

	store := storage.NewMemoryStorage()
	svc := oauth.NewService(store, provs, testEncryptionKey)
	h := &handlers{oauth: svc, refiner: nil}

	return &testEnv{
		mux:      newMux(h, testJWTSecret, nil),
		store:    store,
		provider: provider,
	}
}

func (env *testEnv) do(t *testing.T, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, "user-1"))
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAuthReturnsAuthorizationURL(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/integrations/linkedin/auth", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t, "linkedin", body["platform"])

	authURL, err := url.Parse(body["auth_url"].(string))
	require.NoError(t, err)
	assert.Equal(t, "/authorize", authURL.Path)
	assert.NotEmpty(t, authURL.Query().Get("state"))
	assert.Contains(t, authURL.Query().Get("state"), ".")
}

func TestAuthUnknownPlatform(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/integrations/myspace/auth", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decodeJSON(t, rec)["detail"], "myspace")
}

func TestAuthRequiresBearer(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/integrations/linkedin/auth", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConnectFlowEndToEnd(t *testing.T) {
	env := newTestEnv(t)

	// Initiate and pull the state parameter out of the authorization URL
	rec := env.do(t, http.MethodPost, "/api/integrations/linkedin/auth", "")
	require.Equal(t, http.StatusOK, rec.Code)
	authURL, err := url.Parse(decodeJSON(t, rec)["auth_url"].(string))
	require.NoError(t, err)
	state := authURL.Query().Get("state")
	require.NotEmpty(t, state)

	// Provider redirects back with code and state
	callback := "/api/integrations/linkedin/callback?code=auth-code&state=" + url.QueryEscape(state)
	req := httptest.NewRequest(http.MethodGet, callback, nil)
	cbRec := httptest.NewRecorder()
	env.mux.ServeHTTP(cbRec, req)

	require.Equal(t, http.StatusFound, cbRec.Code)
	location, err := url.Parse(cbRec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/integrations/callback", location.Path)
	assert.Equal(t, "success", location.Query().Get("status"))
	assert.Equal(t, "linkedin", location.Query().Get("platform"))

	// Status now reports connected with the provider identity
	statusRec := env.do(t, http.MethodGet, "/api/integrations/linkedin/status", "")
	require.Equal(t, http.StatusOK, statusRec.Code)
	status := decodeJSON(t, statusRec)
	assert.Equal(t, true, status["connected"])
	assert.Equal(t, "li-user-9", status["username"])

	// Replaying the same state lands on the unknown-state recovery page
	replayRec := httptest.NewRecorder()
	env.mux.ServeHTTP(replayRec, httptest.NewRequest(http.MethodGet, callback, nil))
	require.Equal(t, http.StatusFound, replayRec.Code)
	replayLoc, err := url.Parse(replayRec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "unknown", replayLoc.Query().Get("status"))
}

func TestCallbackProviderDenied(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/integrations/linkedin/callback?error=access_denied&error_description=User+denied", nil)
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "error", location.Query().Get("status"))
	assert.Equal(t, "User denied", location.Query().Get("message"))
}

func TestCallbackTamperedState(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/integrations/linkedin/auth", "")
	authURL, err := url.Parse(decodeJSON(t, rec)["auth_url"].(string))
	require.NoError(t, err)
	state := authURL.Query().Get("state")

	// Flip the signature half
	nonce, _, ok := strings.Cut(state, ".")
	require.True(t, ok)
	tampered := nonce + ".AAAA"

	req := httptest.NewRequest(http.MethodGet, "/api/integrations/linkedin/callback?code=c&state="+url.QueryEscape(tampered), nil)
	cbRec := httptest.NewRecorder()
	env.mux.ServeHTTP(cbRec, req)

	require.Equal(t, http.StatusFound, cbRec.Code)
	location, err := url.Parse(cbRec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "error", location.Query().Get("status"))
}

func TestStatusDisconnected(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/integrations/twitter/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, false, body["connected"])
	assert.NotContains(t, body, "username")
}

func TestDisconnectIsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodDelete, "/api/integrations/linkedin/disconnect", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeJSON(t, rec)["success"])
}

func TestPostNotConnected(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/integrations/linkedin/post", `{"content":"hello"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "not_connected", decodeJSON(t, rec)["error"])
}

func TestPostContentTooLong(t *testing.T) {
	env := newTestEnv(t)

	long := strings.Repeat("x", 281)
	rec := env.do(t, http.MethodPost, "/api/integrations/twitter/post", `{"content":"`+long+`"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "content_too_long", decodeJSON(t, rec)["error"])
}

func TestPostMissingContent(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/integrations/linkedin/post", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostUserMismatchRejected(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/integrations/linkedin/post", `{"content":"hello","user_id":"someone-else"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "user_mismatch", decodeJSON(t, rec)["error"])
}

func TestPostAcceptsMatchingUserID(t *testing.T) {
	env := newTestEnv(t)

	// user_id matching the token holder passes validation; the platform is
	// not connected, so the request fails later with that error instead
	rec := env.do(t, http.MethodPost, "/api/integrations/linkedin/post", `{"content":"hello","user_id":"user-1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "not_connected", decodeJSON(t, rec)["error"])
}

func previewEntries(t *testing.T, rec *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	body := decodeJSON(t, rec)
	require.Equal(t, true, body["success"])
	raw, ok := body["previews"].([]any)
	require.True(t, ok)
	entries := make([]map[string]any, 0, len(raw))
	for _, e := range raw {
		entries = append(entries, e.(map[string]any))
	}
	return entries
}

func TestPreview(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/integrations/preview", `{"content":"short post","platforms":["twitter","linkedin"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	entries := previewEntries(t, rec)
	require.Len(t, entries, 2)
	assert.Equal(t, "twitter", entries[0]["platform"])
	assert.Equal(t, "short post", entries[0]["textContent"])
	assert.Equal(t, false, entries[0]["hasImage"])
	assert.Equal(t, true, entries[0]["canPost"])
	assert.NotContains(t, entries[0], "warning")
	assert.Equal(t, "linkedin", entries[1]["platform"])
	assert.Equal(t, true, entries[1]["canPost"])
}

func TestPreviewOverLimit(t *testing.T) {
	env := newTestEnv(t)

	long := strings.Repeat("y", 300)
	rec := env.do(t, http.MethodPost, "/api/integrations/preview", `{"content":"`+long+`","platforms":["twitter","linkedin"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	entries := previewEntries(t, rec)
	require.Len(t, entries, 2)

	// Over twitter's limit: truncated, flagged, not postable
	assert.Equal(t, false, entries[0]["canPost"])
	assert.Contains(t, entries[0]["warning"], "280")
	assert.Len(t, entries[0]["textContent"], 280)

	// Well within linkedin's limit
	assert.Equal(t, true, entries[1]["canPost"])
	assert.NotContains(t, entries[1], "warning")
}

func TestPreviewWithImage(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/integrations/preview", `{"content":"pic","platforms":["twitter"],"image_data":"aGk=","image_mime_type":"image/png"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	entries := previewEntries(t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, true, entries[0]["hasImage"])
	assert.Equal(t, true, entries[0]["canPost"])
}

func TestPreviewUnknownPlatformEntry(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/integrations/preview", `{"content":"hi","platforms":["myspace"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	entries := previewEntries(t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, false, entries[0]["canPost"])
	assert.Contains(t, entries[0]["warning"], "unknown platform")
}

func TestPreviewMissingPlatforms(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/integrations/preview", `{"content":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefineNotConfigured(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/integrations/content/refine", `{"original_content":"draft"}`)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestRefineMissingContent(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/integrations/content/refine", `{"refinement_instructions":"shorter"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCallbackPage(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		query    string
		contains []string
	}{
		{
			name:     "success closes itself",
			query:    "status=success&platform=linkedin",
			contains: []string{"LinkedIn connected", "postboard-oauth", "OAUTH_SUCCESS", "setTimeout"},
		},
		{
			name:     "error stays open with message",
			query:    "status=error&platform=twitter&message=Token+exchange+failed",
			contains: []string{"Connection failed", "Token exchange failed", "OAUTH_ERROR"},
		},
		{
			name:     "unknown state offers recovery",
			query:    "status=unknown&platform=linkedin",
			contains: []string{"Almost there", "signalAndClose"},
		},
		{
			name:     "missing status falls back to recovery",
			query:    "",
			contains: []string{"Almost there", "signalAndClose"},
		},
		{
			name:     "mangled status falls back to recovery",
			query:    "status=nonsense&platform=twitter",
			contains: []string{"Almost there"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/integrations/callback"
			if tt.query != "" {
				target += "?" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			rec := httptest.NewRecorder()
			env.mux.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
			html := rec.Body.String()
			for _, want := range tt.contains {
				assert.Contains(t, html, want)
			}
		})
	}
}

func TestStatusExpiredTokenWithoutRefreshReportsDisconnected(t *testing.T) {
	env := newTestEnv(t)

	grant := &storage.SocialGrant{
		UserID:         "user-1",
		Platform:       "linkedin",
		PlatformUserID: "li-user-9",
		AccessToken:    "stale",
		Expiry:         time.Now().Add(-time.Hour),
		ConnectedAt:    time.Now().Add(-48 * time.Hour),
	}
	require.NoError(t, env.store.UpsertGrant(context.Background(), grant))

	rec := env.do(t, http.MethodGet, "/api/integrations/linkedin/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeJSON(t, rec)["connected"])
}
