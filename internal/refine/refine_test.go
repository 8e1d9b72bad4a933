package refine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postboard/social-front/internal/config"
)

func fakeBackend(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)

		resp := chatResponse{}
		resp.Choices = append(resp.Choices, struct {
			Message chatMessage `json:"message"`
		}{Message: chatMessage{Role: "assistant", Content: reply}})
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func testRefiner(url string) *Refiner {
	return New(&config.RefineConfig{
		APIURL: url,
		APIKey: config.NewConfigValue("test-key"),
		Model:  "test-model",
	})
}

func TestRefineStructuredReply(t *testing.T) {
	server := fakeBackend(t, `{"refined_content":"Polished text","suggestions":["shorter opener"],"alternatives":["Alt one"]}`)
	defer server.Close()

	result, err := testRefiner(server.URL).Refine(context.Background(), Request{
		OriginalContent:      "rough draft",
		Platform:             "twitter",
		Tone:                 "casual",
		GenerateAlternatives: true,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "Polished text", result.RefinedContent)
	assert.Equal(t, []string{"shorter opener"}, result.Suggestions)
	assert.Equal(t, []string{"Alt one"}, result.Alternatives)
	assert.Equal(t, "test-model", result.Metadata["model"])
}

func TestRefinePromptCarriesSteering(t *testing.T) {
	var userPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		userPrompt = req.Messages[1].Content

		resp := chatResponse{}
		resp.Choices = append(resp.Choices, struct {
			Message chatMessage `json:"message"`
		}{Message: chatMessage{Role: "assistant", Content: `{"refined_content":"ok"}`}})
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	_, err := testRefiner(server.URL).Refine(context.Background(), Request{
		OriginalContent:      "rough draft",
		Instructions:         "lead with the result",
		Tone:                 "casual",
		GenerateAlternatives: true,
	})
	require.NoError(t, err)
	assert.Contains(t, userPrompt, "rough draft")
	assert.Contains(t, userPrompt, "lead with the result")
	assert.Contains(t, userPrompt, "casual")
	assert.Contains(t, userPrompt, "alternate versions")

	_, err = testRefiner(server.URL).Refine(context.Background(), Request{OriginalContent: "rough draft"})
	require.NoError(t, err)
	assert.NotContains(t, userPrompt, "alternate versions")
}

func TestRefineUnstructuredReplyFallsBackToRawText(t *testing.T) {
	server := fakeBackend(t, "Just a plain rewrite, no JSON.")
	defer server.Close()

	result, err := testRefiner(server.URL).Refine(context.Background(), Request{OriginalContent: "draft"})
	require.NoError(t, err)
	assert.Equal(t, "Just a plain rewrite, no JSON.", result.RefinedContent)
	assert.Empty(t, result.Suggestions)
}

func TestRefineBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`rate limited`))
	}))
	defer server.Close()

	_, err := testRefiner(server.URL).Refine(context.Background(), Request{OriginalContent: "draft"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestRefineNotConfigured(t *testing.T) {
	var r *Refiner
	_, err := r.Refine(context.Background(), Request{OriginalContent: "draft"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	assert.Nil(t, New(nil))
}
