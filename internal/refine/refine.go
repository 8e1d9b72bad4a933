// Package refine calls an OpenAI-compatible chat completions endpoint to
// polish post content before publishing.
package refine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/postboard/social-front/internal/config"
	"github.com/postboard/social-front/internal/log"
)

// ErrNotConfigured is returned when no refine backend is configured
var ErrNotConfigured = errors.New("content refinement is not configured")

const requestTimeout = 60 * time.Second

// Request is one refinement ask: the draft content plus optional steering
type Request struct {
	OriginalContent      string `json:"original_content"`
	Instructions         string `json:"refinement_instructions,omitempty"`
	Tone                 string `json:"tone,omitempty"`
	Platform             string `json:"platform,omitempty"`
	GenerateAlternatives bool   `json:"generate_alternatives,omitempty"`
}

// Result carries the refined draft plus the model's improvement notes
type Result struct {
	Success        bool              `json:"success"`
	RefinedContent string            `json:"refined_content"`
	Suggestions    []string          `json:"suggestions,omitempty"`
	Alternatives   []string          `json:"alternatives,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Refiner turns draft content into platform-ready copy
type Refiner struct {
	apiURL string
	apiKey string
	model  string
	client *http.Client
}

// New builds a Refiner from config, or returns nil when refine is disabled
func New(cfg *config.RefineConfig) *Refiner {
	if cfg == nil {
		return nil
	}
	apiKey := ""
	if cfg.APIKey.IsSet() {
		apiKey = cfg.APIKey.String()
	}
	return &Refiner{
		apiURL: strings.TrimSuffix(cfg.APIURL, "/"),
		apiKey: apiKey,
		model:  cfg.Model,
		client: &http.Client{Timeout: requestTimeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

const systemPrompt = `You are a social media copy editor. Rewrite the user's draft to be clearer and more engaging while preserving its meaning and voice. Respond with a JSON object with fields: "refined_content" (string), "suggestions" (array of short improvement notes), "alternatives" (array of alternate versions).`

// Refine sends the draft to the model and parses its structured reply.
// A refiner that is nil or unconfigured returns ErrNotConfigured.
func (r *Refiner) Refine(ctx context.Context, req Request) (*Result, error) {
	if r == nil {
		return nil, ErrNotConfigured
	}

	userPrompt := "Draft:\n" + req.OriginalContent
	if req.Instructions != "" {
		userPrompt += "\n\nInstructions: " + req.Instructions
	}
	if req.Platform != "" {
		userPrompt += "\nTarget platform: " + req.Platform
	}
	if req.Tone != "" {
		userPrompt += "\nDesired tone: " + req.Tone
	}
	if req.GenerateAlternatives {
		userPrompt += "\nProvide 2 alternate versions in \"alternatives\"."
	} else {
		userPrompt += "\nLeave \"alternatives\" empty."
	}

	body, err := json.Marshal(chatRequest{
		Model: r.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling refine request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.apiURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling refine backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("refine backend status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var completion chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("decoding refine response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("refine backend returned no choices")
	}

	result := parseModelReply(completion.Choices[0].Message.Content, req.OriginalContent)
	result.Success = true
	result.Metadata = map[string]string{"model": r.model}
	return result, nil
}

// parseModelReply extracts the structured result from the model's reply,
// falling back to treating the whole reply as the refined content when it
// is not the JSON shape we asked for
func parseModelReply(reply, original string) *Result {
	var parsed Result
	if err := json.Unmarshal([]byte(reply), &parsed); err == nil && parsed.RefinedContent != "" {
		return &parsed
	}

	log.LogDebug("Refine backend reply was not structured JSON, using raw text")
	refined := strings.TrimSpace(reply)
	if refined == "" {
		refined = original
	}
	return &Result{RefinedContent: refined}
}
