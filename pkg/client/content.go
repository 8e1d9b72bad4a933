package client

import (
	"context"
	"encoding/base64"
	"net/http"
)

// RefineInput is a content refinement request
type RefineInput struct {
	OriginalContent      string `json:"original_content"`
	Instructions         string `json:"refinement_instructions,omitempty"`
	Tone                 string `json:"tone,omitempty"`
	Platform             string `json:"platform,omitempty"`
	GenerateAlternatives bool   `json:"generate_alternatives,omitempty"`
}

// RefineResult is the refined draft plus the model's improvement notes
type RefineResult struct {
	Success        bool              `json:"success"`
	RefinedContent string            `json:"refined_content"`
	Suggestions    []string          `json:"suggestions,omitempty"`
	Alternatives   []string          `json:"alternatives,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Refine asks the service to polish draft content
func (c *Client) Refine(ctx context.Context, input RefineInput) (*RefineResult, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/api/integrations/content/refine", input)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &RefineError{apiFailure: parseFailure(resp)}
	}

	var result RefineResult
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PreviewInput asks how one draft renders under each platform's constraints
type PreviewInput struct {
	Content   string
	Platforms []string
	ImageData []byte
	ImageMIME string
}

// previewPayload is the wire shape; image fields are omitted, not sent
// empty, when no image is attached
type previewPayload struct {
	Content       string   `json:"content"`
	Platforms     []string `json:"platforms"`
	ImageData     string   `json:"image_data,omitempty"`
	ImageMimeType string   `json:"image_mime_type,omitempty"`
}

// PlatformPreview describes the draft against one platform's limits
type PlatformPreview struct {
	Platform    string `json:"platform"`
	TextContent string `json:"textContent"`
	HasImage    bool   `json:"hasImage"`
	Warning     string `json:"warning,omitempty"`
	CanPost     bool   `json:"canPost"`
}

// Preview checks content against each platform's constraints without
// posting, returning one preview entry per requested platform
func (c *Client) Preview(ctx context.Context, input PreviewInput) ([]PlatformPreview, error) {
	payload := previewPayload{Content: input.Content, Platforms: input.Platforms}
	if len(input.ImageData) > 0 {
		payload.ImageData = base64.StdEncoding.EncodeToString(input.ImageData)
		payload.ImageMimeType = input.ImageMIME
	}

	resp, err := c.doJSON(ctx, http.MethodPost, "/api/integrations/preview", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &PreviewError{apiFailure: parseFailure(resp)}
	}

	var result struct {
		Success  bool              `json:"success"`
		Previews []PlatformPreview `json:"previews"`
	}
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return result.Previews, nil
}
