package client

import (
	"context"
	"encoding/base64"
	"net/http"
	"time"
)

// PlatformClient scopes Client operations to one platform
type PlatformClient struct {
	client   *Client
	platform string
}

// Platform returns a client scoped to the named platform
func (c *Client) Platform(name string) *PlatformClient {
	return &PlatformClient{client: c, platform: name}
}

// AuthInitiation is the server's response to a connect initiation
type AuthInitiation struct {
	AuthURL  string `json:"auth_url"`
	Platform string `json:"platform"`
}

// Authenticate starts a connect flow and returns the provider authorization
// URL exactly as the server issued it, for opening in a popup
func (p *PlatformClient) Authenticate(ctx context.Context) (*AuthInitiation, error) {
	resp, err := p.client.doJSON(ctx, http.MethodPost, "/api/integrations/"+p.platform+"/auth", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &AuthInitiationError{Platform: p.platform, apiFailure: parseFailure(resp)}
	}

	var initiation AuthInitiation
	if err := decodeResponse(resp, &initiation); err != nil {
		return nil, err
	}
	return &initiation, nil
}

// PlatformStatus is the connection state of one platform
type PlatformStatus struct {
	Platform    string     `json:"platform"`
	Connected   bool       `json:"connected"`
	Username    string     `json:"username,omitempty"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
}

// Status reports the platform connection state. A non-2xx response degrades
// to disconnected rather than erroring; only transport failures and a
// missing session surface as errors.
func (p *PlatformClient) Status(ctx context.Context) (*PlatformStatus, error) {
	resp, err := p.client.doJSON(ctx, http.MethodGet, "/api/integrations/"+p.platform+"/status", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &PlatformStatus{Platform: p.platform, Connected: false}, nil
	}

	var status PlatformStatus
	if err := decodeResponse(resp, &status); err != nil {
		return &PlatformStatus{Platform: p.platform, Connected: false}, nil
	}
	return &status, nil
}

// Disconnect removes the platform connection. Disconnecting an unconnected
// platform succeeds.
func (p *PlatformClient) Disconnect(ctx context.Context) error {
	resp, err := p.client.doJSON(ctx, http.MethodDelete, "/api/integrations/"+p.platform+"/disconnect", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &DisconnectError{Platform: p.platform, apiFailure: parseFailure(resp)}
	}
	return nil
}

// PostInput is one post: text plus an optional inline image
type PostInput struct {
	Content   string
	ImageData []byte
	ImageMIME string
}

// postPayload is the wire shape; image fields are omitted, not sent empty,
// when no image is attached
type postPayload struct {
	Content       string `json:"content"`
	UserID        string `json:"user_id"`
	ImageData     string `json:"image_data,omitempty"`
	ImageMimeType string `json:"image_mime_type,omitempty"`
}

// PostAck is the server's acknowledgment of a published post
type PostAck struct {
	Success  bool   `json:"success"`
	Platform string `json:"platform"`
	PostID   string `json:"post_id"`
	URL      string `json:"url,omitempty"`
}

// Post publishes content to the platform
func (p *PlatformClient) Post(ctx context.Context, input PostInput) (*PostAck, error) {
	payload := postPayload{Content: input.Content}
	if p.client.session != nil {
		payload.UserID = p.client.session.UserID()
	}
	if len(input.ImageData) > 0 {
		payload.ImageData = base64.StdEncoding.EncodeToString(input.ImageData)
		payload.ImageMimeType = input.ImageMIME
	}

	resp, err := p.client.doJSON(ctx, http.MethodPost, "/api/integrations/"+p.platform+"/post", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &PostError{Platform: p.platform, apiFailure: parseFailure(resp)}
	}

	var ack PostAck
	if err := decodeResponse(resp, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}
