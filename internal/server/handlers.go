package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/postboard/social-front/internal/log"
	"github.com/postboard/social-front/internal/oauth"
	"github.com/postboard/social-front/internal/refine"
	"github.com/postboard/social-front/internal/storage"

	jsonwriter "github.com/postboard/social-front/internal/json"
)

// handlers holds the services behind the HTTP API
type handlers struct {
	oauth   *oauth.Service
	refiner *refine.Refiner
}

// writeServiceError maps service-level errors onto the HTTP error contract
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, oauth.ErrUnknownPlatform):
		jsonwriter.WriteNotFound(w, err.Error())
	case errors.Is(err, oauth.ErrNotConnected):
		jsonwriter.WriteError(w, http.StatusBadRequest, "not_connected", "platform is not connected")
	case errors.Is(err, oauth.ErrContentTooLong):
		jsonwriter.WriteError(w, http.StatusUnprocessableEntity, "content_too_long", err.Error())
	case errors.Is(err, refine.ErrNotConfigured):
		jsonwriter.WriteError(w, http.StatusNotImplemented, "refine_unavailable", err.Error())
	default:
		jsonwriter.WriteBadGateway(w, err.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonwriter.WriteBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}

// handleAuth starts a connect flow and returns the provider authorization URL
// for the client to open in a popup
func (h *handlers) handleAuth(w http.ResponseWriter, r *http.Request) {
	platform := r.PathValue("platform")
	userID := UserID(r.Context())

	authURL, err := h.oauth.Authorize(r.Context(), userID, platform)
	if err != nil {
		if errors.Is(err, oauth.ErrUnknownPlatform) {
			jsonwriter.WriteNotFound(w, err.Error())
			return
		}
		log.LogErrorWithFields("api", "Failed to initiate connect flow", map[string]interface{}{
			"platform": platform,
			"error":    err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, "failed to initiate authentication")
		return
	}

	_ = jsonwriter.Write(w, map[string]string{
		"auth_url": authURL,
		"platform": platform,
	})
}

func (h *handlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	platform := r.PathValue("platform")
	userID := UserID(r.Context())

	status, err := h.oauth.Status(r.Context(), userID, platform)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = jsonwriter.Write(w, status)
}

func (h *handlers) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	platform := r.PathValue("platform")
	userID := UserID(r.Context())

	if err := h.oauth.Disconnect(r.Context(), userID, platform); err != nil {
		writeServiceError(w, err)
		return
	}
	_ = jsonwriter.Write(w, map[string]any{
		"success":  true,
		"platform": platform,
	})
}

type postRequest struct {
	Content       string `json:"content"`
	UserID        string `json:"user_id,omitempty"`
	ImageData     string `json:"image_data,omitempty"`
	ImageMimeType string `json:"image_mime_type,omitempty"`
}

func (h *handlers) handlePost(w http.ResponseWriter, r *http.Request) {
	platform := r.PathValue("platform")
	userID := UserID(r.Context())

	var req postRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Content == "" {
		jsonwriter.WriteBadRequest(w, "content is required")
		return
	}
	// The body's user_id must name the same user the bearer token verified
	if req.UserID != "" && req.UserID != userID {
		jsonwriter.WriteError(w, http.StatusForbidden, "user_mismatch", "user_id does not match the authenticated user")
		return
	}

	result, err := h.oauth.Publish(r.Context(), userID, platform, oauth.PostRequest{
		Content:     req.Content,
		ImageBase64: req.ImageData,
		ImageMIME:   req.ImageMimeType,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	postsPublishedTotal.WithLabelValues(platform, "success").Inc()
	_ = jsonwriter.Write(w, map[string]any{
		"success":  true,
		"platform": platform,
		"post_id":  result.ID,
		"url":      result.URL,
	})
}

func (h *handlers) handleRefine(w http.ResponseWriter, r *http.Request) {
	var req refine.Request
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OriginalContent == "" {
		jsonwriter.WriteBadRequest(w, "original_content is required")
		return
	}

	result, err := h.refiner.Refine(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = jsonwriter.Write(w, result)
}

type previewRequest struct {
	Content       string   `json:"content"`
	Platforms     []string `json:"platforms"`
	ImageData     string   `json:"image_data,omitempty"`
	ImageMimeType string   `json:"image_mime_type,omitempty"`
}

type platformPreview struct {
	Platform    string `json:"platform"`
	TextContent string `json:"textContent"`
	HasImage    bool   `json:"hasImage"`
	Warning     string `json:"warning,omitempty"`
	CanPost     bool   `json:"canPost"`
}

// handlePreview renders the same draft against each requested platform's
// constraints so the client can show per-platform differences before posting
func (h *handlers) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Platforms) == 0 {
		jsonwriter.WriteBadRequest(w, "platforms is required")
		return
	}

	hasImage := req.ImageData != ""
	previews := make([]platformPreview, 0, len(req.Platforms))
	for _, platform := range req.Platforms {
		constraints, err := h.oauth.Constraints(platform)
		if err != nil {
			previews = append(previews, platformPreview{
				Platform: platform,
				Warning:  "unknown platform",
			})
			continue
		}

		entry := platformPreview{
			Platform:    platform,
			TextContent: req.Content,
			HasImage:    hasImage && constraints.SupportsImages,
			CanPost:     true,
		}
		if count := len([]rune(req.Content)); constraints.MaxChars > 0 && count > constraints.MaxChars {
			entry.TextContent = string([]rune(req.Content)[:constraints.MaxChars])
			entry.Warning = fmt.Sprintf("content exceeds the %d character limit by %d", constraints.MaxChars, count-constraints.MaxChars)
			entry.CanPost = false
		} else if hasImage && !constraints.SupportsImages {
			entry.Warning = "images are not supported on this platform"
		}
		previews = append(previews, entry)
	}

	_ = jsonwriter.Write(w, map[string]any{
		"success":  true,
		"previews": previews,
	})
}

// handleProviderCallback receives the provider redirect, completes the
// connect flow, and forwards the browser to the completion page. No bearer
// auth here: the provider calls this URL, and the one-time signed state is
// what ties the request back to the initiating user.
func (h *handlers) handleProviderCallback(w http.ResponseWriter, r *http.Request) {
	platform := r.PathValue("platform")
	query := r.URL.Query()

	redirect := func(status, message string) {
		params := url.Values{
			"status":   {status},
			"platform": {platform},
		}
		if message != "" {
			params.Set("message", message)
		}
		http.Redirect(w, r, "/integrations/callback?"+params.Encode(), http.StatusFound)
	}

	if errParam := query.Get("error"); errParam != "" {
		desc := query.Get("error_description")
		if desc == "" {
			desc = errParam
		}
		oauthFlowsTotal.WithLabelValues(platform, "denied").Inc()
		redirect("error", desc)
		return
	}

	state := query.Get("state")
	code := query.Get("code")
	if state == "" || code == "" {
		redirect("error", "missing state or code parameter")
		return
	}

	_, err := h.oauth.CompleteCallback(r.Context(), platform, state, code)
	switch {
	case err == nil:
		oauthFlowsTotal.WithLabelValues(platform, "success").Inc()
		redirect("success", "")
	case errors.Is(err, storage.ErrStateNotFound):
		// Expired or already-consumed state. The completion page offers a
		// recovery path since the first consumption may well have succeeded.
		oauthFlowsTotal.WithLabelValues(platform, "unknown_state").Inc()
		redirect("unknown", "")
	default:
		log.LogErrorWithFields("oauth", "Connect callback failed", map[string]interface{}{
			"platform": platform,
			"error":    err.Error(),
		})
		oauthFlowsTotal.WithLabelValues(platform, "error").Inc()
		redirect("error", "Failed to complete authentication")
	}
}
