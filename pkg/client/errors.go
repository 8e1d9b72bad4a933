package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrAuthenticationRequired is returned before any network I/O when an
// operation needs a session the client does not have
var ErrAuthenticationRequired = errors.New("authentication required")

// apiFailure is the decoded server error contract: {"error": code,
// "detail": human-readable}. When the body is not that shape the detail is
// synthesized from the HTTP status and raw text.
type apiFailure struct {
	StatusCode int
	Code       string
	Detail     string
}

func (f apiFailure) message() string {
	if f.Detail != "" {
		return f.Detail
	}
	if f.Code != "" {
		return f.Code
	}
	return fmt.Sprintf("status %d", f.StatusCode)
}

// parseFailure reads a non-2xx response into an apiFailure, preferring the
// server's detail field, then its error code, then the raw body text
func parseFailure(resp *http.Response) apiFailure {
	failure := apiFailure{StatusCode: resp.StatusCode}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var parsed struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && (parsed.Error != "" || parsed.Detail != "") {
		failure.Code = parsed.Error
		failure.Detail = parsed.Detail
		return failure
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		failure.Detail = fmt.Sprintf("status %d: %s", resp.StatusCode, text)
	}
	return failure
}

// AuthInitiationError reports a failed connect initiation
type AuthInitiationError struct {
	Platform string
	apiFailure
}

func (e *AuthInitiationError) Error() string {
	return fmt.Sprintf("initiating %s authentication: %s", e.Platform, e.message())
}

// DisconnectError reports a failed disconnect
type DisconnectError struct {
	Platform string
	apiFailure
}

func (e *DisconnectError) Error() string {
	return fmt.Sprintf("disconnecting %s: %s", e.Platform, e.message())
}

// PostError reports a failed post
type PostError struct {
	Platform string
	apiFailure
}

func (e *PostError) Error() string {
	return fmt.Sprintf("posting to %s: %s", e.Platform, e.message())
}

// RefineError reports a failed content refinement
type RefineError struct {
	apiFailure
}

func (e *RefineError) Error() string {
	return "refining content: " + e.message()
}

// PreviewError reports a failed preview
type PreviewError struct {
	apiFailure
}

func (e *PreviewError) Error() string {
	return "previewing content: " + e.message()
}
