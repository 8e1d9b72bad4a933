// Package client is the Go SDK for the social-front service. It mirrors the
// HTTP API: per-platform connect, status, disconnect, and post operations,
// plus the stateless content actions and a concurrent status aggregator.
package client

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultTimeout bounds every SDK request unless overridden
const DefaultTimeout = 15 * time.Second

// Session supplies the caller's identity for request headers. Operations
// requiring one fail with ErrAuthenticationRequired before any network I/O
// when the session is nil or empty.
type Session interface {
	UserID() string
	Token() string
}

// StaticSession is a Session backed by fixed values
type StaticSession struct {
	User        string
	AccessToken string
}

func (s *StaticSession) UserID() string { return s.User }
func (s *StaticSession) Token() string  { return s.AccessToken }

// Client talks to one social-front deployment on behalf of one session
type Client struct {
	baseURL    string
	session    Session
	httpClient *http.Client
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout overrides the default request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New builds a Client for the service at baseURL. The session may be nil;
// operations that need one will fail locally.
func New(baseURL string, session Session, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		session:    session,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// hasSession reports whether the client can authenticate requests
func (c *Client) hasSession() bool {
	return c.session != nil && c.session.Token() != "" && c.session.UserID() != ""
}

// correlationID builds a fresh per-operation id: millisecond timestamp plus
// a short random suffix
func correlationID() string {
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), hex.EncodeToString(suffix))
}

// headers builds the authenticated header set for one request. Fails before
// any I/O when the client has no usable session.
func (c *Client) headers() (http.Header, error) {
	if !c.hasSession() {
		return nil, ErrAuthenticationRequired
	}
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Authorization", "Bearer "+c.session.Token())
	h.Set("X-User-ID", c.session.UserID())
	h.Set("X-Correlation-ID", correlationID())
	return h, nil
}

// doJSON issues an authenticated request with an optional JSON body and
// returns the response for the caller to interpret
func (c *Client) doJSON(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	headers, err := c.headers()
	if err != nil {
		return nil, err
	}

	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header = headers

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// decodeResponse decodes a 2xx JSON body into v
func decodeResponse(resp *http.Response, v any) error {
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
