// Package backend is the thin HTTP/WebSocket client for the hosted
// real-time backend: the pull query endpoint, the mutation endpoint, and
// the upload capability probe. The push subscription lives in
// internal/reactive; this package only supplies the dial helper for it.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"

	"feedwire/pkg/feed"
)

const (
	defaultTimeout   = 30 * time.Second
	maxResponseBytes = 10 << 20 // prevent unbounded reads from API responses
)

// ClientConfig configures the backend client.
type ClientConfig struct {
	// BaseURL is the HTTP root of the backend API, without trailing slash.
	BaseURL string

	// WSURL is the WebSocket endpoint for the reactive subscription.
	WSURL string

	// Token is an optional bearer token attached to every request.
	Token string

	// Timeout bounds each HTTP request. Default: 30s.
	Timeout time.Duration
}

// defaults fills zero-value fields with sensible defaults.
func (c *ClientConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Client is a thin wrapper around the backend HTTP API.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

// NewClient creates a backend client.
func NewClient(cfg ClientConfig) *Client {
	cfg.defaults()
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// Fetch issues one pull query for the topic's feed. Network and
// server-side failures are wrapped as ErrConnectivity.
func (c *Client) Fetch(ctx context.Context, topic string) (feed.Snapshot, error) {
	resp, err := do[feedResponse](ctx, c, http.MethodGet,
		"/topics/"+url.PathEscape(topic)+"/feed", nil)
	if err != nil {
		return nil, err
	}
	if err := resp.Messages.Validate(); err != nil {
		return nil, fmt.Errorf("backend: invalid feed for topic %s: %w", topic, err)
	}
	return resp.Messages, nil
}

// Submit posts a message through the mutation endpoint.
func (c *Client) Submit(ctx context.Context, topic string, msg feed.Message) error {
	_, err := do[json.RawMessage](ctx, c, http.MethodPost, "/messages",
		submitRequest{Topic: topic, Message: msg})
	return err
}

// ProbeUploads issues the low-cost capability probe for attachment upload.
// It returns nil when the feature is deployed, ErrNotSupported when the
// backend explicitly reports it is not, and ErrConnectivity for anything
// that says nothing about feature availability.
func (c *Client) ProbeUploads(ctx context.Context) error {
	resp, err := do[capabilityResponse](ctx, c, http.MethodGet, "/capabilities/uploads", nil)
	if err != nil {
		return err
	}
	if !resp.Enabled {
		return fmt.Errorf("%w: uploads disabled by backend", ErrNotSupported)
	}
	return nil
}

// Dial opens the WebSocket connection for the reactive subscription.
func (c *Client) Dial(ctx context.Context) (*websocket.Conn, error) {
	opts := &websocket.DialOptions{}
	if c.cfg.Token != "" {
		opts.HTTPHeader = http.Header{"Authorization": {"Bearer " + c.cfg.Token}}
	}
	conn, _, err := websocket.Dial(ctx, c.cfg.WSURL, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrConnectivity, c.cfg.WSURL, err)
	}
	return conn, nil
}

// do sends a JSON request and decodes a successful response into T.
// Non-2xx statuses are classified: 404 and 501 (and an error payload with
// an unsupported code) map to ErrNotSupported, 5xx and transport failures
// to ErrConnectivity, everything else stays a plain error.
func do[T any](ctx context.Context, c *Client, method, path string, payload any) (*T, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("backend: marshal %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("backend: create %s %s: %w", method, path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrConnectivity, method, path, err)
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: read %s %s response: %w", ErrConnectivity, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classifyStatus(resp.StatusCode, respBody, method, path)
	}

	var result T
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, fmt.Errorf("backend: decode %s %s response: %w", method, path, err)
		}
	}
	return &result, nil
}

// classifyStatus maps a non-2xx response to the right sentinel.
func classifyStatus(status int, body []byte, method, path string) error {
	var payload apiError
	_ = json.Unmarshal(body, &payload)
	code := strings.ToLower(payload.Error.Code)
	detail := payload.Error.Message
	if detail == "" {
		detail = http.StatusText(status)
	}

	switch {
	case code == codeUnsupported || code == codeNotImplemented,
		status == http.StatusNotFound, status == http.StatusNotImplemented:
		return fmt.Errorf("%w: %s %s: %s", ErrNotSupported, method, path, detail)
	case status >= 500:
		return fmt.Errorf("%w: %s %s: status %d: %s", ErrConnectivity, method, path, status, detail)
	default:
		return fmt.Errorf("backend: %s %s: status %d: %s", method, path, status, detail)
	}
}
