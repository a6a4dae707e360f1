// Package commerce provides an HTTP client for the headless commerce
// backend's store API. Every failure is reported as *Error so callers can
// treat transport and HTTP-level problems uniformly.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// defaultTimeout bounds a single backend call.
	defaultTimeout = 10 * time.Second

	// maxResponseBytes caps the size of a decoded response body.
	maxResponseBytes = 8 << 20

	// maxErrorBytes caps the size of an error body.
	maxErrorBytes = 64 << 10

	// publishableKeyHeader scopes store requests to a sales channel.
	publishableKeyHeader = "x-publishable-api-key"
)

// Config configures the backend client.
type Config struct {
	// BaseURL is the backend root, e.g. http://localhost:9000.
	BaseURL string

	// PublishableKey is sent with every store request.
	PublishableKey string

	// Timeout bounds each call when HTTPClient is not provided.
	Timeout time.Duration

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Client calls the commerce backend's store API.
type Client struct {
	baseURL        string
	publishableKey string
	http           *http.Client
}

// New creates a backend client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("commerce: base url is required")
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:        base,
		publishableKey: cfg.PublishableKey,
		http:           hc,
	}, nil
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// PublishableKeySet reports whether a publishable key is configured.
func (c *Client) PublishableKeySet() bool {
	return c.publishableKey != ""
}

// request describes one backend call.
type request struct {
	op      string
	method  string
	path    string
	headers http.Header
	body    any
	noStore bool
}

// do executes a request and decodes a successful response into out.
func (c *Client) do(ctx context.Context, r request, out any) error {
	var reader io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return &Error{Op: r.op, Err: fmt.Errorf("encoding request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, reader)
	if err != nil {
		return &Error{Op: r.op, Err: fmt.Errorf("building request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.publishableKey != "" {
		req.Header.Set(publishableKeyHeader, c.publishableKey)
	}
	if r.noStore {
		req.Header.Set("Cache-Control", "no-store")
	}
	for k, vs := range r.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		slog.Debug("commerce: request failed", "op", r.op, "path", r.path, "error", err)
		return &Error{Op: r.op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	slog.Debug("commerce: request",
		"op", r.op,
		"method", r.method,
		"path", r.path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decodeError(r.op, resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return &Error{Op: r.op, Status: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

// decodeError builds an *Error from a non-2xx response. Bodies that are not
// a backend ErrorBody land in Body, never in Message.
func decodeError(op string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))

	e := &Error{Op: op, Status: resp.StatusCode}
	var body ErrorBody
	if err := json.Unmarshal(data, &body); err == nil && body.Message != "" {
		e.Type = body.Type
		e.Message = body.Message
		return e
	}
	e.Body = strings.TrimSpace(string(data))
	return e
}
