//go:build integration

package helpers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"testing"
)

// Client is an HTTP client bound to one storefront visitor: it keeps the
// session cookies across requests.
type Client struct {
	base   string
	apiKey string
	http   *http.Client
}

// NewShopper returns a client with its own cookie jar.
func NewShopper(t *testing.T, baseURL string) *Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("creating cookie jar: %v", err)
	}
	return &Client{base: baseURL, http: &http.Client{Jar: jar}}
}

// NewOperator returns a client that authenticates with an operator API key.
func NewOperator(baseURL, apiKey string) *Client {
	return &Client{base: baseURL, apiKey: apiKey, http: &http.Client{}}
}

// WithBase returns a client for another server that shares this client's
// cookies and key.
func (c *Client) WithBase(baseURL string) *Client {
	out := *c
	out.base = baseURL
	return &out
}

// Do sends a JSON request and decodes the JSON response into out when out is
// non-nil. It returns the response status.
func (c *Client) Do(t *testing.T, method, path string, body, out any) int {
	t.Helper()

	var rdr io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling request: %v", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, c.base+path, rdr)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading response: %v", err)
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("decoding %s %s response (%d): %v\n%s", method, path, resp.StatusCode, err, data)
		}
	}
	return resp.StatusCode
}

// MustOK fails the test unless status is 200.
func MustOK(t *testing.T, status int, what string) {
	t.Helper()
	if status != http.StatusOK {
		t.Fatalf("%s: status %d, want 200", what, status)
	}
}
