// Package apiclient is the remote client for the /api/v1 domain API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const maxResponseBytes = 4 << 20

// APIError is returned for every non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is an API 404, as opposed to a transport
// failure or other status.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New builds a client for baseURL, which should end in /api/v1. A bare
// host URL gets /api/v1 appended.
func New(baseURL string, opts ...Option) *Client {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if !strings.HasSuffix(base, "/api/v1") {
		base += "/api/v1"
	}
	c := &Client{
		baseURL: base,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// do sends a JSON request. out may be nil; it is left untouched on 204 or an
// empty body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in any, out any, header http.Header) error {
	_, err := c.send(ctx, method, c.baseURL+path, path, query, in, out, header)
	return err
}

// record sends a request that answers with one JSON object. A 204 or an
// empty body gives a nil record and no error.
func record[T any](ctx context.Context, c *Client, method, path string, query url.Values, in any, header http.Header) (*T, error) {
	var out T
	decoded, err := c.send(ctx, method, c.baseURL+path, path, query, in, &out, header)
	if err != nil || !decoded {
		return nil, err
	}
	return &out, nil
}

// rootURL is the server origin without the /api/v1 suffix.
func (c *Client) rootURL() string {
	return strings.TrimSuffix(c.baseURL, "/api/v1")
}

func (c *Client) send(ctx context.Context, method, u, path string, query url.Values, in any, out any, header http.Header) (bool, error) {
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return false, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return false, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return false, fmt.Errorf("read %s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, &APIError{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, data)}
	}
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 || out == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return true, nil
}

// errorMessage extracts a human readable message from an error body. It
// tries message, then error, then the first string inside errors, then the
// raw text.
func errorMessage(status int, body []byte) string {
	fallback := fmt.Sprintf("Request failed with status %d", status)

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		if text := strings.TrimSpace(string(body)); text != "" {
			return text
		}
		return fallback
	}
	switch v := decoded.(type) {
	case string:
		if strings.TrimSpace(v) != "" {
			return v
		}
	case map[string]any:
		for _, key := range []string{"message", "error"} {
			if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
		if s, ok := firstString(v["errors"]); ok {
			return s
		}
	}
	return fallback
}

func firstString(v any) (string, bool) {
	switch e := v.(type) {
	case string:
		if strings.TrimSpace(e) != "" {
			return e, true
		}
	case []any:
		for _, item := range e {
			if s, ok := firstString(item); ok {
				return s, true
			}
		}
	case map[string]any:
		keys := make([]string, 0, len(e))
		for k := range e {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if s, ok := firstString(e[k]); ok {
				return s, true
			}
		}
	}
	return "", false
}
