package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Option func(*endpoint)

// WithBaseURL points the adapter at another host, e.g. a proxy or an
// httptest server.
func WithBaseURL(baseURL string) Option {
	return func(e *endpoint) { e.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithAPIKey(key string) Option {
	return func(e *endpoint) { e.apiKey = key }
}

func WithHTTPClient(c *http.Client) Option {
	return func(e *endpoint) { e.client = c }
}

type endpoint struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func newEndpoint(baseURL, apiKey string, timeout time.Duration, opts []Option) endpoint {
	e := endpoint{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// StatusError is returned for any non-2xx provider response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

func (e endpoint) postJSON(ctx context.Context, path string, headers map[string]string, payload, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
