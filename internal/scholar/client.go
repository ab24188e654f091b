// Package scholar is a small Semantic Scholar Graph API client used to look
// up cited works.
package scholar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"paperlens/internal/httputil"
)

const (
	BaseURL        = "https://api.semanticscholar.org/graph/v1"
	DefaultTimeout = 15 * time.Second
	// SourceName is what failure reasons call this index.
	SourceName  = "Semantic Scholar"
	paperFields = "paperId,title,abstract,year,authors,externalIds"
)

type Author struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type ExternalIDs struct {
	DOI   string `json:"DOI"`
	ArXiv string `json:"ArXiv"`
}

type Paper struct {
	PaperID     string      `json:"paperId"`
	Title       string      `json:"title"`
	Abstract    string      `json:"abstract"`
	Year        int         `json:"year"`
	Authors     []Author    `json:"authors"`
	ExternalIDs ExternalIDs `json:"externalIds"`
}

func (p Paper) AuthorNames() []string {
	out := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		if a.Name != "" {
			out = append(out, a.Name)
		}
	}
	return out
}

type Client struct {
	httpClient *http.Client
	limiter    *RateLimiter
	apiKey     string
	baseURL    string
	maxRetries int
}

type ClientOption func(*Client)

func WithAPIKey(key string) ClientOption {
	return func(c *Client) { c.apiKey = key }
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithRateLimiter shares one limiter between clients; every outbound call
// waits on it.
func WithRateLimiter(l *RateLimiter) ClientOption {
	return func(c *Client) { c.limiter = l }
}

func WithMaxRetries(n int) ClientOption {
	return func(c *Client) { c.maxRetries = n }
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    NewRateLimiter(time.Second),
		baseURL:    BaseURL,
		apiKey:     os.Getenv("S2_API_KEY"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ByDOI returns nil, nil when the DOI is unknown.
func (c *Client) ByDOI(ctx context.Context, doi string) (*Paper, error) {
	doi = NormalizeDOI(doi)
	if doi == "" {
		return nil, nil
	}
	return c.ByExternalID(ctx, "DOI:"+doi)
}

// ByExternalID looks up a paper by a prefixed identifier such as
// "ARXIV:1706.03762" or a raw S2 paper id. Unknown ids yield nil, nil.
func (c *Client) ByExternalID(ctx context.Context, id string) (*Paper, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	u := c.baseURL + "/paper/" + (&url.URL{Path: id}).EscapedPath() + "?" + url.Values{"fields": {paperFields}}.Encode()
	var p Paper
	found, err := c.get(ctx, u, &p)
	if err != nil || !found {
		return nil, err
	}
	return &p, nil
}

// SearchByTitle runs a free-text search and returns up to limit candidates.
func (c *Client) SearchByTitle(ctx context.Context, title string, limit int) ([]Paper, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}
	params := url.Values{
		"query":  {title},
		"limit":  {strconv.Itoa(limit)},
		"fields": {paperFields},
	}
	var body struct {
		Data []Paper `json:"data"`
	}
	found, err := c.get(ctx, c.baseURL+"/paper/search?"+params.Encode(), &body)
	if err != nil || !found {
		return nil, err
	}
	return body.Data, nil
}

// get reports found=false for a 404.
func (c *Client) get(ctx context.Context, u string, out any) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("rate limiter wait: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, c.maxRetries)
	if err != nil {
		return false, fmt.Errorf("semantic scholar request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("parsing semantic scholar response: %w", err)
	}
	return true, nil
}
