// Package httputil holds HTTP helpers shared by the outbound clients.
package httputil

import (
	"context"
	"io"
	"math"
	"net/http"
	"time"
)

// RetryBaseDelay is the first backoff after an HTTP 429. Tests shrink it.
var RetryBaseDelay = time.Second

const defaultMaxRetries = 3

// DoWithRetry executes req and retries on HTTP 429 with exponential backoff
// (RetryBaseDelay, doubling each attempt). When maxRetries is 0 the default
// is used. A cancelled context during a backoff returns ctx.Err(). After the
// last retry the final 429 response is returned for the caller to inspect.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	for attempt := 0; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= maxRetries {
			return resp, nil
		}

		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		backoff := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
		if ra := retryAfter(resp); ra > backoff {
			backoff = ra
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// retryAfter reads a Retry-After header given in seconds.
func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	var secs int
	for _, r := range v {
		if r < '0' || r > '9' {
			return 0
		}
		secs = secs*10 + int(r-'0')
		if secs > 300 {
			return 300 * time.Second
		}
	}
	return time.Duration(secs) * time.Second
}
