package scholar

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-200, non-404 response from Semantic Scholar.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("semantic scholar API error (status %d): %s", e.StatusCode, e.Message)
}

func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}
