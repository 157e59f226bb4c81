package repository

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// HTTPError is returned by the scrape source when the marketplace answers
// with a non-200 status.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("marketplace request failed with status %d: %s", e.StatusCode, e.URL)
}

// IsBlocked reports whether the marketplace refused the request outright.
func (e *HTTPError) IsBlocked() bool {
	return e.StatusCode == http.StatusForbidden
}

// IsBlockedError reports whether err wraps a 403 HTTPError.
func IsBlockedError(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.IsBlocked()
}
