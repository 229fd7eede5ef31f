package notion

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stacklok/loresync/internal/httpclient"
)

var (
	// ErrUnauthorized means the workspace rejected the credential.
	ErrUnauthorized = errors.New("workspace credential rejected")

	// ErrNotFound means the object does not exist or is not shared with the
	// integration.
	ErrNotFound = errors.New("workspace object not found")
)

// APIError is an error object returned by the workspace API.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`

	// RetryDelay carries the Retry-After header, if any.
	RetryDelay time.Duration `json:"-"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("workspace API returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("workspace API returned %d (%s): %s", e.Status, e.Code, e.Message)
}

// Retryable reports whether the same request may succeed later.
func (e *APIError) Retryable() bool {
	switch e.Status {
	case http.StatusTooManyRequests,
		http.StatusConflict,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// RetryAfter returns the server-provided delay.
func (e *APIError) RetryAfter() (time.Duration, bool) {
	return e.RetryDelay, e.RetryDelay > 0
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	}
	return nil
}

// translateError turns transport HTTP errors into *APIError.
func translateError(err error) error {
	var httpErr *httpclient.HTTPError
	if !errors.As(err, &httpErr) {
		return err
	}

	apiErr := &APIError{}
	if len(httpErr.Body) > 0 {
		_ = json.Unmarshal(httpErr.Body, apiErr)
	}
	apiErr.Status = httpErr.StatusCode
	if apiErr.Message == "" {
		apiErr.Message = httpErr.Message
	}
	apiErr.RetryDelay = httpErr.RetryAfter
	return apiErr
}
