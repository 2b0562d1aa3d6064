package llamadoc

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/teslashibe/llamadoc-voice/pkg/apperr"
)

// Sentinel errors.
var (
	// ErrNoBaseURL is returned when the client has no backend address.
	ErrNoBaseURL = errors.New("llamadoc: base URL required")

	// ErrEmptyQuestion is returned for blank questions.
	ErrEmptyQuestion = errors.New("llamadoc: question is empty")
)

// APIError is a non-success response from the backend.
type APIError struct {
	// Op names the endpoint, e.g. "query".
	Op string

	// StatusCode is the HTTP status code.
	StatusCode int

	// Detail is the backend's "detail" field, or the raw body.
	Detail string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("llamadoc %s: HTTP %d: %s", e.Op, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("llamadoc %s: HTTP %d", e.Op, e.StatusCode)
}

// UserMessage returns the backend's detail text for display.
func (e *APIError) UserMessage() string {
	return e.Detail
}

// IsUnavailable reports whether the backend lacks the capability (HTTP 501).
func (e *APIError) IsUnavailable() bool {
	return e.StatusCode == http.StatusNotImplemented
}

// IsNotFound reports HTTP 404.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// classify wraps an APIError in the error taxonomy.
func classify(e *APIError) error {
	switch {
	case e.IsUnavailable():
		return apperr.Wrap(apperr.KindUnavailable, e.Op, e)
	case e.Op == opVoiceInput && e.StatusCode == http.StatusBadRequest:
		return apperr.Wrap(apperr.KindNoInput, e.Op, e)
	default:
		return apperr.Wrap(apperr.KindNetwork, e.Op, e)
	}
}
