// Package upstream contains the client for the upstream generation endpoint
// the relay proxies to, including the bounded-retry policy applied to each
// logical call.
package upstream

import (
	"errors"
	"fmt"
)

// GenerateRequest carries the parameters of one generation exchange. Field
// names follow the upstream endpoint's JSON contract.
type GenerateRequest struct {
	Prompt         string `json:"prompt"`
	SessionID      string `json:"session_id,omitempty"`
	IncludeHistory bool   `json:"include_history"`
}

// Common errors returned by the fetcher.
var (
	// ErrUnavailable indicates the upstream could not be reached or kept
	// failing with server errors for every allowed attempt.
	ErrUnavailable = errors.New("upstream unavailable")

	// ErrRejected indicates the upstream rejected the request with a
	// client-class status; retrying would not help.
	ErrRejected = errors.New("upstream rejected request")
)

// StatusError is returned when the upstream answers with a non-2xx status.
// It wraps ErrRejected for client-class statuses and ErrUnavailable for
// server-class ones.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// Unwrap maps the status class onto the package sentinel errors.
func (e *StatusError) Unwrap() error {
	if e.StatusCode >= 500 {
		return ErrUnavailable
	}
	return ErrRejected
}

// retryable reports whether the status class permits another attempt.
func (e *StatusError) retryable() bool {
	return e.StatusCode >= 500
}
