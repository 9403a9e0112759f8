package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bugstars/chat-relay/internal/api/shared"
	"github.com/bugstars/chat-relay/internal/domain"
	"github.com/bugstars/chat-relay/internal/service"
	"github.com/bugstars/chat-relay/internal/store"
	"github.com/bugstars/chat-relay/internal/upstream"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, service.ErrConversationNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Bad request errors
	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrEmptySessionID),
		errors.Is(err, domain.ErrEmptyMessageContent),
		errors.Is(err, domain.ErrInvalidMessageRole):
		return http.StatusBadRequest

	// Upstream refused the request outright
	case errors.Is(err, upstream.ErrRejected):
		return http.StatusBadGateway

	// Upstream unreachable or failing
	case errors.Is(err, upstream.ErrUnavailable):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, service.ErrConversationNotFound):
		return "Conversation not found"

	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrEmptySessionID),
		errors.Is(err, domain.ErrEmptyMessageContent),
		errors.Is(err, domain.ErrInvalidMessageRole):
		return "Invalid request data"

	case errors.Is(err, upstream.ErrRejected):
		return "Upstream service rejected the request"

	case errors.Is(err, upstream.ErrUnavailable):
		return "Upstream service unavailable"

	default:
		return "An unexpected error occurred"
	}
}

// HandleServiceError writes a standard error response for a failed service
// call: the status and client message come from the error mapping above and
// the full error is logged with the request's trace ID. A non-empty
// defaultMsg overrides the mapped message for errors that fall through to
// the generic case.
func HandleServiceError(w http.ResponseWriter, r *http.Request, err error, defaultMsg string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if defaultMsg != "" && status == http.StatusInternalServerError {
		message = defaultMsg
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	// Check if this is likely a validation error message
	if strings.Contains(errMsg, "Field validation") {
		// Example format: "Key: 'GenerateRequest.Prompt' Error:Field
		// validation for 'Prompt' failed on the 'required' tag"
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}

				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
