package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bugstars/chat-relay/internal/service"
	"github.com/bugstars/chat-relay/internal/store"
	"github.com/bugstars/chat-relay/internal/upstream"
)

func TestMapErrorToStatusCode(t *testing.T) {
	testCases := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{
			name:           "conversation not found",
			err:            service.ErrConversationNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "wrapped store not found",
			err:            fmt.Errorf("lookup: %w", store.ErrConversationNotFound),
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "invalid entity",
			err:            store.ErrInvalidEntity,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "upstream rejected",
			err:            &upstream.StatusError{StatusCode: 400},
			expectedStatus: http.StatusBadGateway,
		},
		{
			name:           "upstream unavailable",
			err:            &upstream.StatusError{StatusCode: 503},
			expectedStatus: http.StatusServiceUnavailable,
		},
		{
			name:           "unknown error",
			err:            errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expectedStatus, MapErrorToStatusCode(tc.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	assert.Equal(t, "Conversation not found",
		GetSafeErrorMessage(service.ErrConversationNotFound))
	assert.Equal(t, "Upstream service unavailable",
		GetSafeErrorMessage(upstream.ErrUnavailable))
	assert.Equal(t, "An unexpected error occurred",
		GetSafeErrorMessage(errors.New("secret db password leaked")))
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
}

func TestGetSafeErrorMessageNeverLeaksInternals(t *testing.T) {
	internal := errors.New("pq: connection to postgres://user:hunter2@db failed")
	msg := GetSafeErrorMessage(internal)
	assert.NotContains(t, msg, "hunter2")
	assert.NotContains(t, msg, "postgres://")
}

func TestSanitizeValidationError(t *testing.T) {
	raw := errors.New(
		"Key: 'GenerateRequest.Prompt' Error:Field validation for 'Prompt' failed on the 'required' tag",
	)
	assert.Equal(t, "Invalid Prompt: required field", SanitizeValidationError(raw))

	assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("boom")))
}
