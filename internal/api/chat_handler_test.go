package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bugstars/chat-relay/internal/domain"
	"github.com/bugstars/chat-relay/internal/service"
	"github.com/bugstars/chat-relay/internal/store"
	"github.com/bugstars/chat-relay/internal/stream"
	"github.com/bugstars/chat-relay/internal/upstream"
)

// MockConversationService is a mock implementation of
// service.ConversationService for testing.
type MockConversationService struct {
	BeginExchangeFn        func(ctx context.Context, sessionID, prompt string) (*domain.Conversation, error)
	RecordAssistantReplyFn func(conversationID uuid.UUID, sessionID, content string)
	HistoryFn              func(ctx context.Context, sessionID string) ([]*domain.Message, error)
	ListConversationsFn    func(ctx context.Context) ([]store.ConversationSummary, error)
	DeleteConversationFn   func(ctx context.Context, sessionID string) (int, error)
}

// BeginExchange implements service.ConversationService
func (m *MockConversationService) BeginExchange(
	ctx context.Context,
	sessionID, prompt string,
) (*domain.Conversation, error) {
	if m.BeginExchangeFn != nil {
		return m.BeginExchangeFn(ctx, sessionID, prompt)
	}
	return domain.NewConversation(sessionID)
}

// RecordAssistantReply implements service.ConversationService
func (m *MockConversationService) RecordAssistantReply(
	conversationID uuid.UUID,
	sessionID, content string,
) {
	if m.RecordAssistantReplyFn != nil {
		m.RecordAssistantReplyFn(conversationID, sessionID, content)
	}
}

// History implements service.ConversationService
func (m *MockConversationService) History(
	ctx context.Context,
	sessionID string,
) ([]*domain.Message, error) {
	if m.HistoryFn != nil {
		return m.HistoryFn(ctx, sessionID)
	}
	return nil, nil
}

// ListConversations implements service.ConversationService
func (m *MockConversationService) ListConversations(
	ctx context.Context,
) ([]store.ConversationSummary, error) {
	if m.ListConversationsFn != nil {
		return m.ListConversationsFn(ctx)
	}
	return nil, nil
}

// DeleteConversation implements service.ConversationService
func (m *MockConversationService) DeleteConversation(
	ctx context.Context,
	sessionID string,
) (int, error) {
	if m.DeleteConversationFn != nil {
		return m.DeleteConversationFn(ctx, sessionID)
	}
	return 0, nil
}

var _ service.ConversationService = (*MockConversationService)(nil)

// stubFetcher returns a canned upstream response or error.
type stubFetcher struct {
	resp *http.Response
	err  error
}

func (f *stubFetcher) Do(ctx context.Context, req upstream.GenerateRequest) (*http.Response, error) {
	return f.resp, f.err
}

func jsonResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newGenerateRequest(t *testing.T, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat/generate", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestChatHandler_Generate(t *testing.T) {
	conv, err := domain.NewConversation("session-abc")
	require.NoError(t, err)

	var recordedContent string
	mockService := &MockConversationService{
		BeginExchangeFn: func(ctx context.Context, sessionID, prompt string) (*domain.Conversation, error) {
			assert.Equal(t, "session-abc", sessionID)
			assert.Equal(t, "hello", prompt)
			return conv, nil
		},
		RecordAssistantReplyFn: func(conversationID uuid.UUID, sessionID, content string) {
			assert.Equal(t, conv.ID, conversationID)
			recordedContent = content
		},
	}

	fetcher := &stubFetcher{resp: jsonResponse(`{"response":"Hi there"}`)}
	handler := NewChatHandler(mockService, stream.NewTranslator(fetcher, nil), nil)

	rr := httptest.NewRecorder()
	handler.Generate(rr, newGenerateRequest(t, `{"prompt":"hello","session_id":"session-abc"}`))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
	assert.Equal(t, "session-abc", rr.Header().Get("X-Session-ID"))

	body := rr.Body.String()
	assert.Contains(t, body, "Hi there")
	assert.Contains(t, body, "data: [DONE]\n\n")
	assert.Equal(t, "Hi there", recordedContent)
}

func TestChatHandler_GenerateMissingPrompt(t *testing.T) {
	handler := NewChatHandler(
		&MockConversationService{},
		stream.NewTranslator(&stubFetcher{}, nil),
		nil,
	)

	rr := httptest.NewRecorder()
	handler.Generate(rr, newGenerateRequest(t, `{"session_id":"session-abc"}`))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "Prompt")
}

func TestChatHandler_GenerateMalformedBody(t *testing.T) {
	handler := NewChatHandler(
		&MockConversationService{},
		stream.NewTranslator(&stubFetcher{}, nil),
		nil,
	)

	rr := httptest.NewRecorder()
	handler.Generate(rr, newGenerateRequest(t, `{not json`))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestChatHandler_GenerateBeginExchangeFails(t *testing.T) {
	mockService := &MockConversationService{
		BeginExchangeFn: func(ctx context.Context, sessionID, prompt string) (*domain.Conversation, error) {
			return nil, errors.New("db down")
		},
	}
	handler := NewChatHandler(mockService, stream.NewTranslator(&stubFetcher{}, nil), nil)

	rr := httptest.NewRecorder()
	handler.Generate(rr, newGenerateRequest(t, `{"prompt":"hello"}`))

	// Failure before the stream commits is a plain JSON error, not SSE.
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}

func TestChatHandler_GenerateUpstreamFailureStreamsError(t *testing.T) {
	conv, err := domain.NewConversation("session-abc")
	require.NoError(t, err)

	mockService := &MockConversationService{
		BeginExchangeFn: func(ctx context.Context, sessionID, prompt string) (*domain.Conversation, error) {
			return conv, nil
		},
	}
	fetcher := &stubFetcher{err: upstream.ErrUnavailable}
	handler := NewChatHandler(mockService, stream.NewTranslator(fetcher, nil), nil)

	rr := httptest.NewRecorder()
	handler.Generate(rr, newGenerateRequest(t, `{"prompt":"hello","session_id":"session-abc"}`))

	// The stream had already committed, so the failure arrives in-band.
	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
	body := rr.Body.String()
	assert.Contains(t, body, `"error"`)
	assert.Contains(t, body, `"recoverable":true`)
	assert.Contains(t, body, "data: [DONE]\n\n")
}
