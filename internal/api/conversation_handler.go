package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bugstars/chat-relay/internal/api/shared"
	"github.com/bugstars/chat-relay/internal/domain"
	"github.com/bugstars/chat-relay/internal/service"
	"github.com/bugstars/chat-relay/internal/store"
)

// ConversationSummaryResponse represents one conversation in the listing.
type ConversationSummaryResponse struct {
	SessionID    string    `json:"session_id"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MessageResponse represents one message in a conversation history.
type MessageResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryResponse represents the full history of a conversation. The
// message list is keyed "history" on the wire, matching what existing
// clients parse.
type HistoryResponse struct {
	SessionID string            `json:"session_id"`
	Messages  []MessageResponse `json:"history"`
}

// DeleteResponse reports the outcome of a conversation deletion.
type DeleteResponse struct {
	SessionID       string `json:"session_id"`
	DeletedMessages int    `json:"deleted_messages"`
}

// ConversationHandler handles conversation listing, history and deletion.
type ConversationHandler struct {
	convService service.ConversationService
	logger      *slog.Logger
}

// NewConversationHandler creates a new ConversationHandler.
func NewConversationHandler(
	convService service.ConversationService,
	logger *slog.Logger,
) *ConversationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversationHandler{
		convService: convService,
		logger:      logger.With(slog.String("component", "conversation_handler")),
	}
}

// List handles GET /api/chat/conversations requests.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.convService.ListConversations(r.Context())
	if err != nil {
		h.logger.Error("failed to list conversations", slog.String("error", err.Error()))
		HandleServiceError(w, r, err, "Failed to list conversations")
		return
	}

	response := make([]ConversationSummaryResponse, 0, len(summaries))
	for _, s := range summaries {
		response = append(response, summaryToDTOResponse(s))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, response)
}

// History handles GET /api/chat/conversations/{sessionID}/history requests.
func (h *ConversationHandler) History(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Session ID is required")
		return
	}

	messages, err := h.convService.History(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("failed to load history",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		HandleServiceError(w, r, err, "Failed to load conversation history")
		return
	}

	response := HistoryResponse{
		SessionID: sessionID,
		Messages:  make([]MessageResponse, 0, len(messages)),
	}
	for _, m := range messages {
		response.Messages = append(response.Messages, messageToDTOResponse(m))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, response)
}

// Delete handles DELETE /api/chat/conversations/{sessionID} requests.
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Session ID is required")
		return
	}

	count, err := h.convService.DeleteConversation(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("failed to delete conversation",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		HandleServiceError(w, r, err, "Failed to delete conversation")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, DeleteResponse{
		SessionID:       sessionID,
		DeletedMessages: count,
	})
}

// summaryToDTOResponse converts a store.ConversationSummary to its response
// form.
func summaryToDTOResponse(s store.ConversationSummary) ConversationSummaryResponse {
	return ConversationSummaryResponse{
		SessionID:    s.SessionID,
		MessageCount: s.MessageCount,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// messageToDTOResponse converts a domain.Message to its response form.
func messageToDTOResponse(m *domain.Message) MessageResponse {
	return MessageResponse{
		ID:        m.ID.String(),
		Role:      string(m.Role),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}
