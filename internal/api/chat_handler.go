package api

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/bugstars/chat-relay/internal/api/shared"
	"github.com/bugstars/chat-relay/internal/service"
	"github.com/bugstars/chat-relay/internal/stream"
	"github.com/bugstars/chat-relay/internal/upstream"
)

// GenerateRequest represents the request body for starting a generation
// stream.
type GenerateRequest struct {
	Prompt         string `json:"prompt"          validate:"required,min=1"`
	SessionID      string `json:"session_id"`
	IncludeHistory bool   `json:"include_history"`
}

// ChatHandler handles the streaming generation endpoint.
type ChatHandler struct {
	convService service.ConversationService
	translator  *stream.Translator
	validator   *validator.Validate
	logger      *slog.Logger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(
	convService service.ConversationService,
	translator *stream.Translator,
	logger *slog.Logger,
) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{
		convService: convService,
		translator:  translator,
		validator:   validator.New(),
		logger:      logger.With(slog.String("component", "chat_handler")),
	}
}

// Generate handles POST /api/chat/generate requests. Validation and user
// turn persistence happen before the stream is committed, so failures there
// surface as plain JSON errors. Once streaming starts, all failures are
// reported in-stream and the response still terminates with the sentinel.
func (h *ChatHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	conv, err := h.convService.BeginExchange(r.Context(), req.SessionID, req.Prompt)
	if err != nil {
		h.logger.Error("failed to begin exchange",
			slog.String("session_id", req.SessionID),
			slog.String("error", err.Error()))
		HandleServiceError(w, r, err, "Failed to start conversation")
		return
	}

	// Expose the effective session ID before the body commits to the SSE
	// content type, so clients that omitted one can pick it up.
	w.Header().Set("X-Session-ID", conv.SessionID)

	sw := stream.NewWriter(w, h.logger)
	transcript := h.translator.Relay(r.Context(), sw, upstream.GenerateRequest{
		Prompt:         req.Prompt,
		SessionID:      conv.SessionID,
		IncludeHistory: req.IncludeHistory,
	})

	h.convService.RecordAssistantReply(conv.ID, conv.SessionID, transcript)
}
