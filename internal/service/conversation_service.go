package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bugstars/chat-relay/internal/domain"
	"github.com/bugstars/chat-relay/internal/scheduler"
	"github.com/bugstars/chat-relay/internal/store"
	"github.com/google/uuid"
)

// TaskScheduler defines the interface for submitting background tasks.
type TaskScheduler interface {
	// Submit enqueues a fire-and-forget task and returns its cancel function.
	Submit(id string, execute scheduler.ExecuteFunc, opts ...scheduler.Option) scheduler.CancelFunc
}

// ConversationService provides conversation-related operations: session
// bootstrap, message recording and history CRUD.
type ConversationService interface {
	// BeginExchange resolves the conversation for a session (creating it
	// when absent; an empty sessionID gets a generated one) and records the
	// user's prompt synchronously, so the turn is durable before streaming
	// starts.
	BeginExchange(ctx context.Context, sessionID, prompt string) (*domain.Conversation, error)

	// RecordAssistantReply persists the assistant's reply as a background
	// sync job via the scheduler; the caller is never blocked on the write.
	// Empty replies are skipped.
	RecordAssistantReply(conversationID uuid.UUID, sessionID, content string)

	// History returns the messages of a conversation in order.
	History(ctx context.Context, sessionID string) ([]*domain.Message, error)

	// ListConversations returns summaries of all conversations, newest
	// first.
	ListConversations(ctx context.Context) ([]store.ConversationSummary, error)

	// DeleteConversation removes a conversation and its messages, returning
	// the number of messages removed.
	DeleteConversation(ctx context.Context, sessionID string) (int, error)
}

// Common sentinel errors for ConversationService
var (
	// ErrConversationNotFound indicates that the conversation does not exist
	ErrConversationNotFound = errors.New("conversation not found")
)

// ConversationServiceError wraps errors from the conversation service with
// context.
type ConversationServiceError struct {
	// Operation is the operation that failed (e.g., "begin_exchange")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ConversationServiceError.
func (e *ConversationServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("conversation service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("conversation service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ConversationServiceError) Unwrap() error {
	return e.Err
}

// newServiceError creates a ConversationServiceError, mapping store-level
// sentinels to service-level ones.
func newServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, store.ErrConversationNotFound) {
		return ErrConversationNotFound
	}

	return &ConversationServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// conversationServiceImpl implements the ConversationService interface
type conversationServiceImpl struct {
	convStore store.ConversationStore
	sched     TaskScheduler
	logger    *slog.Logger
}

// NewConversationService creates a new ConversationService.
// It returns an error if any of the required dependencies are nil.
func NewConversationService(
	convStore store.ConversationStore,
	sched TaskScheduler,
	logger *slog.Logger,
) (ConversationService, error) {
	if convStore == nil {
		return nil, &ConversationServiceError{
			Operation: "create_service",
			Message:   "convStore cannot be nil",
		}
	}
	if sched == nil {
		return nil, &ConversationServiceError{
			Operation: "create_service",
			Message:   "scheduler cannot be nil",
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &conversationServiceImpl{
		convStore: convStore,
		sched:     sched,
		logger:    logger.With(slog.String("component", "conversation_service")),
	}, nil
}

// BeginExchange implements ConversationService.BeginExchange.
func (s *conversationServiceImpl) BeginExchange(
	ctx context.Context,
	sessionID, prompt string,
) (*domain.Conversation, error) {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	conv, created, err := s.convStore.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, newServiceError("begin_exchange", "failed to resolve conversation", err)
	}
	if created {
		s.logger.Info("started new conversation", slog.String("session_id", sessionID))
	}

	msg, err := domain.NewMessage(conv.ID, domain.MessageRoleUser, prompt)
	if err != nil {
		return nil, newServiceError("begin_exchange", "invalid user message", err)
	}

	if err := s.convStore.CreateMessage(ctx, msg); err != nil {
		return nil, newServiceError("begin_exchange", "failed to record user message", err)
	}

	return conv, nil
}

// RecordAssistantReply implements ConversationService.RecordAssistantReply.
// The write runs as a scheduler task with the default retry policy; failures
// are logged and retried, never surfaced to the exchange that produced the
// reply.
func (s *conversationServiceImpl) RecordAssistantReply(
	conversationID uuid.UUID,
	sessionID, content string,
) {
	if content == "" {
		s.logger.Debug("no assistant text to record", slog.String("session_id", sessionID))
		return
	}

	taskID := fmt.Sprintf("record-reply-%s-%d", sessionID, time.Now().UnixNano())
	s.sched.Submit(taskID,
		func(ctx context.Context) error {
			msg, err := domain.NewMessage(conversationID, domain.MessageRoleAssistant, content)
			if err != nil {
				return err
			}
			return s.convStore.CreateMessage(ctx, msg)
		},
		scheduler.WithOnError(func(err error) {
			s.logger.Warn("failed to record assistant reply",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()))
		}),
	)
}

// History implements ConversationService.History.
func (s *conversationServiceImpl) History(
	ctx context.Context,
	sessionID string,
) ([]*domain.Message, error) {
	conv, err := s.convStore.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, newServiceError("get_history", "failed to get conversation", err)
	}

	messages, err := s.convStore.GetMessages(ctx, conv.ID)
	if err != nil {
		return nil, newServiceError("get_history", "failed to get messages", err)
	}

	return messages, nil
}

// ListConversations implements ConversationService.ListConversations.
func (s *conversationServiceImpl) ListConversations(
	ctx context.Context,
) ([]store.ConversationSummary, error) {
	summaries, err := s.convStore.ListSummaries(ctx)
	if err != nil {
		return nil, newServiceError("list_conversations", "failed to list conversations", err)
	}
	return summaries, nil
}

// DeleteConversation implements ConversationService.DeleteConversation.
func (s *conversationServiceImpl) DeleteConversation(
	ctx context.Context,
	sessionID string,
) (int, error) {
	count, err := s.convStore.DeleteBySessionID(ctx, sessionID)
	if err != nil {
		return 0, newServiceError("delete_conversation", "failed to delete conversation", err)
	}

	s.logger.Info("conversation deleted",
		slog.String("session_id", sessionID),
		slog.Int("message_count", count))
	return count, nil
}
