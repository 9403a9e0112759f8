package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/bugstars/chat-relay/internal/domain"
	"github.com/google/uuid"
)

// ConversationSummary is a listing row for a conversation: identifying
// metadata plus a message count, without the message bodies.
type ConversationSummary struct {
	SessionID    string    `json:"session_id"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ConversationStore defines the interface for conversation and message
// persistence.
type ConversationStore interface {
	// GetOrCreate returns the conversation with the given session ID,
	// creating it when absent. The bool reports whether a new conversation
	// was created.
	GetOrCreate(ctx context.Context, sessionID string) (*domain.Conversation, bool, error)

	// GetBySessionID retrieves a conversation by its session ID.
	// Returns ErrConversationNotFound if it does not exist.
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Conversation, error)

	// ListSummaries returns summaries of all conversations ordered by
	// most recently updated first.
	ListSummaries(ctx context.Context) ([]ConversationSummary, error)

	// CreateMessage appends a message to its conversation and bumps the
	// conversation's updated_at timestamp.
	// Returns validation errors if the message data is invalid.
	CreateMessage(ctx context.Context, msg *domain.Message) error

	// GetMessages returns all messages of a conversation in creation order.
	GetMessages(ctx context.Context, conversationID uuid.UUID) ([]*domain.Message, error)

	// DeleteBySessionID removes a conversation and all of its messages.
	// Returns ErrConversationNotFound if it does not exist, along with the
	// number of messages removed on success.
	DeleteBySessionID(ctx context.Context, sessionID string) (int, error)

	// WithTx returns a new ConversationStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) ConversationStore
}
