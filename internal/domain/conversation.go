package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// MessageRole identifies the author of a message within a conversation.
type MessageRole string

// Possible message roles
const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Common validation errors for Conversation and Message
var (
	ErrEmptyConversationID = errors.New("conversation ID cannot be empty")
	ErrEmptySessionID      = errors.New("conversation session ID cannot be empty")
	ErrEmptyMessageID      = errors.New("message ID cannot be empty")
	ErrEmptyMessageContent = errors.New("message content cannot be empty")
	ErrInvalidMessageRole  = errors.New("invalid message role")
	ErrMessageWithoutOwner = errors.New("message conversation ID cannot be empty")
)

// Conversation groups the messages of one chat session. Sessions are keyed
// by a client-supplied (or generated) session ID, which is what the wire
// protocol exposes; the UUID is internal.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversation creates a new Conversation for the given session ID,
// generating a fresh UUID and setting timestamps.
// Returns an error if validation fails.
func NewConversation(sessionID string) (*Conversation, error) {
	conv := &Conversation{
		ID:        uuid.New(),
		SessionID: sessionID,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if err := conv.Validate(); err != nil {
		return nil, err
	}

	return conv, nil
}

// Validate checks if the Conversation has valid data.
func (c *Conversation) Validate() error {
	if c.ID == uuid.Nil {
		return ErrEmptyConversationID
	}

	if c.SessionID == "" {
		return ErrEmptySessionID
	}

	return nil
}

// Message is a single turn within a conversation.
type Message struct {
	ID             uuid.UUID   `json:"id"`
	ConversationID uuid.UUID   `json:"conversation_id"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	CreatedAt      time.Time   `json:"created_at"`
}

// NewMessage creates a new Message in the given conversation.
// Returns an error if validation fails.
func NewMessage(conversationID uuid.UUID, role MessageRole, content string) (*Message, error) {
	msg := &Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	return msg, nil
}

// Validate checks if the Message has valid data.
func (m *Message) Validate() error {
	if m.ID == uuid.Nil {
		return ErrEmptyMessageID
	}

	if m.ConversationID == uuid.Nil {
		return ErrMessageWithoutOwner
	}

	if !isValidMessageRole(m.Role) {
		return ErrInvalidMessageRole
	}

	if m.Content == "" {
		return ErrEmptyMessageContent
	}

	return nil
}

// isValidMessageRole checks if the given role is a valid MessageRole.
func isValidMessageRole(role MessageRole) bool {
	switch role {
	case MessageRoleUser, MessageRoleAssistant:
		return true
	default:
		return false
	}
}
