package domain_test

import (
	"testing"

	"github.com/bugstars/chat-relay/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConversation(t *testing.T) {
	conv, err := domain.NewConversation("session-abc")
	require.NoError(t, err)
	require.NotNil(t, conv)

	assert.NotEqual(t, uuid.Nil, conv.ID)
	assert.Equal(t, "session-abc", conv.SessionID)
	assert.False(t, conv.CreatedAt.IsZero())
	assert.False(t, conv.UpdatedAt.IsZero())
}

func TestNewConversationEmptySessionID(t *testing.T) {
	conv, err := domain.NewConversation("")
	assert.ErrorIs(t, err, domain.ErrEmptySessionID)
	assert.Nil(t, conv)
}

func TestNewMessage(t *testing.T) {
	convID := uuid.New()

	msg, err := domain.NewMessage(convID, domain.MessageRoleUser, "hello")
	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.NotEqual(t, uuid.Nil, msg.ID)
	assert.Equal(t, convID, msg.ConversationID)
	assert.Equal(t, domain.MessageRoleUser, msg.Role)
	assert.Equal(t, "hello", msg.Content)
	assert.False(t, msg.CreatedAt.IsZero())
}

func TestMessageValidate(t *testing.T) {
	convID := uuid.New()

	tests := []struct {
		name    string
		modify  func(*domain.Message)
		wantErr error
	}{
		{
			name:    "valid message",
			modify:  func(m *domain.Message) {},
			wantErr: nil,
		},
		{
			name:    "missing ID",
			modify:  func(m *domain.Message) { m.ID = uuid.Nil },
			wantErr: domain.ErrEmptyMessageID,
		},
		{
			name:    "missing conversation ID",
			modify:  func(m *domain.Message) { m.ConversationID = uuid.Nil },
			wantErr: domain.ErrMessageWithoutOwner,
		},
		{
			name:    "invalid role",
			modify:  func(m *domain.Message) { m.Role = "system" },
			wantErr: domain.ErrInvalidMessageRole,
		},
		{
			name:    "empty content",
			modify:  func(m *domain.Message) { m.Content = "" },
			wantErr: domain.ErrEmptyMessageContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := domain.NewMessage(convID, domain.MessageRoleAssistant, "some content")
			require.NoError(t, err)

			tt.modify(msg)

			err = msg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
