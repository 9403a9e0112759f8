package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrConversationNotFoundWrapsErrNotFound(t *testing.T) {
	assert.ErrorIs(t, ErrConversationNotFound, ErrNotFound)
}

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "generic not found", err: ErrNotFound, want: true},
		{name: "conversation not found", err: ErrConversationNotFound, want: true},
		{
			name: "wrapped conversation not found",
			err:  fmt.Errorf("lookup failed: %w", ErrConversationNotFound),
			want: true,
		},
		{name: "duplicate", err: ErrDuplicate, want: false},
		{name: "unrelated", err: errors.New("boom"), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNotFoundError(tt.err))
		})
	}
}
