package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bugstars/chat-relay/internal/domain"
	"github.com/bugstars/chat-relay/internal/platform/logger"
	"github.com/bugstars/chat-relay/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes
const (
	pgUniqueViolationCode     = "23505"
	pgForeignKeyViolationCode = "23503"
)

// PostgresConversationStore implements the store.ConversationStore interface
// using a PostgreSQL database as the storage backend.
type PostgresConversationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresConversationStore creates a new PostgreSQL implementation of the
// ConversationStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresConversationStore(db store.DBTX, logger *slog.Logger) *PostgresConversationStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresConversationStore{
		db:     db,
		logger: logger.With(slog.String("component", "conversation_store")),
	}
}

// Ensure PostgresConversationStore implements store.ConversationStore
var _ store.ConversationStore = (*PostgresConversationStore)(nil)

// GetOrCreate implements store.ConversationStore.GetOrCreate.
// Creation races with another writer are resolved by re-reading after a
// unique violation on session_id.
func (s *PostgresConversationStore) GetOrCreate(
	ctx context.Context,
	sessionID string,
) (*domain.Conversation, bool, error) {
	conv, err := s.GetBySessionID(ctx, sessionID)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, store.ErrConversationNotFound) {
		return nil, false, err
	}

	conv, err = domain.NewConversation(sessionID)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	if err := s.create(ctx, conv); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// Lost the creation race; the row exists now.
			conv, err = s.GetBySessionID(ctx, sessionID)
			return conv, false, err
		}
		return nil, false, err
	}

	return conv, true, nil
}

// create saves a new conversation row.
func (s *PostgresConversationStore) create(ctx context.Context, conv *domain.Conversation) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO conversations (id, session_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		conv.ID,
		conv.SessionID,
		conv.CreatedAt,
		conv.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			return fmt.Errorf("%w: session_id %s", store.ErrDuplicate, conv.SessionID)
		}

		log.Error("failed to create conversation",
			slog.String("error", err.Error()),
			slog.String("session_id", conv.SessionID))
		return err
	}

	log.Info("conversation created",
		slog.String("conversation_id", conv.ID.String()),
		slog.String("session_id", conv.SessionID))
	return nil
}

// GetBySessionID implements store.ConversationStore.GetBySessionID.
func (s *PostgresConversationStore) GetBySessionID(
	ctx context.Context,
	sessionID string,
) (*domain.Conversation, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, session_id, created_at, updated_at
		FROM conversations
		WHERE session_id = $1
	`

	var conv domain.Conversation
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&conv.ID,
		&conv.SessionID,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("conversation not found", slog.String("session_id", sessionID))
			return nil, store.ErrConversationNotFound
		}
		log.Error("failed to get conversation by session ID",
			slog.String("error", err.Error()),
			slog.String("session_id", sessionID))
		return nil, err
	}

	return &conv, nil
}

// ListSummaries implements store.ConversationStore.ListSummaries.
func (s *PostgresConversationStore) ListSummaries(
	ctx context.Context,
) ([]store.ConversationSummary, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT c.session_id, COUNT(m.id), c.created_at, c.updated_at
		FROM conversations c
		LEFT JOIN messages m ON m.conversation_id = c.id
		GROUP BY c.id, c.session_id, c.created_at, c.updated_at
		ORDER BY c.updated_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		log.Error("failed to list conversation summaries", slog.String("error", err.Error()))
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	summaries := make([]store.ConversationSummary, 0)
	for rows.Next() {
		var summary store.ConversationSummary
		if err := rows.Scan(
			&summary.SessionID,
			&summary.MessageCount,
			&summary.CreatedAt,
			&summary.UpdatedAt,
		); err != nil {
			log.Error("failed to scan conversation summary", slog.String("error", err.Error()))
			return nil, err
		}
		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summaries, nil
}

// CreateMessage implements store.ConversationStore.CreateMessage.
// Returns store.ErrInvalidEntity if the conversation does not exist
// (foreign key violation).
func (s *PostgresConversationStore) CreateMessage(ctx context.Context, msg *domain.Message) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := msg.Validate(); err != nil {
		log.Warn("message validation failed during create",
			slog.String("error", err.Error()),
			slog.String("message_id", msg.ID.String()))
		return err
	}

	query := `
		INSERT INTO messages (id, conversation_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		msg.ID,
		msg.ConversationID,
		msg.Role,
		msg.Content,
		msg.CreatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolationCode {
			log.Warn("foreign key violation during message creation",
				slog.String("error", err.Error()),
				slog.String("conversation_id", msg.ConversationID.String()))
			return fmt.Errorf("%w: conversation with ID %s not found",
				store.ErrInvalidEntity, msg.ConversationID)
		}

		log.Error("failed to create message",
			slog.String("error", err.Error()),
			slog.String("message_id", msg.ID.String()),
			slog.String("conversation_id", msg.ConversationID.String()))
		return err
	}

	// Keep the conversation's recency in step with its newest message.
	touch := `UPDATE conversations SET updated_at = $1 WHERE id = $2`
	if _, err := s.db.ExecContext(ctx, touch, msg.CreatedAt, msg.ConversationID); err != nil {
		log.Error("failed to update conversation timestamp",
			slog.String("error", err.Error()),
			slog.String("conversation_id", msg.ConversationID.String()))
		return err
	}

	log.Debug("message created",
		slog.String("message_id", msg.ID.String()),
		slog.String("conversation_id", msg.ConversationID.String()),
		slog.String("role", string(msg.Role)))
	return nil
}

// GetMessages implements store.ConversationStore.GetMessages.
func (s *PostgresConversationStore) GetMessages(
	ctx context.Context,
	conversationID uuid.UUID,
) ([]*domain.Message, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, conversation_id, role, content, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		log.Error("failed to get messages",
			slog.String("error", err.Error()),
			slog.String("conversation_id", conversationID.String()))
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	messages := make([]*domain.Message, 0)
	for rows.Next() {
		var msg domain.Message
		var role string
		if err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&role,
			&msg.Content,
			&msg.CreatedAt,
		); err != nil {
			log.Error("failed to scan message", slog.String("error", err.Error()))
			return nil, err
		}
		msg.Role = domain.MessageRole(role)
		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

// DeleteBySessionID implements store.ConversationStore.DeleteBySessionID.
// Messages are removed by the ON DELETE CASCADE constraint; the count is
// taken beforehand for the caller's response.
func (s *PostgresConversationStore) DeleteBySessionID(
	ctx context.Context,
	sessionID string,
) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	conv, err := s.GetBySessionID(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	var messageCount int
	countQuery := `SELECT COUNT(*) FROM messages WHERE conversation_id = $1`
	if err := s.db.QueryRowContext(ctx, countQuery, conv.ID).Scan(&messageCount); err != nil {
		log.Error("failed to count messages before delete",
			slog.String("error", err.Error()),
			slog.String("session_id", sessionID))
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, conv.ID)
	if err != nil {
		log.Error("failed to delete conversation",
			slog.String("error", err.Error()),
			slog.String("session_id", sessionID))
		return 0, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, store.ErrConversationNotFound
	}

	log.Info("conversation deleted",
		slog.String("session_id", sessionID),
		slog.Int("message_count", messageCount))
	return messageCount, nil
}

// WithTx implements store.ConversationStore.WithTx.
func (s *PostgresConversationStore) WithTx(tx *sql.Tx) store.ConversationStore {
	return &PostgresConversationStore{
		db:     tx,
		logger: s.logger,
	}
}
