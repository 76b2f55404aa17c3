package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"unibox/internal/core/message"
	"unibox/internal/core/shared/errors"
)

// MessageRepository implements message.Repository for PostgreSQL. Inbound
// dedup rides on idx_messages_external_id: the insert itself decides
// whether the delivery is new, so two concurrent retries of the same
// provider event can never both commit a row.
type MessageRepository struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) message.Repository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) CreateInbound(ctx context.Context, msg *message.Message) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.NamedExecContext(ctx, `
		INSERT INTO messages (
			id, conversation_id, contact_id, external_id, type,
			direction, delivery_state, content, occurred_at, created_at
		) VALUES (
			:id, :conversation_id, :contact_id, :external_id, :type,
			:direction, :delivery_state, :content, :occurred_at, :created_at
		)
		ON CONFLICT (external_id) WHERE external_id IS NOT NULL DO NOTHING
	`, msg)
	if err != nil {
		return fmt.Errorf("failed to insert inbound message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read insert result: %w", err)
	}
	if rows == 0 {
		// Lost the unique-index race: the id is already in the ledger and
		// the counters were bumped by whoever won.
		return errors.ErrMessageDuplicate
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations
		SET inbound_count = inbound_count + 1, last_activity_at = $1
		WHERE id = $2
	`, msg.OccurredAt, msg.ConversationID.String()); err != nil {
		return fmt.Errorf("failed to bump conversation counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit inbound message: %w", err)
	}

	return nil
}

func (r *MessageRepository) CreateOutbound(ctx context.Context, msg *message.Message) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO messages (
			id, conversation_id, contact_id, external_id, type,
			direction, delivery_state, content, occurred_at, created_at
		) VALUES (
			:id, :conversation_id, :contact_id, :external_id, :type,
			:direction, :delivery_state, :content, :occurred_at, :created_at
		)
	`, msg); err != nil {
		return fmt.Errorf("failed to insert outbound message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations
		SET outbound_count = outbound_count + 1, last_activity_at = $1
		WHERE id = $2
	`, msg.OccurredAt, msg.ConversationID.String()); err != nil {
		return fmt.Errorf("failed to bump conversation counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit outbound message: %w", err)
	}

	return nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id uuid.UUID) (*message.Message, error) {
	var msg message.Message
	query := `SELECT * FROM messages WHERE id = $1`

	err := r.db.GetContext(ctx, &msg, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message by id: %w", err)
	}

	return &msg, nil
}

func (r *MessageRepository) GetByExternalID(ctx context.Context, externalID string) (*message.Message, error) {
	var msg message.Message
	query := `SELECT * FROM messages WHERE external_id = $1`

	err := r.db.GetContext(ctx, &msg, query, externalID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message by external id: %w", err)
	}

	return &msg, nil
}

func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*message.Message, error) {
	var msgs []*message.Message
	query := `
		SELECT * FROM messages
		WHERE conversation_id = $1
		ORDER BY occurred_at ASC
		LIMIT $2 OFFSET $3
	`

	if err := r.db.SelectContext(ctx, &msgs, query, conversationID.String(), limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return msgs, nil
}

func (r *MessageRepository) CountByConversation(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM messages WHERE conversation_id = $1`

	if err := r.db.GetContext(ctx, &count, query, conversationID.String()); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}

	return count, nil
}
