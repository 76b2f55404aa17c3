package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"unibox/internal/core/conversation"
	"unibox/internal/core/platform"
	"unibox/internal/core/shared/errors"
)

// ConversationRepository implements conversation.Repository for PostgreSQL.
// The single-open invariant lives in idx_conversations_single_open; Create
// translates its violation so the router can pick up the winning row.
type ConversationRepository struct {
	db *sqlx.DB
}

func NewConversationRepository(db *sqlx.DB) conversation.Repository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Create(ctx context.Context, conv *conversation.Conversation) error {
	query := `
		INSERT INTO conversations (
			id, contact_id, platform, state, agent_id,
			started_at, last_activity_at, inbound_count, outbound_count
		) VALUES (
			:id, :contact_id, :platform, :state, :agent_id,
			:started_at, :last_activity_at, :inbound_count, :outbound_count
		)
	`

	_, err := r.db.NamedExecContext(ctx, query, conv)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return errors.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	return nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*conversation.Conversation, error) {
	var conv conversation.Conversation
	query := `SELECT * FROM conversations WHERE id = $1`

	err := r.db.GetContext(ctx, &conv, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to get conversation by id: %w", err)
	}

	return &conv, nil
}

func (r *ConversationRepository) GetOpen(ctx context.Context, contactID uuid.UUID, p platform.Platform) (*conversation.Conversation, error) {
	var conv conversation.Conversation
	query := `
		SELECT * FROM conversations
		WHERE contact_id = $1 AND platform = $2 AND state <> $3
	`

	err := r.db.GetContext(ctx, &conv, query, contactID.String(), p.String(), conversation.StateCerrada)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to get open conversation: %w", err)
	}

	return &conv, nil
}

func (r *ConversationRepository) UpdateState(ctx context.Context, id uuid.UUID, state conversation.State, agentID *uuid.UUID) error {
	query := `UPDATE conversations SET state = $1, agent_id = $2 WHERE id = $3`

	var agent interface{}
	if agentID != nil {
		agent = agentID.String()
	}

	result, err := r.db.ExecContext(ctx, query, state, agent, id.String())
	if err != nil {
		return fmt.Errorf("failed to update conversation state: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return errors.ErrConversationNotFound
	}

	return nil
}
