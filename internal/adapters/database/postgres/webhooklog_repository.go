package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"unibox/internal/core/platform"
	"unibox/internal/core/webhooklog"
)

// WebhookLogRepository implements webhooklog.Repository for PostgreSQL.
type WebhookLogRepository struct {
	db *sqlx.DB
}

func NewWebhookLogRepository(db *sqlx.DB) webhooklog.Repository {
	return &WebhookLogRepository{db: db}
}

func (r *WebhookLogRepository) Create(ctx context.Context, entry *webhooklog.Entry) error {
	query := `
		INSERT INTO webhook_logs (
			id, platform, event_type, payload, source_ip,
			received_at, processed_at, processing_error
		) VALUES (
			:id, :platform, :event_type, :payload, :source_ip,
			:received_at, :processed_at, :processing_error
		)
	`

	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("failed to create webhook log: %w", err)
	}

	return nil
}

func (r *WebhookLogRepository) MarkProcessed(ctx context.Context, id uuid.UUID, processingError *string) error {
	query := `
		UPDATE webhook_logs
		SET processed_at = $1, processing_error = $2
		WHERE id = $3
	`

	if _, err := r.db.ExecContext(ctx, query, time.Now(), processingError, id.String()); err != nil {
		return fmt.Errorf("failed to mark webhook log processed: %w", err)
	}

	return nil
}

func (r *WebhookLogRepository) ListRecent(ctx context.Context, p platform.Platform, limit int) ([]*webhooklog.Entry, error) {
	var entries []*webhooklog.Entry
	query := `
		SELECT * FROM webhook_logs
		WHERE platform = $1
		ORDER BY received_at DESC
		LIMIT $2
	`

	if err := r.db.SelectContext(ctx, &entries, query, p.String(), limit); err != nil {
		return nil, fmt.Errorf("failed to list webhook logs: %w", err)
	}

	return entries, nil
}
