package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"unibox/internal/core/contact"
	"unibox/internal/core/platform"
	"unibox/internal/core/shared/errors"
)

// ContactRepository implements contact.Repository for PostgreSQL.
type ContactRepository struct {
	db *sqlx.DB
}

func NewContactRepository(db *sqlx.DB) contact.Repository {
	return &ContactRepository{db: db}
}

func (r *ContactRepository) Create(ctx context.Context, c *contact.Contact) error {
	query := `
		INSERT INTO contacts (
			id, whatsapp_id, instagram_id, facebook_id, display_name,
			origin_platform, lifecycle_state, first_seen, last_seen
		) VALUES (
			:id, :whatsapp_id, :instagram_id, :facebook_id, :display_name,
			:origin_platform, :lifecycle_state, :first_seen, :last_seen
		)
	`

	_, err := r.db.NamedExecContext(ctx, query, c)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return errors.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create contact: %w", err)
	}

	return nil
}

func (r *ContactRepository) GetByID(ctx context.Context, id uuid.UUID) (*contact.Contact, error) {
	var c contact.Contact
	query := `SELECT * FROM contacts WHERE id = $1`

	err := r.db.GetContext(ctx, &c, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrContactNotFound
		}
		return nil, fmt.Errorf("failed to get contact by id: %w", err)
	}

	return &c, nil
}

func (r *ContactRepository) GetByExternalID(ctx context.Context, p platform.Platform, externalID string) (*contact.Contact, error) {
	column, err := externalIDColumn(p)
	if err != nil {
		return nil, err
	}

	var c contact.Contact
	query := fmt.Sprintf(`SELECT * FROM contacts WHERE %s = $1`, column)

	err = r.db.GetContext(ctx, &c, query, externalID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrContactNotFound
		}
		return nil, fmt.Errorf("failed to get contact by external id: %w", err)
	}

	return &c, nil
}

func (r *ContactRepository) UpdateLastSeen(ctx context.Context, id uuid.UUID, seenAt time.Time) error {
	query := `UPDATE contacts SET last_seen = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, seenAt, id.String())
	if err != nil {
		return fmt.Errorf("failed to update last seen: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return errors.ErrContactNotFound
	}

	return nil
}

func (r *ContactRepository) UpdateDisplayName(ctx context.Context, id uuid.UUID, displayName string) error {
	query := `UPDATE contacts SET display_name = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, displayName, id.String())
	if err != nil {
		return fmt.Errorf("failed to update display name: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return errors.ErrContactNotFound
	}

	return nil
}

// externalIDColumn maps a platform onto its contacts column. The switch is
// exhaustive so the query never interpolates caller input.
func externalIDColumn(p platform.Platform) (string, error) {
	switch p {
	case platform.WhatsApp:
		return "whatsapp_id", nil
	case platform.Instagram:
		return "instagram_id", nil
	case platform.Facebook:
		return "facebook_id", nil
	default:
		return "", fmt.Errorf("%w: %s", errors.ErrUnsupportedPlatform, p)
	}
}
