package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"unibox/internal/core/platform"
	"unibox/internal/core/platformconfig"
	"unibox/internal/core/shared/errors"
)

// PlatformConfigRepository implements platformconfig.Repository for
// PostgreSQL. The core only reads credential rows; writes come from the
// configuration UI, except the session connected flag maintained by the
// session gateway.
type PlatformConfigRepository struct {
	db *sqlx.DB
}

func NewPlatformConfigRepository(db *sqlx.DB) platformconfig.Repository {
	return &PlatformConfigRepository{db: db}
}

func (r *PlatformConfigRepository) GetByID(ctx context.Context, id uuid.UUID) (*platformconfig.Config, error) {
	var cfg platformconfig.Config
	query := `SELECT * FROM platform_configs WHERE id = $1`

	err := r.db.GetContext(ctx, &cfg, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to get platform config by id: %w", err)
	}

	return &cfg, nil
}

func (r *PlatformConfigRepository) GetActivePointer(ctx context.Context, p platform.Platform) (*platformconfig.ActivePointer, error) {
	var pointer platformconfig.ActivePointer
	query := `SELECT * FROM active_platform_configs WHERE platform = $1`

	err := r.db.GetContext(ctx, &pointer, query, p.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to get active config pointer: %w", err)
	}

	return &pointer, nil
}

func (r *PlatformConfigRepository) GetLatest(ctx context.Context, p platform.Platform, kind platformconfig.Kind) (*platformconfig.Config, error) {
	var cfg platformconfig.Config
	query := `
		SELECT * FROM platform_configs
		WHERE platform = $1 AND kind = $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &cfg, query, p.String(), string(kind))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to get latest platform config: %w", err)
	}

	return &cfg, nil
}

func (r *PlatformConfigRepository) GetConnectedSession(ctx context.Context, p platform.Platform) (*platformconfig.Config, error) {
	var cfg platformconfig.Config
	query := `
		SELECT * FROM platform_configs
		WHERE platform = $1 AND kind = $2 AND connected = TRUE
		ORDER BY updated_at DESC
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &cfg, query, p.String(), string(platformconfig.KindSession))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to get connected session config: %w", err)
	}

	return &cfg, nil
}

func (r *PlatformConfigRepository) GetBySessionName(ctx context.Context, sessionName string) (*platformconfig.Config, error) {
	var cfg platformconfig.Config
	query := `
		SELECT * FROM platform_configs
		WHERE kind = $1 AND session_name = $2
		ORDER BY updated_at DESC
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &cfg, query, string(platformconfig.KindSession), sessionName)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to get session config by name: %w", err)
	}

	return &cfg, nil
}

func (r *PlatformConfigRepository) SetSessionConnected(ctx context.Context, sessionName string, connected bool) error {
	query := `
		UPDATE platform_configs
		SET connected = $1, updated_at = NOW()
		WHERE kind = $2 AND session_name = $3
	`

	if _, err := r.db.ExecContext(ctx, query, connected, string(platformconfig.KindSession), sessionName); err != nil {
		return fmt.Errorf("failed to update session connected flag: %w", err)
	}

	return nil
}

func (r *PlatformConfigRepository) SetSessionDevice(ctx context.Context, sessionName string, deviceJID *string) error {
	query := `
		UPDATE platform_configs
		SET device_jid = $1, updated_at = NOW()
		WHERE kind = $2 AND session_name = $3
	`

	if _, err := r.db.ExecContext(ctx, query, deviceJID, string(platformconfig.KindSession), sessionName); err != nil {
		return fmt.Errorf("failed to update session device: %w", err)
	}

	return nil
}
