// Package extensionsettings provides the PostgreSQL-backed repository for
// per-browser-extension preference rows.
package extensionsettings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stacknotes/syncserver/internal/common"
	"github.com/stacknotes/syncserver/internal/dbx"
	"github.com/stacknotes/syncserver/internal/server/models"
)

// PostgresRepository implements extension-settings storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new settings row.
func (r *PostgresRepository) Create(ctx context.Context, settings *models.ExtensionSettings) (*models.ExtensionSettings, error) {
	query := `
		INSERT INTO extension_settings (uuid, extension_id, mute_emails)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		settings.UUID, settings.ExtensionID, settings.MuteEmails,
	).Scan(&settings.CreatedAt, &settings.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return settings, nil
}

// Get returns the settings row with the given uuid.
func (r *PostgresRepository) Get(ctx context.Context, uuid string) (*models.ExtensionSettings, error) {
	query := `
		SELECT uuid, COALESCE(extension_id, ''), mute_emails, created_at, updated_at
		FROM extension_settings
		WHERE uuid = $1
	`
	return r.scan(r.db.QueryRowContext(ctx, query, uuid))
}

// GetByExtensionID returns the settings row for the given extension id.
func (r *PostgresRepository) GetByExtensionID(ctx context.Context, extensionID string) (*models.ExtensionSettings, error) {
	query := `
		SELECT uuid, COALESCE(extension_id, ''), mute_emails, created_at, updated_at
		FROM extension_settings
		WHERE extension_id = $1
	`
	return r.scan(r.db.QueryRowContext(ctx, query, extensionID))
}

// SetMuteEmails updates the mute flag and returns the refreshed row.
func (r *PostgresRepository) SetMuteEmails(ctx context.Context, uuid string, mute bool) (*models.ExtensionSettings, error) {
	query := `
		UPDATE extension_settings
		SET mute_emails = $2, updated_at = now()
		WHERE uuid = $1
		RETURNING uuid, COALESCE(extension_id, ''), mute_emails, created_at, updated_at
	`
	return r.scan(r.db.QueryRowContext(ctx, query, uuid, mute))
}

func (r *PostgresRepository) scan(row *sql.Row) (*models.ExtensionSettings, error) {
	settings := &models.ExtensionSettings{}
	err := row.Scan(&settings.UUID, &settings.ExtensionID, &settings.MuteEmails,
		&settings.CreatedAt, &settings.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return settings, nil
}
