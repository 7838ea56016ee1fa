// Package sessions provides a PostgreSQL-backed repository for the opaque
// refresh tokens used in the authentication flow.
package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stacknotes/syncserver/internal/common"
	"github.com/stacknotes/syncserver/internal/dbx"
	"github.com/stacknotes/syncserver/internal/server/models"
)

// PostgresRepository implements session storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new session for userUUID expiring at now+validity.
func (r *PostgresRepository) Create(ctx context.Context, userUUID string, token string, validity time.Duration) error {
	query := `
		INSERT INTO sessions (user_uuid, token, expires_at)
		VALUES ($1, $2, $3)
	`
	if _, err := r.db.ExecContext(ctx, query, userUUID, token, time.Now().Add(validity)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Find returns the session row for the given token string.
// If not found, it returns common.ErrorNotFound.
func (r *PostgresRepository) Find(ctx context.Context, token string) (*models.Session, error) {
	query := `
		SELECT user_uuid, expires_at, created_at
		FROM sessions
		WHERE token = $1
	`
	session := &models.Session{Token: token}
	if err := r.db.QueryRowContext(ctx, query, token).Scan(&session.UserUUID, &session.Expires, &session.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return session, nil
}

// Delete removes a session by its token string.
func (r *PostgresRepository) Delete(ctx context.Context, token string) error {
	query := `
		DELETE FROM sessions
		WHERE token = $1
	`
	if _, err := r.db.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
