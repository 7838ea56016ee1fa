// Package users provides the PostgreSQL-backed repository for account rows,
// including the row-locked lockout-counter updates used by authentication.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stacknotes/syncserver/internal/common"
	"github.com/stacknotes/syncserver/internal/dbx"
	"github.com/stacknotes/syncserver/internal/server/models"
)

const uniqueViolation = "23505"

const userColumns = `uuid, email, encrypted_password,
	COALESCE(pw_func, ''), COALESCE(pw_alg, ''), COALESCE(pw_cost, 0),
	COALESCE(pw_key_size, 0), COALESCE(pw_nonce, ''), COALESCE(pw_salt, ''),
	COALESCE(version, ''), num_failed_attempts, locked_until,
	COALESCE(updated_with_user_agent, ''), created_at, updated_at`

// PostgresRepository implements user storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new user row. A unique violation on the email index is
// reported as common.ErrorDuplicateEmail; no duplicate row is ever created.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (uuid, email, encrypted_password, pw_func, pw_alg, pw_cost,
			pw_key_size, pw_nonce, pw_salt, version, num_failed_attempts, updated_with_user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		user.UUID, user.Email, user.EncryptedPassword,
		user.Params.Func, user.Params.Alg, user.Params.Cost,
		user.Params.KeySize, user.Params.Nonce, user.Params.Salt, user.Params.Version,
		user.UpdatedWithUserAgent,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrorDuplicateEmail
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) getByEmail(ctx context.Context, email string, forUpdate bool) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

// GetByEmail returns the user with the given email, case-insensitively.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getByEmail(ctx, email, false)
}

// GetByEmailForUpdate is GetByEmail with a row lock held until the enclosing
// transaction ends.
func (r *PostgresRepository) GetByEmailForUpdate(ctx context.Context, email string) (*models.User, error) {
	return r.getByEmail(ctx, email, true)
}

// GetByUUID returns the user with the given uuid.
func (r *PostgresRepository) GetByUUID(ctx context.Context, uuid string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE uuid = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, uuid))
}

func (r *PostgresRepository) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var lockedUntil sql.NullTime

	err := row.Scan(
		&user.UUID, &user.Email, &user.EncryptedPassword,
		&user.Params.Func, &user.Params.Alg, &user.Params.Cost,
		&user.Params.KeySize, &user.Params.Nonce, &user.Params.Salt,
		&user.Params.Version, &user.NumFailedAttempts, &lockedUntil,
		&user.UpdatedWithUserAgent, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if lockedUntil.Valid {
		t := lockedUntil.Time
		user.LockedUntil = &t
	}
	return user, nil
}

// RecordFailedAttempt persists the incremented attempt counter and, once the
// threshold is crossed, the lockout deadline.
func (r *PostgresRepository) RecordFailedAttempt(ctx context.Context, uuid string, attempts int, lockedUntil *time.Time) error {
	query := `
		UPDATE users
		SET num_failed_attempts = $2, locked_until = $3, updated_at = now()
		WHERE uuid = $1
	`
	if _, err := r.db.ExecContext(ctx, query, uuid, attempts, lockedUntil); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// RecordSuccessfulAuth resets the lockout state and records the user agent of
// the device that signed in.
func (r *PostgresRepository) RecordSuccessfulAuth(ctx context.Context, uuid string, userAgent string) error {
	query := `
		UPDATE users
		SET num_failed_attempts = 0, locked_until = NULL,
			updated_with_user_agent = $2, updated_at = now()
		WHERE uuid = $1
	`
	if _, err := r.db.ExecContext(ctx, query, uuid, userAgent); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// UpdatePassword replaces the stored secret and derivation params in one
// statement. Lockout counters are deliberately untouched.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, uuid string, encryptedPassword string, params models.DerivationParams, userAgent string) error {
	query := `
		UPDATE users
		SET encrypted_password = $2, pw_func = $3, pw_alg = $4, pw_cost = $5,
			pw_key_size = $6, pw_nonce = $7, pw_salt = $8, version = $9,
			updated_with_user_agent = $10, updated_at = now()
		WHERE uuid = $1
	`
	res, err := r.db.ExecContext(ctx, query, uuid, encryptedPassword,
		params.Func, params.Alg, params.Cost, params.KeySize,
		params.Nonce, params.Salt, params.Version, userAgent)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
