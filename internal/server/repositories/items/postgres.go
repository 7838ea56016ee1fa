// Package items provides the PostgreSQL-backed repository for encrypted item
// persistence and the keyset delta queries the sync engine runs on.
package items

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

const itemColumns = `uuid, user_uuid, COALESCE(content, ''), COALESCE(content_type, ''),
	COALESCE(enc_item_key, ''), COALESCE(auth_hash, ''), deleted,
	COALESCE(last_user_agent, ''), created_at, updated_at`

// PostgresRepository implements item storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert creates or updates an item by uuid for a specific user. Ownership is
// enforced by the conflict clause: if the row exists for another user the
// update matches nothing, no row comes back and common.ErrorForbidden is
// returned. updated_at advances by at least one microsecond past the previous
// value even when the wall clock has not moved, so the sync cursor never sees
// a reused value for the same item.
func (r *PostgresRepository) Upsert(ctx context.Context, item *models.Item) (*models.Item, error) {
	query := `
		INSERT INTO items (uuid, user_uuid, content, content_type, enc_item_key, auth_hash,
			deleted, last_user_agent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		ON CONFLICT (uuid)
		DO UPDATE SET
			content = EXCLUDED.content,
			content_type = EXCLUDED.content_type,
			enc_item_key = EXCLUDED.enc_item_key,
			auth_hash = EXCLUDED.auth_hash,
			deleted = EXCLUDED.deleted,
			last_user_agent = EXCLUDED.last_user_agent,
			updated_at = GREATEST(now(), items.updated_at + interval '1 microsecond')
			WHERE items.user_uuid = EXCLUDED.user_uuid
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		item.UUID, item.UserUUID, item.Content, item.ContentType,
		item.EncItemKey, item.AuthHash, item.State.Deleted(), item.LastUserAgent,
	).Scan(&item.CreatedAt, &item.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorForbidden
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return item, nil
}

// Get returns the item with the given uuid regardless of owner; callers
// compare user_uuid themselves.
func (r *PostgresRepository) Get(ctx context.Context, uuid string) (*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE uuid = $1`
	return r.scanItem(r.db.QueryRowContext(ctx, query, uuid))
}

// GetForUpdate is Get with a row lock held until the enclosing transaction
// ends. Writers to different items never block each other here.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, uuid string) (*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE uuid = $1 FOR UPDATE`
	return r.scanItem(r.db.QueryRowContext(ctx, query, uuid))
}

// Tombstone marks the item deleted, clears its ciphertext columns and
// advances updated_at so clients receive the tombstone on their next delta.
func (r *PostgresRepository) Tombstone(ctx context.Context, userUUID, uuid, userAgent string) (*models.Item, error) {
	query := `
		UPDATE items
		SET deleted = true, content = NULL, enc_item_key = NULL, auth_hash = NULL,
			last_user_agent = $3,
			updated_at = GREATEST(now(), updated_at + interval '1 microsecond')
		WHERE uuid = $1 AND user_uuid = $2
		RETURNING ` + itemColumns + `
	`
	item, err := r.scanItem(r.db.QueryRowContext(ctx, query, uuid, userUUID, userAgent))
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	// No row matched: distinguish a missing item from one owned by somebody else.
	if _, err := r.Get(ctx, uuid); err != nil {
		return nil, err
	}
	return nil, common.ErrorForbidden
}

// ListSince returns up to filter.Limit items past the keyset position
// (cursorUpdatedAt, cursorUUID), ordered ascending by (updated_at, uuid).
// The uuid tie-break makes the ordering total even when two writes land on
// the same timestamp.
func (r *PostgresRepository) ListSince(ctx context.Context, userUUID string, cursorUpdatedAt time.Time, cursorUUID string, filter ListFilter) ([]*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items
		WHERE user_uuid = $1
		AND (updated_at > $2 OR (updated_at = $2 AND uuid > $3))`
	args := []any{userUUID, cursorUpdatedAt, cursorUUID}

	if filter.ContentType != nil {
		args = append(args, *filter.ContentType)
		query += fmt.Sprintf(" AND content_type = $%d", len(args))
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY updated_at, uuid LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select items: %w", err)
	}
	defer rows.Close()

	var result []*models.Item
	for rows.Next() {
		item, err := r.scanItemRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scanItemRow(row rowScanner) (*models.Item, error) {
	item := &models.Item{}
	var deleted bool
	err := row.Scan(
		&item.UUID, &item.UserUUID, &item.Content, &item.ContentType,
		&item.EncItemKey, &item.AuthHash, &deleted,
		&item.LastUserAgent, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.State = models.ItemStateFromDeleted(deleted)
	return item, nil
}

func (r *PostgresRepository) scanItem(row *sql.Row) (*models.Item, error) {
	item, err := r.scanItemRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return item, nil
}
