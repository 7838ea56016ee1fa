package items

import (
	"context"
	"time"

	"github.com/stacknotes/syncserver/internal/server/models"
)

// ListFilter narrows ListSince results. A nil ContentType means all types.
type ListFilter struct {
	ContentType *string
	Limit       int
}

type Repository interface {
	// Upsert inserts the item or, if it already exists for the same user,
	// updates it and advances updated_at. An existing item owned by another
	// user yields common.ErrorForbidden.
	Upsert(ctx context.Context, item *models.Item) (*models.Item, error)
	// GetForUpdate locks the item row for the rest of the transaction, so the
	// sync conflict comparison is atomic with the subsequent write.
	GetForUpdate(ctx context.Context, uuid string) (*models.Item, error)
	Get(ctx context.Context, uuid string) (*models.Item, error)
	// Tombstone soft-deletes the item and clears its ciphertext columns.
	Tombstone(ctx context.Context, userUUID, uuid, userAgent string) (*models.Item, error)
	// ListSince returns items strictly after the (cursorUpdatedAt, cursorUUID)
	// keyset position, ordered ascending by (updated_at, uuid).
	ListSince(ctx context.Context, userUUID string, cursorUpdatedAt time.Time, cursorUUID string, filter ListFilter) ([]*models.Item, error)
}
