package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stacknotes/syncserver/internal/common"
	"github.com/stacknotes/syncserver/internal/dbx"
	"github.com/stacknotes/syncserver/internal/logging"
	"github.com/stacknotes/syncserver/internal/server/config"
	"github.com/stacknotes/syncserver/internal/server/models"
	"github.com/stacknotes/syncserver/internal/server/repositories/items"
	"github.com/stacknotes/syncserver/internal/server/repositories/repomanager"
)

// SyncCursor marks sync progress as the (updated_at, uuid) keyset position of
// the last delivered item. The zero value means "from the beginning".
type SyncCursor struct {
	UpdatedAt time.Time
	UUID      string
}

// IsZero reports whether the cursor is the initial position.
func (c SyncCursor) IsZero() bool {
	return c.UpdatedAt.IsZero() && c.UUID == ""
}

// Token renders the cursor as the opaque string handed to clients.
func (c SyncCursor) Token() string {
	if c.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d:%s", c.UpdatedAt.UnixMicro(), c.UUID)
}

// ParseCursorToken decodes a client-presented cursor token. An empty token is
// the initial cursor; anything malformed fails with common.ErrorValidation.
func ParseCursorToken(token string) (SyncCursor, error) {
	if token == "" {
		return SyncCursor{}, nil
	}
	micros, id, ok := strings.Cut(token, ":")
	if !ok {
		return SyncCursor{}, fmt.Errorf("%w: malformed sync token", common.ErrorValidation)
	}
	n, err := strconv.ParseInt(micros, 10, 64)
	if err != nil {
		return SyncCursor{}, fmt.Errorf("%w: malformed sync token", common.ErrorValidation)
	}
	return SyncCursor{UpdatedAt: time.UnixMicro(n).UTC(), UUID: id}, nil
}

// IncomingItem is a client-submitted change. BaseUpdatedAt is the server
// updated_at the client last saw for this item; the zero value declares a
// new creation.
type IncomingItem struct {
	Item          models.Item
	BaseUpdatedAt time.Time
}

// Conflict pairs the rejected client copy with the prevailing server copy.
type Conflict struct {
	Client *models.Item
	Server *models.Item
}

// SyncResult is the outcome of one push+pull exchange.
type SyncResult struct {
	Saved     []*models.Item
	Conflicts []*Conflict
	Retrieved []*models.Item
	Cursor    SyncCursor
}

// ItemService is the sync engine over the item repository.
type ItemService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	pageLimit   int
}

func NewItemService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger, cfg *config.Config) *ItemService {
	return &ItemService{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "item_service"),
		pageLimit:   cfg.SyncPageLimit,
	}
}

// Push applies client-submitted changes for userUUID in one transaction.
// For each incoming item the server copy (if any) is read under a row lock
// and compared against the client's declared base: a server copy newer than
// the base wins (last-writer-wins) and the client copy is returned as a
// conflict instead of being applied. Items referencing another user's uuid
// abort the whole push with common.ErrorForbidden before anything commits.
func (s *ItemService) Push(ctx context.Context, userUUID string, incoming []*IncomingItem, userAgent string) ([]*models.Item, []*Conflict, error) {

	// Client-supplied ids must be well-formed uuids, checked before any
	// mutation so a bad item never surfaces as a storage error mid-batch.
	for _, inc := range incoming {
		if inc.Item.UUID != "" {
			if err := uuid.Validate(inc.Item.UUID); err != nil {
				return nil, nil, fmt.Errorf("%w: malformed item uuid", common.ErrorValidation)
			}
		}
	}

	var saved []*models.Item
	var conflicts []*Conflict

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Items(tx)

		for _, inc := range incoming {
			if inc.Item.UUID == "" {
				inc.Item.UUID = uuid.NewString()
			}

			existing, err := repo.GetForUpdate(ctx, inc.Item.UUID)
			if err != nil && !errors.Is(err, common.ErrorNotFound) {
				return err
			}

			if existing != nil {
				if existing.UserUUID != userUUID {
					return common.ErrorForbidden
				}
				if existing.UpdatedAt.After(inc.BaseUpdatedAt) {
					client := inc.Item
					conflicts = append(conflicts, &Conflict{Client: &client, Server: existing})
					continue
				}
			}

			item := inc.Item
			item.UserUUID = userUUID
			item.LastUserAgent = userAgent

			applied, err := repo.Upsert(ctx, &item)
			if err != nil {
				return err
			}
			saved = append(saved, applied)
		}

		return nil
	})

	if err != nil {
		if errors.Is(err, common.ErrorForbidden) {
			return nil, nil, common.ErrorForbidden
		}
		return nil, nil, fmt.Errorf("error applying items: %w", err)
	}

	return saved, conflicts, nil
}

// Pull returns the next page of changes after cursor, ordered ascending by
// (updated_at, uuid), and the advanced cursor. An empty page returns the
// cursor unchanged, which signals completion to the caller. An item whose
// updated_at collides with the cursor boundary may be re-delivered; clients
// de-duplicate by uuid.
func (s *ItemService) Pull(ctx context.Context, userUUID string, cursor SyncCursor, contentType *string, limit int) ([]*models.Item, SyncCursor, error) {
	if limit <= 0 || limit > s.pageLimit {
		limit = s.pageLimit
	}

	repo := s.repomanager.Items(s.db)

	page, err := repo.ListSince(ctx, userUUID, cursor.UpdatedAt, cursor.UUID, items.ListFilter{
		ContentType: contentType,
		Limit:       limit,
	})
	if err != nil {
		return nil, cursor, fmt.Errorf("error selecting items: %w", err)
	}

	if len(page) > 0 {
		last := page[len(page)-1]
		cursor = SyncCursor{UpdatedAt: last.UpdatedAt, UUID: last.UUID}
	}

	return page, cursor, nil
}

// Sync is one exchange: push the client's pending items, then pull the delta
// past the client's cursor. Items saved by this very push are filtered from
// the retrieved page (the client already holds them); the cursor still
// advances past everything the page covered.
func (s *ItemService) Sync(ctx context.Context, userUUID string, incoming []*IncomingItem, cursor SyncCursor, contentType *string, limit int, userAgent string) (*SyncResult, error) {

	saved, conflicts, err := s.Push(ctx, userUUID, incoming, userAgent)
	if err != nil {
		return nil, err
	}

	retrieved, next, err := s.Pull(ctx, userUUID, cursor, contentType, limit)
	if err != nil {
		return nil, err
	}

	savedIDs := make(map[string]struct{}, len(saved))
	for _, item := range saved {
		savedIDs[item.UUID] = struct{}{}
	}
	filtered := retrieved[:0]
	for _, item := range retrieved {
		if _, ok := savedIDs[item.UUID]; !ok {
			filtered = append(filtered, item)
		}
	}

	return &SyncResult{
		Saved:     saved,
		Conflicts: conflicts,
		Retrieved: filtered,
		Cursor:    next,
	}, nil
}

// SoftDelete tombstones the item: the deleted flag is set, ciphertext columns
// are cleared and updated_at advances so other clients receive the tombstone.
func (s *ItemService) SoftDelete(ctx context.Context, userUUID, itemUUID, userAgent string) (*models.Item, error) {
	repo := s.repomanager.Items(s.db)

	item, err := repo.Tombstone(ctx, userUUID, itemUUID, userAgent)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) || errors.Is(err, common.ErrorForbidden) {
			return nil, err
		}
		return nil, fmt.Errorf("error deleting item: %w", err)
	}
	return item, nil
}
