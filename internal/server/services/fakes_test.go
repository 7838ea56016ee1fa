package services

import (
	"context"
	"database/sql"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/stacknotes/syncserver/internal/common"
	"github.com/stacknotes/syncserver/internal/dbx"
	"github.com/stacknotes/syncserver/internal/logging"
	"github.com/stacknotes/syncserver/internal/server/models"
	extensionsrepo "github.com/stacknotes/syncserver/internal/server/repositories/extensionsettings"
	itemsrepo "github.com/stacknotes/syncserver/internal/server/repositories/items"
	sessionsrepo "github.com/stacknotes/syncserver/internal/server/repositories/sessions"
	usersrepo "github.com/stacknotes/syncserver/internal/server/repositories/users"
)

// --- shared helpers ---

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.DiscardHandler))
}

// --- fake users repository (scripted) ---

type fakeUsersRepo struct {
	createOut *models.User
	createErr error

	byEmail    *models.User
	byEmailErr error

	byUUID    *models.User
	byUUIDErr error

	failedCalls   int
	gotAttempts   int
	gotLockedTill *time.Time
	failedErr     error

	successCalls int
	successErr   error

	updatePasswordCalls int
	updatePasswordErr   error
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createOut != nil {
		return f.createOut, nil
	}
	return u, nil
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.byEmailErr != nil {
		return nil, f.byEmailErr
	}
	return f.byEmail, nil
}

func (f *fakeUsersRepo) GetByEmailForUpdate(ctx context.Context, email string) (*models.User, error) {
	return f.GetByEmail(ctx, email)
}

func (f *fakeUsersRepo) GetByUUID(ctx context.Context, uuid string) (*models.User, error) {
	if f.byUUIDErr != nil {
		return nil, f.byUUIDErr
	}
	return f.byUUID, nil
}

func (f *fakeUsersRepo) RecordFailedAttempt(ctx context.Context, uuid string, attempts int, lockedUntil *time.Time) error {
	f.failedCalls++
	f.gotAttempts = attempts
	f.gotLockedTill = lockedUntil
	return f.failedErr
}

func (f *fakeUsersRepo) RecordSuccessfulAuth(ctx context.Context, uuid string, userAgent string) error {
	f.successCalls++
	return f.successErr
}

func (f *fakeUsersRepo) UpdatePassword(ctx context.Context, uuid string, encryptedPassword string, params models.DerivationParams, userAgent string) error {
	f.updatePasswordCalls++
	return f.updatePasswordErr
}

// --- fake sessions repository (in-memory) ---

type fakeSessionsRepo struct {
	sessions  map[string]*models.Session
	createErr error
}

func newFakeSessionsRepo() *fakeSessionsRepo {
	return &fakeSessionsRepo{sessions: make(map[string]*models.Session)}
}

func (f *fakeSessionsRepo) Create(ctx context.Context, userUUID string, token string, validity time.Duration) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.sessions[token] = &models.Session{
		UserUUID:  userUUID,
		Token:     token,
		Expires:   time.Now().Add(validity),
		CreatedAt: time.Now(),
	}
	return nil
}

func (f *fakeSessionsRepo) Find(ctx context.Context, token string) (*models.Session, error) {
	s, ok := f.sessions[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return s, nil
}

func (f *fakeSessionsRepo) Delete(ctx context.Context, token string) error {
	delete(f.sessions, token)
	return nil
}

// --- fake items repository (in-memory) ---

// fakeItemsRepo keeps items in a map and assigns strictly increasing
// updated_at values, one microsecond per write, mirroring the SQL GREATEST
// clause of the real repository.
type fakeItemsRepo struct {
	items map[string]*models.Item
	clock time.Time
}

func newFakeItemsRepo() *fakeItemsRepo {
	return &fakeItemsRepo{
		items: make(map[string]*models.Item),
		clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeItemsRepo) tick() time.Time {
	f.clock = f.clock.Add(time.Microsecond)
	return f.clock
}

func copyItem(item *models.Item) *models.Item {
	c := *item
	return &c
}

func (f *fakeItemsRepo) Upsert(ctx context.Context, item *models.Item) (*models.Item, error) {
	existing, ok := f.items[item.UUID]
	if ok && existing.UserUUID != item.UserUUID {
		return nil, common.ErrorForbidden
	}
	stored := copyItem(item)
	if ok {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = f.tick()
	}
	stored.UpdatedAt = f.tick()
	f.items[item.UUID] = stored
	return copyItem(stored), nil
}

func (f *fakeItemsRepo) Get(ctx context.Context, uuid string) (*models.Item, error) {
	item, ok := f.items[uuid]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyItem(item), nil
}

func (f *fakeItemsRepo) GetForUpdate(ctx context.Context, uuid string) (*models.Item, error) {
	return f.Get(ctx, uuid)
}

func (f *fakeItemsRepo) Tombstone(ctx context.Context, userUUID, uuid, userAgent string) (*models.Item, error) {
	item, ok := f.items[uuid]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if item.UserUUID != userUUID {
		return nil, common.ErrorForbidden
	}
	item.State = models.ItemTombstoned
	item.Content = ""
	item.EncItemKey = ""
	item.AuthHash = ""
	item.LastUserAgent = userAgent
	item.UpdatedAt = f.tick()
	return copyItem(item), nil
}

func (f *fakeItemsRepo) ListSince(ctx context.Context, userUUID string, cursorUpdatedAt time.Time, cursorUUID string, filter itemsrepo.ListFilter) ([]*models.Item, error) {
	var result []*models.Item
	for _, item := range f.items {
		if item.UserUUID != userUUID {
			continue
		}
		after := item.UpdatedAt.After(cursorUpdatedAt) ||
			(item.UpdatedAt.Equal(cursorUpdatedAt) && item.UUID > cursorUUID)
		if !after {
			continue
		}
		if filter.ContentType != nil && item.ContentType != *filter.ContentType {
			continue
		}
		result = append(result, copyItem(item))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.Before(result[j].UpdatedAt)
		}
		return result[i].UUID < result[j].UUID
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// --- fake extension settings repository (in-memory) ---

type fakeExtensionsRepo struct {
	settings  map[string]*models.ExtensionSettings
	createErr error
}

func newFakeExtensionsRepo() *fakeExtensionsRepo {
	return &fakeExtensionsRepo{settings: make(map[string]*models.ExtensionSettings)}
}

func (f *fakeExtensionsRepo) Create(ctx context.Context, s *models.ExtensionSettings) (*models.ExtensionSettings, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	f.settings[s.UUID] = s
	return s, nil
}

func (f *fakeExtensionsRepo) Get(ctx context.Context, uuid string) (*models.ExtensionSettings, error) {
	s, ok := f.settings[uuid]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return s, nil
}

func (f *fakeExtensionsRepo) GetByExtensionID(ctx context.Context, extensionID string) (*models.ExtensionSettings, error) {
	for _, s := range f.settings {
		if s.ExtensionID == extensionID {
			return s, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeExtensionsRepo) SetMuteEmails(ctx context.Context, uuid string, mute bool) (*models.ExtensionSettings, error) {
	s, ok := f.settings[uuid]
	if !ok {
		return nil, common.ErrorNotFound
	}
	s.MuteEmails = mute
	s.UpdatedAt = time.Now()
	return s, nil
}

// --- fake repository manager ---

type fakeRepoManager struct {
	u  *fakeUsersRepo
	s  *fakeSessionsRepo
	i  *fakeItemsRepo
	es *fakeExtensionsRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository { return m.u }

func (m *fakeRepoManager) Sessions(db dbx.DBTX) sessionsrepo.Repository { return m.s }

func (m *fakeRepoManager) Items(db dbx.DBTX) itemsrepo.Repository { return m.i }

func (m *fakeRepoManager) ExtensionSettings(db dbx.DBTX) extensionsrepo.Repository { return m.es }

// --- fake notifier ---

type fakeNotifier struct {
	passwordChanged []string
	locked          []string
	lockedUntil     time.Time
	err             error
}

func (f *fakeNotifier) PasswordChanged(to string, userAgent string) error {
	f.passwordChanged = append(f.passwordChanged, to)
	return f.err
}

func (f *fakeNotifier) AccountLocked(to string, until time.Time) error {
	f.locked = append(f.locked, to)
	f.lockedUntil = until
	return f.err
}
