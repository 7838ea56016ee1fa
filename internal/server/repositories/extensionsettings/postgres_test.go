package extensionsettings

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/stacknotes/syncserver/internal/common"
	"github.com/stacknotes/syncserver/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func settingsRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"uuid", "extension_id", "mute_emails", "created_at", "updated_at"})
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()

	mock.ExpectQuery(`INSERT INTO extension_settings .* RETURNING created_at, updated_at`).
		WithArgs("e1", "ext-123", true).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	settings, err := repo.Create(context.Background(), &models.ExtensionSettings{
		UUID: "e1", ExtensionID: "ext-123", MuteEmails: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !settings.CreatedAt.Equal(now) {
		t.Fatalf("created_at not populated: %+v", settings)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM extension_settings\s+WHERE uuid = \$1`).
		WithArgs("missing").
		WillReturnRows(settingsRows())

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestGetByExtensionID_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()

	mock.ExpectQuery(`SELECT .* FROM extension_settings\s+WHERE extension_id = \$1`).
		WithArgs("ext-123").
		WillReturnRows(settingsRows().AddRow("e1", "ext-123", false, now, now))

	settings, err := repo.GetByExtensionID(context.Background(), "ext-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.UUID != "e1" || settings.MuteEmails {
		t.Fatalf("unexpected settings: %+v", settings)
	}
}

func TestSetMuteEmails_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()

	mock.ExpectQuery(`UPDATE extension_settings\s+SET mute_emails = \$2`).
		WithArgs("e1", true).
		WillReturnRows(settingsRows().AddRow("e1", "ext-123", true, now, now))

	settings, err := repo.SetMuteEmails(context.Background(), "e1", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !settings.MuteEmails {
		t.Fatalf("mute flag not updated: %+v", settings)
	}
}
