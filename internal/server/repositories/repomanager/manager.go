package repomanager

import (
	"context"
	"database/sql"

	"github.com/stacknotes/syncserver/internal/dbx"
	"github.com/stacknotes/syncserver/internal/server/repositories/extensionsettings"
	"github.com/stacknotes/syncserver/internal/server/repositories/items"
	"github.com/stacknotes/syncserver/internal/server/repositories/sessions"
	"github.com/stacknotes/syncserver/internal/server/repositories/users"
)

// RepositoryManager hands out repositories bound to a concrete handle, so a
// service can obtain transactional repositories by passing its tx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Items(db dbx.DBTX) items.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	ExtensionSettings(db dbx.DBTX) extensionsettings.Repository
}
