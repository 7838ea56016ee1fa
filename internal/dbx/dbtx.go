// Package dbx is the database plumbing under the repositories: the DBTX
// handle they execute against, and the transaction wrapper the services use
// to group repository calls (a sync push, a login-attempt update) into one
// atomic unit.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is the query surface repositories run on. Handing a repository a
// *sql.Tx scopes it to that transaction; handing it the *sql.DB makes every
// call standalone.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction: committed when fn returns nil, rolled
// back when it returns an error or panics (the panic is rethrown).
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    repo := m.Items(tx)
//	    ...
//	    return nil
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}
