package sqlite

import (
	"errors"
	"strings"

	"github.com/aussiebroadwan/yieldbook/internal/auth/store"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// mapWriteError turns a unique constraint failure into a *store.ConstraintError
// naming the offending column. SQLite reports it as
// "UNIQUE constraint failed: users.email".
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}

	var sqlErr *sqlite.Error
	if !errors.As(err, &sqlErr) {
		return err
	}

	code := sqlErr.Code()
	if code != sqlite3.SQLITE_CONSTRAINT_UNIQUE &&
		code != sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY &&
		!(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqlErr.Error(), "UNIQUE")) {
		return err
	}

	msg := sqlErr.Error()
	switch {
	case strings.Contains(msg, "users.email"):
		return &store.ConstraintError{Column: "email"}
	case strings.Contains(msg, "users.username"):
		return &store.ConstraintError{Column: "username"}
	default:
		return &store.ConstraintError{}
	}
}
