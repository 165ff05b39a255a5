package store

import (
	"database/sql"
	"errors"

	"github.com/joshjon/kit/errtag"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/devloopai/agentcore/internal/task"
)

// tagErr classifies a raw database/sql or modernc.org/sqlite error into the
// task package's tagged error kinds, the way the teacher's *_repo.go files
// classify errors returned by sqlc-generated queries against errtag types
// owned by the domain package, not the repository package.
func tagErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errtag.Tag[task.ErrTagTaskNotFound](err)
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return errtag.Tag[task.ErrTagTaskConflict](err)
		}
	}

	return err
}
