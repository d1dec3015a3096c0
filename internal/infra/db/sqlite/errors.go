package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"gate-admission/internal/domain"
)

// mapError translates modernc.org/sqlite errors into domain sentinels. SQLite
// reports unique violations by column list, not index name.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	msg := se.Error()
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		switch {
		case strings.Contains(msg, "credentials.holder_kind"):
			return fmt.Errorf("%w: %s", domain.ErrDuplicateActiveCredential, msg)
		case strings.Contains(msg, "credentials.qr_code"), strings.Contains(msg, "credentials.manual_code"):
			return fmt.Errorf("%w: %s", domain.ErrCodeCollision, msg)
		}
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, msg)
	case sqlite3.SQLITE_CONSTRAINT_CHECK:
		return fmt.Errorf("%w: %s", domain.ErrInvalidArgument, msg)
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return fmt.Errorf("%w: %s", domain.ErrLockTimeout, msg)
	case sqlite3.SQLITE_IOERR, sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_FULL, sqlite3.SQLITE_READONLY:
		return fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, msg)
	}
	return err
}
