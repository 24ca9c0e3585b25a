package apperr

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// FromDB classifies an error returned by a write or read statement.
// A foreign key violation means the referenced row is missing.
func FromDB(op string, err error) error {
	return classify(op, err, Reference)
}

// FromDelete classifies an error returned by a delete. A foreign key
// violation here means dependent rows still exist, which is a conflict.
func FromDelete(op string, err error) error {
	return classify(op, err, Conflict)
}

func classify(op string, err error, fkKind Kind) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, sql.ErrNoRows):
		return Wrap(NotFound, op, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return Wrap(Conflict, op, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return Wrap(fkKind, op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if k, ok := postgresKind(pgErr.Code, fkKind); ok {
			return Wrap(k, op, err)
		}
		return err
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		if k, ok := sqliteKind(liteErr, fkKind); ok {
			return Wrap(k, op, err)
		}
	}

	if isTransient(err) {
		return Wrap(Transient, op, err)
	}
	return err
}

func postgresKind(code string, fkKind Kind) (Kind, bool) {
	switch code {
	case "23505":
		return Conflict, true
	case "23503":
		return fkKind, true
	case "23514", "23502", "22001", "22003", "22P02", "22007", "22008":
		return Validation, true
	case "40001", "40P01", "57014", "57P01", "53300":
		return Transient, true
	}
	// connection exceptions
	if strings.HasPrefix(code, "08") {
		return Transient, true
	}
	return "", false
}

func sqliteKind(e sqlite3.Error, fkKind Kind) (Kind, bool) {
	switch e.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return Conflict, true
	case sqlite3.ErrConstraintForeignKey:
		return fkKind, true
	case sqlite3.ErrConstraintCheck, sqlite3.ErrConstraintNotNull:
		return Validation, true
	}
	switch e.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return Transient, true
	}
	return "", false
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
