package schema

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/VividCortex/mysqlerr"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrSchemaConflict       = errors.New("schema conflict")
	ErrReferentialIntegrity = errors.New("referential integrity violation")
	ErrConnectivity         = errors.New("connectivity failure")
)

// Error ties a failed schema mutation to its table and column. Err is the
// underlying engine error, untouched.
type Error struct {
	Kind   error
	Op     string
	Table  string
	Column string
	Err    error
}

func (e *Error) Error() string {
	target := e.Table
	if e.Column != "" {
		target += "." + e.Column
	}
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, target, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, target, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return e.Kind != nil && target == e.Kind }

func conflict(op, table, column, format string, args ...any) error {
	return &Error{Kind: ErrSchemaConflict, Op: op, Table: table, Column: column, Err: fmt.Errorf(format, args...)}
}

// Classify maps an engine error onto the error taxonomy. It returns nil when
// the error does not fit any kind.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) ||
		errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrConnectivity
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrConnectivity
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlerr.ER_DUP_FIELDNAME, mysqlerr.ER_CANT_DROP_FIELD_OR_KEY, mysqlerr.ER_NO_SUCH_TABLE, mysqlerr.ER_BAD_FIELD_ERROR:
			return ErrSchemaConflict
		case mysqlerr.ER_CANNOT_ADD_FOREIGN, mysqlerr.ER_NO_REFERENCED_ROW_2, mysqlerr.ER_ROW_IS_REFERENCED_2:
			return ErrReferentialIntegrity
		case mysqlerr.ER_LOCK_DEADLOCK, mysqlerr.ER_LOCK_WAIT_TIMEOUT, mysqlerr.ER_SERVER_SHUTDOWN:
			return ErrConnectivity
		}
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42701", "42703", "42P01", "42P07": // duplicate_column, undefined_column, undefined_table, duplicate_table
			return ErrSchemaConflict
		case "42830", "23503": // invalid_foreign_key, foreign_key_violation
			return ErrReferentialIntegrity
		}
		if strings.HasPrefix(pgErr.Code, "08") || pgErr.Code == "40P01" || pgErr.Code == "57P01" {
			return ErrConnectivity
		}
		return nil
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		if liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
			return ErrReferentialIntegrity
		}
		msg := liteErr.Error()
		switch {
		case strings.Contains(msg, "duplicate column name"), strings.Contains(msg, "no such table"), strings.Contains(msg, "no such column"):
			return ErrSchemaConflict
		case strings.Contains(msg, "foreign key mismatch"):
			return ErrReferentialIntegrity
		}
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_IOERR, sqlite3.SQLITE_CANTOPEN:
			return ErrConnectivity
		}
	}
	return nil
}

// wrap attaches op/table/column to err, classifying it when possible.
func wrap(op, table, column string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	kind := Classify(err)
	if kind == nil {
		return err
	}
	return &Error{Kind: kind, Op: op, Table: table, Column: column, Err: err}
}
