package docstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
)

// Code is the cause of a failed store call.
type Code string

// Known causes of failed store calls.
const (
	CodePermissionDenied Code = "permission-denied"
	CodeUnavailable      Code = "unavailable"
	CodeNotFound         Code = "not-found"
	CodeCancelled        Code = "cancelled"
	CodeUnknown          Code = "unknown"
)

// BackendError is returned when the store rejected or failed a call.
type BackendError struct {
	Op   string
	Code Code
	Err  error
}

func (e *BackendError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first BackendError in the chain of err, or CodeUnknown.
func CodeOf(err error) Code {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Code
	}
	return CodeUnknown
}

// IsNotFound reports whether err is a BackendError for a missing document.
func IsNotFound(err error) bool {
	return err != nil && CodeOf(err) == CodeNotFound
}

// NewNotFound returns the BackendError reported for a missing document.
func NewNotFound(op, collection, id string) error {
	return &BackendError{Op: op, Code: CodeNotFound, Err: fmt.Errorf("no document %s/%s", collection, id)}
}

// classify turns a driver error into a BackendError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	return &BackendError{Op: op, Code: codeFor(err), Err: err}
}

func codeFor(err error) Code {
	if errors.Is(err, context.Canceled) {
		return CodeCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeUnavailable
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, sql.ErrConnDone) {
		return CodeUnavailable
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1044, 1045, 1142, 1143, 1227:
			return CodePermissionDenied
		case 1049, 1146:
			return CodeNotFound
		case 1040, 1053, 1205, 2002, 2003, 2006, 2013:
			return CodeUnavailable
		}
		return CodeUnknown
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrPerm, sqlite3.ErrReadonly, sqlite3.ErrAuth:
			return CodePermissionDenied
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen, sqlite3.ErrIoErr:
			return CodeUnavailable
		case sqlite3.ErrError:
			if strings.Contains(liteErr.Error(), "no such table") {
				return CodeNotFound
			}
		}
		return CodeUnknown
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return CodeUnavailable
	}
	return CodeUnknown
}
