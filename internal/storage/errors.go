package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/wmarzella/ronin/internal/common"
)

// classify maps driver-level failures onto the shared error kinds so
// callers can branch with errors.Is instead of engine-specific checks.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}

	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", common.ErrConflict, err)
	}

	if isTransient(err) {
		return fmt.Errorf("%w: %v", common.ErrTransient, err)
	}

	return err
}

// isUniqueViolation detects duplicate-key failures from either engine.
// modernc reports "UNIQUE constraint failed", pgx reports SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "duplicate key value")
}

// isTransient detects connectivity-level failures expected to clear.
func isTransient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "failed to connect")
}
