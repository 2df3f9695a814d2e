package common

import (
	"errors"
	"fmt"
)

// Error kinds used across storage and services. Callers classify with
// errors.Is; the CLI maps them to exit codes and the scheduler uses them
// to decide whether a retry is worthwhile.
var (
	// ErrValidation marks input that failed structural validation.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a lookup that matched no row.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a uniqueness violation. The conflicting write is
	// reported, never silently applied over the existing row.
	ErrConflict = errors.New("conflict")

	// ErrInvariant marks an operation that would break a store invariant,
	// such as opening a second batch while one is active.
	ErrInvariant = errors.New("invariant violated")

	// ErrTransient marks an external failure that is expected to clear,
	// such as an unreachable database or a rate-limited API.
	ErrTransient = errors.New("transient failure")

	// ErrPermanent marks an external failure that will not clear on retry,
	// such as a schema mismatch or an embedding version conflict.
	ErrPermanent = errors.New("permanent failure")
)

// ValidationError wraps a field-level validation failure.
func ValidationError(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrValidation, field, reason)
}

// ConflictError reports a uniqueness violation on the named key.
func ConflictError(entity, key string) error {
	return fmt.Errorf("%w: %s with key %q already exists", ErrConflict, entity, key)
}

// NotFoundError reports a missing row.
func NotFoundError(entity, key string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, entity, key)
}

// IsRetryable reports whether an operation that returned err is worth
// retrying. Only transient failures qualify.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsNotFound reports whether err is a missing-row lookup.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
