package service

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors, used with errors.Is()
var (
	// ErrNotFound is returned when a referenced debt, user or work record
	// does not exist or does not belong to the tenant.
	ErrNotFound = errors.New("not found")

	// ErrLockTimeout is returned when a row lock could not be acquired
	// within the transaction's lock_timeout bound. Nothing was persisted;
	// the caller may retry.
	ErrLockTimeout = errors.New("lock acquisition timed out")
)

// ValidationError is returned for input rejected before any state change.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// IsValidation returns true if the error is a validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NotFoundError wraps ErrNotFound with the entity that was missing.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// Postgres error codes surfaced by the transaction timeout bounds.
const (
	pgCodeLockNotAvailable = "55P03"
	pgCodeQueryCanceled    = "57014"
)

// classifyTimeout maps lock and statement timeout failures to ErrLockTimeout
// so callers see one retryable error instead of driver internals.
func classifyTimeout(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgCodeLockNotAvailable || pgErr.Code == pgCodeQueryCanceled {
			return fmt.Errorf("%w: %s", ErrLockTimeout, pgErr.Message)
		}
	}
	return err
}
