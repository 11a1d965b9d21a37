/*
errors.go - Centralized error types for the ledger and badge stores

PURPOSE:
  All error types in one place for consistency and discoverability.
  Store implementations translate driver errors into these so callers
  never inspect driver-specific codes.

ERROR CATEGORIES:
  1. Validation errors - Malformed input, rejected before any write
  2. Conflict errors   - Uniqueness violations (already awarded, duplicate key)
  3. Stale references  - The referenced chore or kid no longer exists
  4. Ownership errors  - An id already belongs to another family
  5. Transient errors  - Busy, locked, timed out; caller may retry

USAGE:
  if errors.Is(err, generic.ErrAlreadyAwarded) {
      // another request won the race, nothing to do
  }

SEE ALSO:
  - store.go: Interfaces documenting which call returns which error
  - store/sqlite/sqlite.go: Driver error translation
  - badges/evaluator.go: Treats conflicts as no-op success
*/
package generic

import (
	"context"
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrAlreadyAwarded is returned when an achievement row for the same
	// (kid, badge) already exists. Callers treat it as success.
	ErrAlreadyAwarded = errors.New("achievement already awarded")

	// ErrDuplicateIdempotencyKey is returned when a point entry with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrStaleReference is returned when a write references a chore or kid
	// that was deleted concurrently.
	ErrStaleReference = errors.New("stale reference")

	// ErrOwnershipConflict is returned when a save reuses the id of a kid or
	// chore owned by another family. The existing record is left unchanged.
	ErrOwnershipConflict = errors.New("record belongs to another family")

	// ErrTransientStorage is returned when the store is busy, locked or
	// unavailable.
	ErrTransientStorage = errors.New("transient storage error")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes which input was rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StaleReferenceError names the vanished record.
type StaleReferenceError struct {
	KidID   KidID
	ChoreID ChoreID
	Err     error
}

func (e *StaleReferenceError) Error() string {
	return fmt.Sprintf("stale reference: kid %s chore %s: %v", e.KidID, e.ChoreID, e.Err)
}

func (e *StaleReferenceError) Unwrap() []error { return []error{ErrStaleReference, e.Err} }

// TransientError wraps a storage failure that may succeed on retry.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() []error { return []error{ErrTransientStorage, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConflict returns true for uniqueness violations that callers treat as a no-op.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyAwarded) || errors.Is(err, ErrDuplicateIdempotencyKey)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientStorage) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrStaleReference)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
