/*
errors.go - Centralized error types for the points engine

All errors in one place for consistency. The registry package and the API
layer share this taxonomy rather than defining their own.

CATEGORIES:
  1. Lookup errors      - referenced records that do not exist
  2. Precondition errors - business rule violations (insufficient points)
  3. Persistence errors  - document store failures
  4. Decode errors       - unreadable stored documents (recovered locally)
*/
package points

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when an operation references an entity or
	// record id that does not exist. Delete paths tolerate it silently;
	// write paths surface it.
	ErrNotFound = errors.New("record not found")

	// ErrInsufficientPoints is returned when an exchange requests a debit
	// exceeding the current balance. The mutation does not proceed and no
	// change record is emitted.
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrPersistenceFailure is returned when the document store write did
	// not complete. In-memory state is left unchanged (the mutation is
	// committed only after a successful write).
	ErrPersistenceFailure = errors.New("persistence failure")

	// ErrDecodeFailure indicates a stored document could not be decrypted
	// nor parsed. It is recovered internally by substituting an empty
	// collection and is logged, never surfaced as fatal.
	ErrDecodeFailure = errors.New("document decode failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientPointsError details a redemption shortage.
type InsufficientPointsError struct {
	OwnerID   string
	Available int
	Requested int
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: available %d, requested %d",
		e.Available, e.Requested)
}

func (e *InsufficientPointsError) Unwrap() error {
	return ErrInsufficientPoints
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError reports whether the error is due to invalid client input
// rather than a system failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInsufficientPoints)
}
