package entities

import "errors"

// Sentinel errors returned by the circulation core. Callers classify
// failures with errors.Is; every error is wrapped with the identity of the
// entity it concerns before it crosses a package boundary.
var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrNotEligible is returned when a lend is attempted for an inactive borrower.
	ErrNotEligible = errors.New("borrower is not eligible to borrow")

	// ErrOutOfStock is returned when a lend is attempted with no copies available.
	ErrOutOfStock = errors.New("no copies available")

	// ErrAlreadyReturned is returned when a return is attempted on a closed loan.
	ErrAlreadyReturned = errors.New("loan already returned")

	// ErrConflict blocks retiring a book or deactivating a borrower while
	// an active loan references it.
	ErrConflict = errors.New("active loans reference this record")

	// ErrInvariantViolation indicates an availability update would leave
	// the counter outside [0, total]. It is never clamped away.
	ErrInvariantViolation = errors.New("availability invariant violated")

	// ErrStorage wraps transient infrastructure failures. The core never
	// retries; retry policy belongs to the caller.
	ErrStorage = errors.New("storage failure")
)
