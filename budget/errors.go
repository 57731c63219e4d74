/*
errors.go - Centralized error types for the budget domain

PURPOSE:
  All sentinel errors in one place. The store and the engines wrap these
  with context via fmt.Errorf("%w", ...); the API layer classifies them
  into HTTP statuses with the Is* helpers.

USAGE:
    if budget.IsNotFound(err) {
        writeError(w, http.StatusNotFound, ...)
    }
*/
package budget

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced entity doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for business rule violations in client input.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned for uniqueness violations (duplicate username,
	// duplicate category code).
	ErrConflict = errors.New("conflict")

	// ErrCategoryInUse is returned when deleting a category that still has
	// child categories or cost items referencing it.
	ErrCategoryInUse = errors.New("category has children or cost items")

	// ErrInvalidCredentials is returned on a failed login.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrAccountDisabled is returned when a disabled account logs in.
	ErrAccountDisabled = errors.New("account disabled")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// CategoryLevelError reports a parent/level mismatch in the category tree.
type CategoryLevelError struct {
	ParentID    int64
	ParentLevel int
	ChildLevel  int
}

func (e *CategoryLevelError) Error() string {
	return fmt.Sprintf("parent %d has level %d, child level must be %d (got %d)",
		e.ParentID, e.ParentLevel, e.ParentLevel+1, e.ChildLevel)
}

func (e *CategoryLevelError) Unwrap() error { return ErrValidation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether err indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError reports whether err is caused by invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrCategoryInUse)
}
