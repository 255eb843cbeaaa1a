package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every failure the core returns wraps one of these
// sentinels, so callers branch with errors.Is and the HTTP layer maps
// each family to a status code in one place.
var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrValidation        = errors.New("validation failed")
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrStaleState is the optimistic-concurrency loss: the record's status
	// changed between the caller's read and the guarded write. The caller
	// must re-fetch before retrying; the core never retries on its behalf.
	ErrStaleState = errors.New("stale state")
)

// Discovery-specific validation errors. Each wraps ErrValidation, so
// errors.Is(err, ErrValidation) holds for all of them.
var (
	ErrInvalidCoordinates = fmt.Errorf("%w: invalid coordinates", ErrValidation)
	ErrInvalidRadius      = fmt.Errorf("%w: invalid radius", ErrValidation)
	ErrInvalidBounds      = fmt.Errorf("%w: invalid bounds", ErrValidation)
	ErrInvalidFilterValue = fmt.Errorf("%w: invalid filter value", ErrValidation)
)

// Validationf wraps ErrValidation with a formatted detail message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Forbiddenf wraps ErrForbidden with a formatted detail message.
func Forbiddenf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}
