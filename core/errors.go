package core

import "errors"

var (
	// ErrNotFound is returned when no canvas has the requested id.
	ErrNotFound = errors.New("canvas not found")

	// ErrOutOfBounds is returned when a pixel falls outside the target canvas.
	ErrOutOfBounds = errors.New("pixel out of bounds")

	// ErrDuplicateID marks a generated id that is already taken. It is resolved by
	// regeneration and never returned to callers of the service.
	ErrDuplicateID = errors.New("duplicate canvas id")

	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrStorageCorrupt     = errors.New("storage corrupt")
)

// IsStorageError reports whether err came from the persistence layer.
func IsStorageError(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) || errors.Is(err, ErrStorageCorrupt)
}
