package lifecycle

import (
	"errors"
	"fmt"

	"github.com/dalemusser/fermehub/internal/app/lifecycle/conflict"
	"github.com/dalemusser/fermehub/internal/domain/models"
)

var (
	// ErrInvalidRequest is returned for malformed input. Nothing is written.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotFound is returned when a referenced worker, farm or stock item
	// does not exist.
	ErrNotFound = errors.New("not found")
	// ErrActiveDuplicate is returned when an active worker already carries
	// the national ID.
	ErrActiveDuplicate = errors.New("national id already used by an active worker")
	// ErrIdentityInUse is returned when an edit would give a worker the
	// national ID of another, inactive record.
	ErrIdentityInUse = errors.New("national id already used by another worker record")
	// ErrInvalidTransition is returned when the requested lifecycle change
	// is not allowed from the worker's current state.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
)

// DuplicateError carries the record that blocked a registration or an
// identity edit.
type DuplicateError struct {
	Disposition conflict.Disposition
	Existing    models.Worker
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("national id %s is already used by worker %s (%s, %s)",
		e.Existing.NationalID, e.Existing.ID.Hex(), e.Existing.FullName, e.Existing.Status)
}

func (e *DuplicateError) Unwrap() error {
	if e.Existing.IsActive() {
		return ErrActiveDuplicate
	}
	return ErrIdentityInUse
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
