package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates that a requested transaction or entry does not exist.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrConflict indicates an optimistic-concurrency collision: the entry was
// consumed or the transaction status changed between read and write. The
// caller may refetch and retry.
var ErrConflict = errors.New("concurrent modification conflict")

// ErrInvalidState indicates an operation requested from a status that does
// not permit it.
var ErrInvalidState = errors.New("operation not allowed in current state")

// RowError is a per-row import failure. Batches always commit their valid
// rows; RowErrors are reported alongside the success counts.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}
