package persistence

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRunNotFound indicates no run summary exists for the given id.
	ErrRunNotFound = errors.New("run not found")

	// ErrInvalidRunID indicates an id that cannot be used as a storage key.
	ErrInvalidRunID = errors.New("invalid run id")
)

// RunError wraps a store failure with the operation and run it concerns.
type RunError struct {
	Op    string
	RunID string
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s operation failed for run %s: %v", e.Op, e.RunID, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func (e *RunError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewRunError(op, runID string, err error) *RunError {
	return &RunError{Op: op, RunID: runID, Err: err}
}

// IsRunNotFound checks if an error indicates a run was not found.
func IsRunNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}

// ValidateID rejects empty ids and ids that could escape a directory or
// key namespace.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidRunID)
	}

	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\:`) {
		return fmt.Errorf("%w: %q contains invalid characters", ErrInvalidRunID, id)
	}

	return nil
}
