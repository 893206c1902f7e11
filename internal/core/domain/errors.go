package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// Pipeline error taxonomy.

	// ErrValidation indicates a request with a bad shape, such as fewer than
	// two drug names. It is surfaced immediately and never retried.
	ErrValidation = errors.New("validation error")

	// ErrProvider indicates an external data source was unreachable,
	// returned a non-success status or produced a malformed payload.
	ErrProvider = errors.New("provider error")

	// ErrTimeout indicates a task, stage or pipeline deadline was exceeded.
	ErrTimeout = errors.New("timed out")

	// ErrLogic indicates a programmer-caused failure such as a malformed task.
	ErrLogic = errors.New("logic error")

	// ErrDrugNotFound indicates a drug name could not be resolved.
	ErrDrugNotFound = fmt.Errorf("drug %w", ErrNotFound)

	// ErrPatientNotFound indicates a patient id is absent from the snapshot source.
	ErrPatientNotFound = fmt.Errorf("patient %w", ErrNotFound)

	// ErrInsufficientDrugs indicates fewer than two drugs were supplied or resolved.
	ErrInsufficientDrugs = fmt.Errorf("%w: at least 2 drugs are required", ErrValidation)

	// ErrCacheMiss indicates a cache key is absent or expired.
	ErrCacheMiss = errors.New("cache miss")
)

// StageError records which pipeline stage produced an error.
type StageError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with the stage that produced it.
func NewStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// IsRetryable reports whether the pipeline may re-enter a stage after err.
// Validation and logic failures are deterministic and never retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrValidation) && !errors.Is(err, ErrLogic)
}
