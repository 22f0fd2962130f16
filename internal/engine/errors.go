package engine

import (
	"errors"
	"fmt"

	"ideaflow/internal/repo"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrInvalidState      = errors.New("invalid state")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrAlreadyOwned      = errors.New("already owned")
	ErrNotFound          = repo.ErrNotFound
	ErrFileTooLarge      = errors.New("file too large")
	ErrUnsupportedType   = errors.New("unsupported file type")
	ErrConflict          = errors.New("conflict")
)

// BackendError wraps a persistence or storage failure the caller cannot act on.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// backend wraps err unless it already carries a domain meaning.
func backend(op string, err error) error {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) || isDomainError(err) {
		return err
	}
	return &BackendError{Op: op, Err: err}
}

func isDomainError(err error) bool {
	for _, target := range []error{
		ErrValidation, ErrPermissionDenied, ErrInvalidState, ErrInvalidTransition,
		ErrAlreadyOwned, ErrNotFound, ErrFileTooLarge, ErrUnsupportedType, ErrConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}
