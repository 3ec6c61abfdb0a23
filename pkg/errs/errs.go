// Package errs defines the error kinds surfaced to callers of the task service.
// Callers test for a kind with errors.Is; store failures are reported as
// *PersistenceError and never carry SQL text in their message.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrForeignKey = errors.New("unknown reference")
	ErrPermission = errors.New("permission denied")
)

// Validation wraps ErrValidation with a formatted detail message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound naming the missing entity.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// ForeignKey wraps ErrForeignKey naming the reference that did not resolve.
func ForeignKey(kind, ref string) error {
	return fmt.Errorf("%s %s: %w", kind, ref, ErrForeignKey)
}

// PersistenceError reports a store failure not covered by the other kinds.
// Error() is deliberately generic; Unwrap exposes the driver error for logs.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return "persistence failure during " + e.Op
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence wraps err as a *PersistenceError unless it already is a
// domain error kind, in which case it is returned unchanged.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomain(err) {
		return err
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsDomain reports whether err is one of the caller-recoverable kinds.
func IsDomain(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForeignKey) ||
		errors.Is(err, ErrPermission)
}
