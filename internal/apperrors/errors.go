// Package apperrors defines the error kinds shared by the repository,
// service and HTTP layers.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("already exists")
	ErrPersistence = errors.New("persistence failure")
)

// ValidationError reports invalid input. Line is 1-based and set only when
// the input came from a CSV file.
type ValidationError struct {
	Line   int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	msg := e.Reason
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, msg)
	}
	return msg
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports an unknown category, user or association.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError reports an attempt to add a domain that is already active
// for the category.
type ConflictError struct {
	Domain     string
	CategoryID uint
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("domain %q is already associated with category %d", e.Domain, e.CategoryID)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// PersistenceError wraps a failed store operation.
type PersistenceError struct {
	Op   string
	Line int
	Err  error
}

func (e *PersistenceError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s (line %d): %v", e.Op, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// Persistence wraps err as a PersistenceError for op. It returns nil for a
// nil err and leaves errors of the other kinds untouched.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrValidation) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// AtLine attaches a CSV line number to a persistence or validation error.
func AtLine(err error, line int) error {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		cp := *pe
		cp.Line = line
		return &cp
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		cp := *ve
		cp.Line = line
		return &cp
	}
	return err
}
