package core

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("already exists")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidPeriod      = errors.New("invalid period")
	ErrInvalidDate        = errors.New("invalid date")

	// ErrBelowOneCent marks a non-zero amount that rounds to zero cents. It
	// is always wrapped together with ErrInvalidAmount.
	ErrBelowOneCent = errors.New("amount below one cent")
)

// ValidationError carries field-level problems back to the caller.
// It matches ErrValidation under errors.Is.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records a problem for field. The first message per field wins.
func (e *ValidationError) Add(field, msg string) {
	if _, exists := e.Fields[field]; exists {
		return
	}
	e.Fields[field] = msg
}

// OrNil returns e as an error when it holds at least one problem.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// FieldError is a shorthand for a validation error on a single field.
func FieldError(field, msg string) error {
	verr := NewValidationError()
	verr.Add(field, msg)
	return verr
}
