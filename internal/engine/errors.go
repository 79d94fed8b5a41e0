package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/formstate/internal/field"
)

// ErrWaitInTransaction is returned by Wait and WaitRunning when called from
// the goroutine that is running a transaction; the work being waited for
// needs that transaction to finish first.
var ErrWaitInTransaction = errors.New("engine: wait called inside a transaction")

// FieldError reports a programming mistake in how a field is referenced or
// configured. These are returned immediately and never swallowed.
type FieldError struct {
	// Code identifies the error category.
	Code FieldErrorCode

	// Field is the field the caller named.
	Field field.Name

	// Message is a human-readable description.
	Message string
}

// FieldErrorCode categorizes field errors.
type FieldErrorCode string

const (
	// ErrCodeUnknownField indicates a name that is not part of the form.
	ErrCodeUnknownField FieldErrorCode = "UNKNOWN_FIELD"

	// ErrCodeNotMounted indicates an unmount without a matching mount.
	ErrCodeNotMounted FieldErrorCode = "NOT_MOUNTED"

	// ErrCodeInvalidWatch indicates a watch declaration naming an unknown
	// field or event.
	ErrCodeInvalidWatch FieldErrorCode = "INVALID_WATCH"
)

// Error implements the error interface.
func (e *FieldError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewUnknownFieldError creates a FieldError for a name outside the form.
func NewUnknownFieldError(name field.Name) *FieldError {
	return &FieldError{
		Code:    ErrCodeUnknownField,
		Field:   name,
		Message: "field is not part of the form",
	}
}

// IsUnknownField returns true if err is an unknown-field error.
// Uses errors.As to handle wrapped errors.
func IsUnknownField(err error) bool {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Code == ErrCodeUnknownField
	}
	return false
}

// IsNotMounted returns true if err is a not-mounted error.
func IsNotMounted(err error) bool {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Code == ErrCodeNotMounted
	}
	return false
}

// IsInvalidWatch returns true if err is an invalid-watch error.
func IsInvalidWatch(err error) bool {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Code == ErrCodeInvalidWatch
	}
	return false
}
