package booking

import (
	"context"
	"errors"
	"fmt"

	"fieldbooking/internal/domain"
)

// Code is the stable, machine-readable kind of a booking failure.
type Code string

const (
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeConflict            Code = "CONFLICT_DETECTED"
	CodePaymentNotCompleted Code = "PAYMENT_NOT_COMPLETED"
	CodeInvalidTransition   Code = "INVALID_TRANSITION"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeNotFound            Code = "NOT_FOUND"
	CodePersistence         Code = "PERSISTENCE_FAILURE"
)

// Error is the only error type returned by the booking entry point.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" && e.Err == nil {
		return string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Code, so the kind sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Kind sentinels for errors.Is.
var (
	ErrValidation          = &Error{Code: CodeValidation}
	ErrConflict            = &Error{Code: CodeConflict}
	ErrPaymentNotCompleted = &Error{Code: CodePaymentNotCompleted}
	ErrInvalidTransition   = &Error{Code: CodeInvalidTransition}
	ErrUnauthorized        = &Error{Code: CodeUnauthorized}
	ErrNotFound            = &Error{Code: CodeNotFound}
	ErrPersistence         = &Error{Code: CodePersistence}
)

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewError builds a typed failure for collaborators that share the taxonomy.
func NewError(code Code, format string, args ...any) *Error {
	return newError(code, format, args...)
}

// CodeOf returns the Code of err, or "" when err is not a booking error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// FromStore converts a store error into the taxonomy. Typed errors pass through.
func FromStore(err error, what string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return &Error{Code: CodeNotFound, Message: what + " not found", Err: err}
	case errors.Is(err, domain.ErrStaleState):
		return &Error{Code: CodeInvalidTransition, Message: "booking state changed concurrently", Err: err}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &Error{Code: CodePersistence, Message: "request abandoned before commit", Err: err}
	}
	return &Error{Code: CodePersistence, Message: "could not commit " + what, Err: err}
}
