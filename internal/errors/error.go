package errors

import (
	stderrors "errors"
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryConfig   Category = "config"
	CategoryConnect  Category = "connect"
	CategorySession  Category = "session"
	CategoryCommand  Category = "command"
	CategoryStore    Category = "store"
	CategoryInternal Category = "internal"
)

// BurpError is a coded error with a hint for the operator.
type BurpError struct {
	// Code is a unique error identifier (e.g., "B200").
	Code string

	// Category is the error type.
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of this occurrence.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *BurpError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *BurpError) Unwrap() error {
	return e.Wrapped
}

// WithDetail adds a detailed explanation to the error.
func (e *BurpError) WithDetail(d string) *BurpError {
	e.Detail = d
	return e
}

// WithDetailf adds a formatted detail.
func (e *BurpError) WithDetailf(format string, args ...any) *BurpError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *BurpError) WithSuggestion(s string) *BurpError {
	e.Suggestion = s
	return e
}

// Wrap wraps another error.
func (e *BurpError) Wrap(err error) *BurpError {
	e.Wrapped = err
	return e
}

// New creates a BurpError from a registered error code.
func New(code string) *BurpError {
	template, ok := registry[code]
	if !ok {
		return &BurpError{
			Code:     code,
			Category: CategoryInternal,
			Message:  "Unknown error",
		}
	}
	return &BurpError{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Suggestion: template.Suggestion,
	}
}

// Newf creates a new BurpError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *BurpError {
	return &BurpError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps err under code unless it already is a BurpError.
func FromError(err error, code string) *BurpError {
	if err == nil {
		return nil
	}
	var be *BurpError
	if stderrors.As(err, &be) {
		return be
	}
	return New(code).Wrap(err).WithDetail(err.Error())
}
