package src

import (
	"errors"
	"fmt"
)

// ErrorCode classifies pipeline failures so callers can decide whether a
// failure aborts the run or degrades to an informational event.
type ErrorCode string

const (
	// ErrCodeSchemaValidation: a stage requiring coerced structured output
	// received nothing usable. Fatal.
	ErrCodeSchemaValidation ErrorCode = "SCHEMA_VALIDATION"

	// ErrCodeCodeExtraction: raw model output could not be salvaged into
	// JSON by any fallback layer. Fatal for the coding stage.
	ErrCodeCodeExtraction ErrorCode = "CODE_EXTRACTION"

	// ErrCodePrecondition: a request failed validation before any model
	// call was made.
	ErrCodePrecondition ErrorCode = "PRECONDITION"

	// ErrCodePersistence: a store or object-storage failure. Never fatal
	// for a generation run.
	ErrCodePersistence ErrorCode = "PERSISTENCE"

	// ErrCodeExport: a source-hosting export failure, surfaced directly to
	// the caller of the export operation.
	ErrCodeExport ErrorCode = "EXPORT"
)

// Error is the coded error type used across the pipeline.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// E creates a new coded error.
func E(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapErr wraps an underlying error with a code and message.
func WrapErr(code ErrorCode, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
