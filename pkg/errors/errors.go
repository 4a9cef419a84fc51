// Package errors provides structured error types for racksizer.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across CLI and API
//   - Machine-readable error codes for programmatic handling
//   - Soft failures that travel on a result instead of aborting it
//
// # Error Codes
//
// Codes fall into three groups:
//   - INVALID_*, NO_CONFIGURATION_SELECTED: input rejected before any scan
//   - STORAGE_UNATTAINABLE, CONSTRAINT_EXCEEDED: a scan ran and found nothing
//   - PERFORMANCE_UNATTAINABLE: a scan found storage but not throughput; this
//     code is carried on results as a shortfall, never returned as a failure
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidInput, "storage requirement must be positive, got %d", n)
//	if errors.Is(err, errors.ErrCodeInvalidInput) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeInvalidConfiguration, origErr, "load catalog %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput            Code = "INVALID_INPUT"
	ErrCodeInvalidConfiguration    Code = "INVALID_CONFIGURATION"
	ErrCodeInvalidFormat           Code = "INVALID_FORMAT"
	ErrCodeNoConfigurationSelected Code = "NO_CONFIGURATION_SELECTED"
	ErrCodeUnknownConfiguration    Code = "UNKNOWN_CONFIGURATION"

	// Scan outcomes
	ErrCodeStorageUnattainable     Code = "STORAGE_UNATTAINABLE"
	ErrCodePerformanceUnattainable Code = "PERFORMANCE_UNATTAINABLE"
	ErrCodeConstraintExceeded      Code = "CONSTRAINT_EXCEEDED"

	// Resource errors
	ErrCodeNotFound Code = "NOT_FOUND"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   `json:"code"`    // Machine-readable error code
	Message string `json:"message"` // Human-readable message
	Cause   error  `json:"-"`       // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
