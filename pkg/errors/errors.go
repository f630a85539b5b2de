// Package errors provides structured error types for trustlane.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across CLI, HTTP API and Lambda entrypoints
//   - Machine-readable error codes for programmatic handling
//   - Field-level detail messages for graph validation failures
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures (fix the input)
//   - NOT_FOUND_*: Resource not found
//   - NETWORK_*: Network-related errors
//   - INTERNAL_* / INVARIANT_*: Defects that require a code fix
//
// A graph that fails validation or normalization carries [ErrCodeInvalidGraph]
// and one "<field.path>: <message>" entry per problem in Details. Layout or
// serialization invariant failures carry [ErrCodeInvariant] instead, so callers
// can tell "bad payload" from "bug in the engine".
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidInput, "invalid format: %s", name)
//	if errors.Is(err, errors.ErrCodeInvalidInput) {
//	    // Handle validation error
//	}
//
//	err := errors.WithDetails(errors.ErrCodeInvalidGraph, msgs, "graph validation failed")
//	for _, d := range errors.Details(err) {
//	    fmt.Println(d)
//	}
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidGraph  Code = "INVALID_GRAPH"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"

	// Resource not found errors
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

	// Network errors
	ErrCodeNetwork Code = "NETWORK_ERROR"
	ErrCodeTimeout Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeInvariant   Code = "INVARIANT_VIOLATION"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code     // Machine-readable error code
	Message string   // Human-readable message
	Details []string // Field-level messages (validation failures)
	Cause   error    // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if len(e.Details) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Details, "; "))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
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

// WithDetails creates a new Error carrying a list of detail messages.
// The slice is copied.
func WithDetails(code Code, details []string, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: append([]string(nil), details...),
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

// Details returns the detail messages of the first *Error in the chain that has any.
// Returns nil if there are none.
func Details(err error) []string {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return nil
		}
		if len(e.Details) > 0 {
			return e.Details
		}
		err = e.Cause
	}
	return nil
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

// Messages returns the list of messages suitable for an API error response:
// the details if present, otherwise the single user message.
func Messages(err error) []string {
	if d := Details(err); len(d) > 0 {
		return d
	}
	return []string{UserMessage(err)}
}
