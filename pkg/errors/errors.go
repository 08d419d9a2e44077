// Package errors provides structured error types for physioreport.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and library entry points
//   - Machine-readable error codes for programmatic handling
//   - A hard distinction between configuration errors (fail fast, before any
//     page is rendered) and collaborator failures (propagate after cleanup)
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: option validation failures, rejected before rendering starts
//   - *_NOT_FOUND: a referenced resource does not exist
//   - LOAD_*: a persisted input could not be read or decoded
//   - RENDER_FAILED / SINK_FAILED: a collaborator raised mid-run
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidPosition, "bad crosshair spec: %q", s)
//	if errors.Is(err, errors.ErrCodeInvalidPosition) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeLoadModel, origErr, "load %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Option validation errors. These always surface before any page is
	// rendered or any global state is mutated.
	ErrCodeInvalidOption     Code = "INVALID_OPTION"
	ErrCodeInvalidPosition   Code = "INVALID_POSITION"
	ErrCodeInvalidThreshold  Code = "INVALID_THRESHOLD"
	ErrCodeInvalidCorrection Code = "INVALID_CORRECTION"
	ErrCodeInvalidIndex      Code = "INVALID_INDEX"

	// Resource not found errors. A missing contrast is a soft skip, not a
	// run failure.
	ErrCodeContrastNotFound Code = "CONTRAST_NOT_FOUND"

	// Persisted input errors
	ErrCodeLoadModel  Code = "LOAD_MODEL_FAILED"
	ErrCodeLoadPhysio Code = "LOAD_PHYSIO_FAILED"
	ErrCodeLoadVolume Code = "LOAD_VOLUME_FAILED"

	// Collaborator failures. These abort the run but only after working
	// directory and window mode have been restored.
	ErrCodeRenderFailed Code = "RENDER_FAILED"
	ErrCodeSinkFailed   Code = "SINK_FAILED"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
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

// IsConfig reports whether err is an option validation error, i.e. one that
// surfaced before any rendering side effect happened.
func IsConfig(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidOption, ErrCodeInvalidPosition, ErrCodeInvalidThreshold,
		ErrCodeInvalidCorrection, ErrCodeInvalidIndex:
		return true
	}
	return false
}
