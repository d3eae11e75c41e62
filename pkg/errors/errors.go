// Package errors provides structured error types for the debugbridge application.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across CLI and control API
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures
//   - *_NOT_FOUND: Resource not found
//   - INSTALL_FAILED / UNINSTALL_FAILED / IMPORT_FAILED: dependency lifecycle failures
//   - ALREADY_LISTENING / ATTACH_TIMEOUT: expected debug-server outcomes
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidPackage, "invalid package name: %s", name)
//	if errors.Is(err, errors.ErrCodeInvalidPackage) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeInstallFailed, origErr, "installing %s", pkg)
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
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeInvalidPackage Code = "INVALID_PACKAGE"
	ErrCodeInvalidVersion Code = "INVALID_VERSION"
	ErrCodeInvalidPath    Code = "INVALID_PATH"
	ErrCodeInvalidPort    Code = "INVALID_PORT"
	ErrCodeInvalidConfig  Code = "INVALID_CONFIG"

	// Resource not found errors
	ErrCodeNotFound            Code = "NOT_FOUND"
	ErrCodeDependencyNotFound  Code = "DEPENDENCY_NOT_FOUND"
	ErrCodePathNotFound        Code = "PATH_NOT_FOUND"
	ErrCodeInterpreterNotFound Code = "INTERPRETER_NOT_FOUND"

	// Dependency lifecycle errors
	ErrCodePipUnavailable  Code = "PIP_UNAVAILABLE"
	ErrCodeInstallFailed   Code = "INSTALL_FAILED"
	ErrCodeUninstallFailed Code = "UNINSTALL_FAILED"
	ErrCodeImportFailed    Code = "IMPORT_FAILED"

	// Debug server outcomes
	ErrCodeAlreadyListening Code = "ALREADY_LISTENING"
	ErrCodePortInUse        Code = "PORT_IN_USE"
	ErrCodeAttachTimeout    Code = "ATTACH_TIMEOUT"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
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

// Expected reports whether err is one of the expected, non-fatal terminal
// outcomes (server already listening, attach confirmation timed out).
// Callers surface these as notices rather than failures.
func Expected(err error) bool {
	switch GetCode(err) {
	case ErrCodeAlreadyListening, ErrCodeAttachTimeout:
		return true
	}
	return false
}

// ExitError provides additional information for failed subprocess invocations.
type ExitError struct {
	Command  string // command line that failed
	ExitCode int    // subprocess exit code
	Stderr   string // trailing stderr output, if captured
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}
