// Package errors defines the application error taxonomy. Every failure that
// can surface at the HTTP boundary carries a machine-readable code alongside
// a human-readable message; internal detail stays wrapped for server-side logs.
package errors

import (
	"errors"
	"fmt"
)

// Standard error codes for the application.
const (
	CodeUnknown          = "UNKNOWN"
	CodeNotReady         = "NOT_READY"
	CodeNotFound         = "NOT_FOUND"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeValidation       = "VALIDATION"
	CodeUnsupportedMedia = "UNSUPPORTED_MEDIA"
	CodeConversionFailed = "CONVERSION_FAILED"
	CodeDispatchFailed   = "DISPATCH_FAILED"
	CodeDatabase         = "DATABASE"
)

// Error is a coded application error. The message is safe to return to API
// callers; the wrapped cause is not.
type Error struct {
	code    string
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

// Message returns the caller-safe message without the wrapped cause.
func (e *Error) Message() string {
	return e.message
}

func (e *Error) Code() string {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.err
}

// New creates a coded error without a cause.
func New(code, message string) error {
	return &Error{code: code, message: message}
}

// Wrap creates a coded error wrapping an underlying cause.
func Wrap(code, message string, cause error) error {
	return &Error{code: code, message: message, err: cause}
}

// Code returns the code carried by err, or CodeUnknown if err is not a
// coded application error.
func Code(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code()
	}

	return CodeUnknown
}

// Message returns the caller-safe message of err, falling back to the full
// error text for uncoded errors.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message()
	}

	return err.Error()
}

// Convenience constructors for the taxonomy.

func NotReady(message string) error {
	return New(CodeNotReady, message)
}

func NotFound(message string) error {
	return New(CodeNotFound, message)
}

func PermissionDenied(message string) error {
	return New(CodePermissionDenied, message)
}

func Validation(message string) error {
	return New(CodeValidation, message)
}

func UnsupportedMedia(message string) error {
	return New(CodeUnsupportedMedia, message)
}

func ConversionFailed(message string, cause error) error {
	return Wrap(CodeConversionFailed, message, cause)
}

func DispatchFailed(message string, cause error) error {
	return Wrap(CodeDispatchFailed, message, cause)
}

func Database(message string, cause error) error {
	return Wrap(CodeDatabase, message, cause)
}
