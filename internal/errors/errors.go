package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Backseat error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrFormat         ErrorCode = "FORMAT"          // 400
	ErrSelector       ErrorCode = "SELECTOR"        // 400 (logged, never returned by extraction)
	ErrPath           ErrorCode = "PATH"            // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrFileNotFound   ErrorCode = "FILE_NOT_FOUND"  // 404
	ErrConfiguration  ErrorCode = "CONFIGURATION"   // 422
	ErrCancelled      ErrorCode = "CANCELLED"       // 499
	ErrInternal       ErrorCode = "INTERNAL"        // 500
	ErrCapture        ErrorCode = "CAPTURE"         // 500
	ErrTransport      ErrorCode = "TRANSPORT"       // 502
	ErrTimeout        ErrorCode = "TIMEOUT"         // 504
)

// BackseatError represents a structured error with code, status, and details.
type BackseatError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	cause   error
}

// Error implements the error interface.
func (e *BackseatError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *BackseatError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *BackseatError {
	return &BackseatError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewUnknownAction creates a 400 error for a message action nobody handles.
func NewUnknownAction(action string) *BackseatError {
	return &BackseatError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: "Unknown action",
		Details: map[string]any{"action": action},
	}
}

// NewFormat creates a 400 error for an import payload with the wrong shape.
func NewFormat(msg string) *BackseatError {
	return &BackseatError{
		Code:    ErrFormat,
		Status:  400,
		Message: msg,
	}
}

// NewSelector creates a diagnostic for a malformed selector or regex rule.
func NewSelector(kind, rule string, cause error) *BackseatError {
	return &BackseatError{
		Code:    ErrSelector,
		Status:  400,
		Message: fmt.Sprintf("invalid %s %q: %v", kind, rule, cause),
		Details: map[string]any{"kind": kind, "rule": rule},
		cause:   cause,
	}
}

// NewPath creates a 400 error for a rejected import/export path.
func NewPath(msg string) *BackseatError {
	return &BackseatError{
		Code:    ErrPath,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a profile cannot be found.
func NewNotFound(name string) *BackseatError {
	return &BackseatError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("profile not found: %s", name),
		Details: map[string]any{"name": name},
	}
}

// NewFileNotFound creates a 404 error for a missing import file.
func NewFileNotFound(path string) *BackseatError {
	return &BackseatError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewConfiguration creates a 422 error for missing or invalid profile fields.
func NewConfiguration(field, msg string) *BackseatError {
	return &BackseatError{
		Code:    ErrConfiguration,
		Status:  422,
		Message: msg,
		Details: map[string]any{"field": field},
	}
}

// NewTransport creates a 502 error for an unreachable or failing endpoint.
// The message is shown to the user verbatim.
func NewTransport(service string, status int, cause error) *BackseatError {
	msg := fmt.Sprintf("%s error: HTTP %d", service, status)
	if status == 0 && cause != nil {
		msg = fmt.Sprintf("%s error: %v", service, cause)
	}
	details := map[string]any{"service": service}
	if status != 0 {
		details["http_status"] = status
	}
	return &BackseatError{
		Code:    ErrTransport,
		Status:  502,
		Message: msg,
		Details: details,
		cause:   cause,
	}
}

// NewCapture creates a 500 error when the screen capture primitive fails.
func NewCapture(cause error) *BackseatError {
	msg := "capture failed"
	if cause != nil {
		msg = fmt.Sprintf("capture failed: %v", cause)
	}
	return &BackseatError{
		Code:    ErrCapture,
		Status:  500,
		Message: msg,
		cause:   cause,
	}
}

// NewCancelled creates a 499 error for an operation whose context was cancelled.
func NewCancelled(op string) *BackseatError {
	return &BackseatError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
		Details: map[string]any{"operation": op},
	}
}

// NewTimeout creates a 504 error for an operation that ran past its deadline.
func NewTimeout(op string) *BackseatError {
	return &BackseatError{
		Code:    ErrTimeout,
		Status:  504,
		Message: fmt.Sprintf("%s timed out", op),
		Details: map[string]any{"operation": op},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *BackseatError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &BackseatError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// FromContext maps a context error onto CANCELLED or TIMEOUT.
// Returns nil if ctx is still live.
func FromContext(ctx context.Context, op string) *BackseatError {
	switch {
	case ctx.Err() == nil:
		return nil
	case stderrors.Is(ctx.Err(), context.DeadlineExceeded):
		return NewTimeout(op)
	default:
		return NewCancelled(op)
	}
}

// Is checks if an error is (or wraps) a BackseatError with the given code.
func Is(err error, code ErrorCode) bool {
	var bErr *BackseatError
	if stderrors.As(err, &bErr) {
		return bErr.Code == code
	}
	return false
}

// As exposes the standard library errors.As so callers need a single import.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Wrap returns err unchanged if it already is a BackseatError, otherwise an INTERNAL error.
func Wrap(err error) *BackseatError {
	if err == nil {
		return nil
	}
	var bErr *BackseatError
	if stderrors.As(err, &bErr) {
		return bErr
	}
	return NewInternal(err)
}
