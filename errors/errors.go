package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// NotFound creates an error for a missing resource.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("%s %s not found", resource, id),
		HTTPStatus: http.StatusNotFound, Details: details,
	}
}

// AlreadyExists creates an error for a duplicate resource.
func AlreadyExists(resource string) *AppError {
	return &AppError{
		Code: ErrCodeAlreadyExists, Message: fmt.Sprintf("%s already exists", resource),
		HTTPStatus: http.StatusConflict, Details: map[string]any{"resource": resource},
	}
}

// Conflict creates an error for an operation that clashes with current state.
func Conflict(reason string) *AppError {
	return &AppError{Code: ErrCodeConflict, Message: reason, HTTPStatus: http.StatusConflict}
}

// Validation creates an error for invalid input or malformed collaborator output.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidInput, Message: message, HTTPStatus: http.StatusBadRequest}
}

// InvalidInput creates a field-scoped validation error.
func InvalidInput(field, reason string) *AppError {
	return Validation(fmt.Sprintf("invalid %s: %s", field, reason)).WithDetail("field", field)
}

// MissingFields creates an error listing required fields that were absent.
func MissingFields(fields ...string) *AppError {
	return &AppError{
		Code: ErrCodeMissingField, Message: "missing required fields: " + strings.Join(fields, ", "),
		HTTPStatus: http.StatusBadRequest, Details: map[string]any{"fields": fields},
	}
}

// CollaboratorFailure creates an error for a failed external backend.
func CollaboratorFailure(service string, cause error) *AppError {
	msg := service + " failed"
	if cause != nil {
		msg = fmt.Sprintf("%s failed: %v", service, cause)
	}
	return &AppError{
		Code: ErrCodeCollaboratorFailure, Message: msg,
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"service": service}, Cause: cause,
	}
}

// PersistenceFailure creates an error for a failed database or storage write.
func PersistenceFailure(operation string, cause error) *AppError {
	return &AppError{
		Code: ErrCodePersistenceFailure, Message: fmt.Sprintf("persisting %s failed", operation),
		HTTPStatus: http.StatusInternalServerError, Retryable: true,
		Details: map[string]any{"operation": operation}, Cause: cause,
	}
}

// ServiceUnavailable creates an error for a dependency that is not ready.
func ServiceUnavailable(service string) *AppError {
	return &AppError{
		Code: ErrCodeServiceUnavailable, Message: fmt.Sprintf("%s is unavailable", service),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"service": service},
	}
}

// Internal wraps an unexpected error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "an unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError, Cause: cause,
	}
}

// AsAppError converts err to an AppError if it is (or wraps) one.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCode reports whether err is an AppError with the given code.
func IsCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// From returns err as an AppError, wrapping unknown errors as internal.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return Internal(err)
}
