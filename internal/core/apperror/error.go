// Package apperror provides structured error handling for the admin.
// Every failure reaching a view is an AppError so it can be rendered as a
// scoped banner or a toast with a human-readable message.
package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error codes.
const (
	// Infrastructure errors (5xx)
	CodeInternal  = "INTERNAL_ERROR"
	CodeDatabase  = "DATABASE_ERROR"
	CodeTimeout   = "TIMEOUT_ERROR"
	CodeTransport = "TRANSPORT_ERROR" // catalog API unreachable
	CodeUpstream  = "UPSTREAM_ERROR"  // catalog API answered non-2xx

	// Validation errors (400)
	CodeValidation   = "VALIDATION_ERROR"
	CodeInvalidInput = "INVALID_INPUT"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict = "CONFLICT"
	CodeBusy     = "BUSY"

	// Client closed the request or a newer request superseded it.
	CodeCanceled = "CANCELED"
)

// AppError is the standard error type of the admin.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field names, upstream status, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// Scoped returns a copy whose message is prefixed with the action and the
// entity label, e.g. "Failed to delete Category: not found".
func (e *AppError) Scoped(action, entity string) *AppError {
	cp := *e
	if e.Details != nil {
		cp.Details = make(map[string]any, len(e.Details)+1)
		for k, v := range e.Details {
			cp.Details[k] = v
		}
	}
	cp.Message = fmt.Sprintf("Failed to %s %s: %s", action, entity, e.Message)
	return cp.WithDetail("entity", entity)
}

// --- Factory functions for common errors ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewRequired creates a validation error for a missing required field.
func NewRequired(field, label string) *AppError {
	return NewValidation(fmt.Sprintf("%s is required", label)).WithDetail("field", field)
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewTransport wraps a network failure talking to the catalog API.
func NewTransport(err error) *AppError {
	msg := "Catalog service is unreachable"
	if errors.Is(err, context.DeadlineExceeded) {
		return &AppError{
			Code:       CodeTimeout,
			Message:    "Catalog service timed out",
			HTTPStatus: http.StatusGatewayTimeout,
			Err:        err,
		}
	}
	return &AppError{
		Code:       CodeTransport,
		Message:    msg,
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewUpstream builds an error from a non-2xx catalog API response.
// The message carries the status and the response body text.
func NewUpstream(status int, body string) *AppError {
	msg := fmt.Sprintf("%d %s", status, http.StatusText(status))
	if body != "" {
		msg += ": " + body
	}
	httpStatus := http.StatusBadGateway
	switch status {
	case http.StatusUnauthorized:
		httpStatus = http.StatusUnauthorized
	case http.StatusNotFound:
		httpStatus = http.StatusNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		httpStatus = http.StatusBadRequest
	}
	return &AppError{
		Code:       CodeUpstream,
		Message:    msg,
		HTTPStatus: httpStatus,
		Details:    map[string]any{"upstream_status": status},
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbidden creates an authorization error (403)
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewBusy is returned when a destructive action is attempted while a load
// is still in flight.
func NewBusy(entity string) *AppError {
	return &AppError{
		Code:       CodeBusy,
		Message:    fmt.Sprintf("%s is still loading", entity),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity},
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewCanceled marks a request dropped because it was superseded or aborted.
func NewCanceled(err error) *AppError {
	return &AppError{
		Code:       CodeCanceled,
		Message:    "Request canceled",
		HTTPStatus: 499,
		Err:        err,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Normalize turns any error into an AppError. Context cancellation becomes
// CodeCanceled, anything unknown becomes an internal error.
func Normalize(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	if errors.Is(err, context.Canceled) {
		return NewCanceled(err)
	}
	return NewInternal(err)
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeNotFound
	}
	return false
}

// IsUnauthorized reports whether the error means the session token is no
// longer accepted.
func IsUnauthorized(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeUnauthorized || appErr.HTTPStatus == http.StatusUnauthorized
	}
	return false
}

// IsCanceled checks if error is CodeCanceled or a context cancellation.
func IsCanceled(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeCanceled
	}
	return errors.Is(err, context.Canceled)
}
