package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode string

const (
	// Generic errors
	ErrCodeInternal    ErrorCode = "INTERNAL_ERROR"
	ErrCodeNotFound    ErrorCode = "NOT_FOUND"
	ErrCodeValidation  ErrorCode = "VALIDATION_ERROR"
	ErrCodeConflict    ErrorCode = "CONFLICT"
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"

	// Authentication errors
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeInactiveAccount    ErrorCode = "INACTIVE_ACCOUNT"

	// Token errors
	ErrCodeTokenInvalid       ErrorCode = "TOKEN_INVALID"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"
	ErrCodeTokenRevoked       ErrorCode = "TOKEN_REVOKED"
	ErrCodeTokenOwnerMismatch ErrorCode = "TOKEN_OWNER_MISMATCH"
	ErrCodeInvalidOrUsedToken ErrorCode = "INVALID_OR_USED_TOKEN"

	// Authorization errors
	ErrCodeForbidden ErrorCode = "FORBIDDEN"

	// Upstream identity provider errors
	ErrCodeUpstreamTimeout     ErrorCode = "UPSTREAM_TIMEOUT"
	ErrCodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"

	// Storage errors
	ErrCodePersistence ErrorCode = "PERSISTENCE_FAILURE"
)

// Error represents a structured error with a code and a client-safe message
type Error struct {
	Code    ErrorCode // Unique error code
	Message string    // Human-readable message, safe to show to clients
	Err     error     // Wrapped underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *Error) HTTPStatusCode() int {
	return MapErrorCodeToHTTPStatus(e.Code)
}

// New creates a new Error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with code and message
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error.
// Returns ErrCodeInternal if the error is not a structured Error.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// IsTokenFailure reports whether err belongs to the invalid-token family.
func IsTokenFailure(err error) bool {
	switch GetCode(err) {
	case ErrCodeTokenInvalid, ErrCodeTokenExpired, ErrCodeTokenRevoked, ErrCodeTokenOwnerMismatch:
		return true
	}
	return false
}

// MapErrorCodeToHTTPStatus maps error codes to HTTP status codes
func MapErrorCodeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidation, ErrCodeInvalidOrUsedToken:
		return http.StatusBadRequest

	case ErrCodeUnauthorized, ErrCodeInvalidCredentials,
		ErrCodeTokenInvalid, ErrCodeTokenExpired, ErrCodeTokenRevoked, ErrCodeTokenOwnerMismatch:
		return http.StatusUnauthorized

	case ErrCodeForbidden, ErrCodeInactiveAccount:
		return http.StatusForbidden

	case ErrCodeNotFound:
		return http.StatusNotFound

	case ErrCodeConflict:
		return http.StatusConflict

	case ErrCodeRateLimited:
		return http.StatusTooManyRequests

	case ErrCodeUpstreamUnavailable:
		return http.StatusBadGateway

	case ErrCodeUpstreamTimeout:
		return http.StatusGatewayTimeout

	case ErrCodePersistence, ErrCodeInternal:
		fallthrough
	default:
		return http.StatusInternalServerError
	}
}

// Common constructors

// Unauthorized creates an "unauthorized" error
func Unauthorized(message string) *Error {
	return New(ErrCodeUnauthorized, message)
}

// Forbidden creates a "forbidden" error
func Forbidden(message string) *Error {
	return New(ErrCodeForbidden, message)
}

// Validation creates a "validation" error
func Validation(message string) *Error {
	return New(ErrCodeValidation, message)
}

// Persistence wraps a storage failure behind a generic message.
func Persistence(err error) *Error {
	return Wrap(err, ErrCodePersistence, "internal server error")
}
