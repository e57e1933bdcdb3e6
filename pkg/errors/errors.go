package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error
type Kind string

const (
	KindInvalidTransition      Kind = "INVALID_TRANSITION"
	KindConcurrentModification Kind = "CONCURRENT_MODIFICATION"
	KindNotFound               Kind = "NOT_FOUND"
	KindValidation             Kind = "VALIDATION"
	KindTransientIO            Kind = "TRANSIENT_IO"
	KindDuplicateActiveVisit   Kind = "DUPLICATE_ACTIVE_VISIT"
	KindForbidden              Kind = "FORBIDDEN"
	KindUnauthorized           Kind = "UNAUTHORIZED"
	KindRateLimited            Kind = "RATE_LIMITED"
	KindInternal               Kind = "INTERNAL"
)

// AppError represents an application error
type AppError struct {
	Kind    Kind        `json:"kind"`
	Message string      `json:"message"`
	Err     error       `json:"-"`
	Details interface{} `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error kind onto an HTTP status
func (e *AppError) StatusCode() int {
	switch e.Kind {
	case KindInvalidTransition, KindConcurrentModification, KindDuplicateActiveVisit:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindTransientIO:
		return http.StatusServiceUnavailable
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the caller may safely repeat the request
func (e *AppError) Retryable() bool {
	return e.Kind == KindTransientIO || e.Kind == KindRateLimited
}

// Error constructors
func NotFound(resource string, err error) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func Validation(message string, err error) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Message: message,
		Err:     err,
	}
}

func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Kind:    KindInvalidTransition,
		Message: fmt.Sprintf("transition from %q to %q is not allowed", from, to),
	}
}

// ConcurrentModification carries the record as it currently stands so the
// client can re-render instead of retrying blindly.
func ConcurrentModification(message string, current interface{}) *AppError {
	return &AppError{
		Kind:    KindConcurrentModification,
		Message: message,
		Details: current,
	}
}

func TransientIO(message string, err error) *AppError {
	return &AppError{
		Kind:    KindTransientIO,
		Message: message,
		Err:     err,
	}
}

func DuplicateActiveVisit(status string) *AppError {
	return &AppError{
		Kind:    KindDuplicateActiveVisit,
		Message: fmt.Sprintf("patient already has an open visit (status: %s)", status),
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Kind:    KindForbidden,
		Message: message,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Kind:    KindUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func RateLimited() *AppError {
	return &AppError{
		Kind:    KindRateLimited,
		Message: "rate limit exceeded",
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Kind:    KindInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// As extracts an *AppError from the chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for foreign errors
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
