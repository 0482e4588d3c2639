package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Reason  string    `json:"reason,omitempty"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
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

// Is matches on code and, when the target carries one, on reason.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// StatusCode maps the error code to an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrBadRequest:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrPolicyViolation:
		return http.StatusUnprocessableEntity
	case ErrConflict:
		return http.StatusConflict
	case ErrUnavailable:
		return http.StatusServiceUnavailable
	case ErrTooManyRequests:
		return http.StatusTooManyRequests
	case ErrTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Wrap returns a copy of e carrying err as its cause.
func (e *AppError) Wrap(err error) *AppError {
	return &AppError{Code: e.Code, Reason: e.Reason, Message: e.Message, Err: err}
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrPolicyViolation
	ErrConflict
	ErrUnavailable
	ErrTooManyRequests
	ErrTimeout
)

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Reason:  "not_found",
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Reason:  "bad_request",
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Reason:  "internal",
		Message: "internal server error",
		Err:     err,
	}
}

// Common errors
func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Reason:  "unauthorized",
		Message: "unauthorized",
		Err:     err,
	}
}

func Forbidden(err error) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Reason:  "forbidden",
		Message: "forbidden",
		Err:     err,
	}
}

// PolicyViolation is an expected business rejection, raised before any write.
func PolicyViolation(reason, message string) *AppError {
	return &AppError{
		Code:    ErrPolicyViolation,
		Reason:  reason,
		Message: message,
	}
}

// Conflict signals that a write lost against a uniqueness constraint.
func Conflict(reason, message string) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Reason:  reason,
		Message: message,
	}
}

// Unavailable wraps a storage or transport failure that must not be
// interpreted as an empty or full result.
func Unavailable(err error) *AppError {
	return &AppError{
		Code:    ErrUnavailable,
		Reason:  "store_unavailable",
		Message: "storage temporarily unavailable",
		Err:     err,
	}
}

func TooManyRequests(err error) *AppError {
	return &AppError{
		Code:    ErrTooManyRequests,
		Reason:  "rate_limited",
		Message: "too many requests",
		Err:     err,
	}
}

func Timeout(err error) *AppError {
	return &AppError{
		Code:    ErrTimeout,
		Reason:  "timeout",
		Message: "request timeout",
		Err:     err,
	}
}
