package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
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

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrForbidden
	ErrInvalidState
	ErrDuplicateRequest
	ErrExpired
	ErrInvalid
	ErrStoreUnavailable
	ErrPartialFailure
	ErrInternal
)

// StatusCode maps the error code to an HTTP status for the transport boundary.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrBadRequest:
		return http.StatusBadRequest
	case ErrForbidden, ErrExpired, ErrInvalid:
		return http.StatusForbidden
	case ErrInvalidState, ErrDuplicateRequest:
		return http.StatusConflict
	case ErrStoreUnavailable:
		return http.StatusServiceUnavailable
	case ErrPartialFailure:
		return http.StatusMultiStatus
	default:
		return http.StatusInternalServerError
	}
}

// Error constructors
func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

func InvalidState(message string) *AppError {
	return &AppError{
		Code:    ErrInvalidState,
		Message: message,
	}
}

func DuplicateRequest(message string) *AppError {
	return &AppError{
		Code:    ErrDuplicateRequest,
		Message: message,
	}
}

func Expired(message string) *AppError {
	return &AppError{
		Code:    ErrExpired,
		Message: message,
	}
}

func Invalid(message string, err error) *AppError {
	return &AppError{
		Code:    ErrInvalid,
		Message: message,
		Err:     err,
	}
}

// StoreUnavailable marks an infrastructure failure. Callers holding an
// authorization decision must fail closed on it.
func StoreUnavailable(err error) *AppError {
	return &AppError{
		Code:    ErrStoreUnavailable,
		Message: "store unavailable",
		Err:     err,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// RecordFailure tags one record of a bulk grant/revoke that did not converge.
type RecordFailure struct {
	RecordID uuid.UUID `json:"record_id"`
	Reason   string    `json:"reason"`
}

// PartialFailureError reports a bulk operation that completed for a subset of
// records. Re-running the operation is always safe; callers retry until no
// failures remain.
type PartialFailureError struct {
	AppError
	Affected int             `json:"affected"`
	Failures []RecordFailure `json:"failures"`
}

func PartialFailure(affected int, failures []RecordFailure) *PartialFailureError {
	return &PartialFailureError{
		AppError: AppError{
			Code:    ErrPartialFailure,
			Message: fmt.Sprintf("operation completed for %d records, %d failed", affected, len(failures)),
		},
		Affected: affected,
		Failures: failures,
	}
}

// CodeOf extracts the ErrorCode from an error chain, ErrInternal if absent.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	var partial *PartialFailureError
	if errors.As(err, &partial) {
		return ErrPartialFailure
	}
	return ErrInternal
}

// IsCode reports whether the error chain carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
