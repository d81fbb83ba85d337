package service

import (
	"errors"
	"fmt"

	"github.com/jinhyuck8504/obdoc-sub000/internal/codeformat"
	"github.com/jinhyuck8504/obdoc-sub000/internal/ratelimit"
)

// ErrorCode is the machine-readable error taxonomy exposed to API callers.
type ErrorCode string

const (
	CodeInvalidInput        ErrorCode = "INVALID_INPUT"
	CodeInvalidFormat       ErrorCode = "INVALID_FORMAT"
	CodeNotAuthorized       ErrorCode = "NOT_AUTHORIZED"
	CodeClinicInactive      ErrorCode = "CLINIC_INACTIVE"
	CodeNotFound            ErrorCode = "NOT_FOUND"
	CodeExpired             ErrorCode = "EXPIRED"
	CodeMaxUsesExceeded     ErrorCode = "MAX_USES_EXCEEDED"
	CodeRateLimited         ErrorCode = "RATE_LIMITED"
	CodeGenerationExhausted ErrorCode = "GENERATION_EXHAUSTED"
	CodeStoreError          ErrorCode = "STORE_ERROR"
	CodeSystemError         ErrorCode = "SYSTEM_ERROR"
)

// Error is a taxonomy error. Business-rule errors carry a caller-facing
// message; store and system errors keep detail in the wrapped cause and are
// surfaced opaquely.
type Error struct {
	Code    ErrorCode
	Message string

	// RateLimit carries the limiter decision on RATE_LIMITED errors so the
	// HTTP layer can emit rate headers on rejected requests too.
	RateLimit *ratelimit.Decision

	// Format carries the full structural report on INVALID_FORMAT errors so
	// callers can show every defect at once instead of one per attempt.
	Format *codeformat.FormatReport

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// newError builds a taxonomy error.
func newError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// wrapError builds a taxonomy error around an internal cause.
func wrapError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// storeError wraps a repository failure. The caller-facing message stays
// opaque; the cause goes to the log.
func storeError(cause error) *Error {
	return wrapError(CodeStoreError, "a storage error occurred", cause)
}

// CodeOf extracts the taxonomy code, defaulting to SYSTEM_ERROR.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeSystemError
}

// AsError extracts the taxonomy error, or wraps err as an opaque system error.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return wrapError(CodeSystemError, "an internal error occurred", err)
}
