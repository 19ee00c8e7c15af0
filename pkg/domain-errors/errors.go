// Package derrors provides coded domain errors so callers can map failures
// to transport responses without string matching. Import sites alias it
// dErrors.
package derrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeSignatureInvalid marks an inbound payload that failed authenticity
	// verification. The caller must reject it before any processing.
	CodeSignatureInvalid Code = "signature_invalid"
	// CodeAuthenticationFailure marks a ciphertext whose integrity tag did
	// not verify, or a malformed encrypted blob.
	CodeAuthenticationFailure Code = "authentication_failure"
	// CodeDuplicateEvent is a control-flow signal: the event was already
	// handled. It always resolves to a success response.
	CodeDuplicateEvent Code = "duplicate_event"
	// CodeUnmatchedResource means an event was recorded but could not be
	// attributed to a resource. Not a failure.
	CodeUnmatchedResource Code = "unmatched_resource"
	// CodeTransient marks a retryable persistence failure; the provider's
	// redelivery schedule is the retry loop.
	CodeTransient Code = "transient"
	// CodeRateLimited rejects a request over its admission threshold.
	CodeRateLimited Code = "rate_limited"

	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal"
)

// Error is a coded domain error, optionally wrapping a cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with no cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err yields nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// CodeOf extracts the code from err, walking the wrap chain.
// Returns CodeInternal for nil-safe unknown errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}
