// Package domainerrors provides coded errors for the domain layer. Services
// return these so transports can translate outcomes without string matching.
//
// Codes classify the outcome of an operation, not its cause. Infrastructure
// facts (missing row, stale record) originate as sentinel errors in stores and
// are wrapped with a code at the service boundary.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of domain failure.
type Code string

const (
	// CodeInvalidInput marks malformed identifiers or payloads rejected at a
	// trust boundary before any domain logic runs.
	CodeInvalidInput Code = "invalid_input"

	// CodeValidation marks a well-formed request that violates a field-level
	// constraint (empty name, out-of-range rule value).
	CodeValidation Code = "validation"

	// CodePolicyViolation marks an operation currently forbidden by system
	// rules: walk-ins disabled, government ID required but missing, a
	// blacklisted visitor, or a host over its daily cap.
	CodePolicyViolation Code = "policy_violation"

	// CodeInvalidTransition marks an attempt to move a record out of a
	// terminal state or to a state unreachable from its current one.
	CodeInvalidTransition Code = "invalid_transition"

	// CodeExpired marks redemption of a pre-approval past its expiry.
	CodeExpired Code = "expired"

	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeInternal     Code = "internal"
)

// Error carries a code alongside a human-readable message and an optional
// wrapped cause.
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

// New constructs a coded error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err or anything it wraps carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		de = nil
	}
	return false
}

// CodeOf returns the outermost code carried by err, or CodeInternal when err
// carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to the HTTP status the transport layer should
// return for it.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeValidation:
		return http.StatusBadRequest
	case CodePolicyViolation, CodeForbidden:
		return http.StatusForbidden
	case CodeInvalidTransition, CodeConflict:
		return http.StatusConflict
	case CodeExpired:
		return http.StatusGone
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
