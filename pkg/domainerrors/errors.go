// Package domainerrors defines the typed error model used at module
// boundaries. Services translate infrastructure sentinels into these; the
// HTTP layer translates them into status codes and machine-readable bodies.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the coarse error class, mapped one-to-one onto HTTP status codes.
type Code string

const (
	CodeBadRequest Code = "bad_request"
	CodeForbidden  Code = "forbidden"
	CodeNotFound   Code = "not_found"
	CodeConflict   Code = "conflict"
	CodeInternal   Code = "internal"
)

// Machine-readable reasons. These are part of the API contract: clients
// branch on them, so they never change meaning.
const (
	ReasonUnknownEventType   = "UNKNOWN_EVENT_TYPE"
	ReasonMissingActor       = "MISSING_ACTOR"
	ReasonInvalidTruthClass  = "INVALID_TRUTH_CLASS"
	ReasonInvalidRole        = "INVALID_ROLE"
	ReasonForbiddenRole      = "FORBIDDEN_ROLE"
	ReasonForbiddenOverride  = "FORBIDDEN_OVERRIDE"
	ReasonApprovalUnmet      = "APPROVAL_THRESHOLD_UNMET"
	ReasonMaterialUnmet      = "MATERIAL_REQUIREMENT_UNMET"
	ReasonHashMismatch       = "HASH_MISMATCH"
	ReasonNonDeterministic   = "NON_DETERMINISTIC_PROJECTION"
)

// Error carries a class, an optional machine reason, and a human message.
type Error struct {
	Code    Code
	Reason  string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Reason, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a domain error without a machine reason.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewWithReason builds a domain error carrying a machine-readable reason.
func NewWithReason(code Code, reason, message string) *Error {
	return &Error{Code: code, Reason: reason, Message: message}
}

// Wrap attaches a cause so infrastructure detail survives for logging while
// callers still match on the code.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Is reports whether err is a domain error with the given code.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// ReasonOf extracts the machine reason from err, or "" if absent.
func ReasonOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason
	}
	return ""
}

// HTTPStatus maps an error to its HTTP status. Unknown errors are internal.
func HTTPStatus(err error) int {
	var de *Error
	if !errors.As(err, &de) {
		return http.StatusInternalServerError
	}
	switch de.Code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
