package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the machine-readable error code returned to API callers.
type Code string

const (
	CodeConfiguration Code = "CONFIGURATION_ERROR"
	CodeProvider      Code = "PROVIDER_ERROR"
	CodeNotEligible   Code = "NOT_ELIGIBLE"
	CodeNotFound      Code = "NOT_FOUND"
	CodeAccessDenied  Code = "ACCESS_DENIED"
	CodeBadRequest    Code = "BAD_REQUEST"
	CodeRenewalFailed Code = "RENEWAL_FAILED"
)

// Error carries a code alongside the message so handlers can map failures to
// HTTP statuses without string matching.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is match on code, so sentinel comparisons like
// errors.Is(err, apperr.NotFound("")) work across wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

func Configuration(msg string, err error) *Error {
	return &Error{Code: CodeConfiguration, Msg: msg, Err: err}
}

func Provider(msg string, err error) *Error {
	return &Error{Code: CodeProvider, Msg: msg, Err: err}
}

func NotEligible(msg string) *Error {
	return &Error{Code: CodeNotEligible, Msg: msg}
}

func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Msg: msg}
}

func AccessDenied(msg string) *Error {
	return &Error{Code: CodeAccessDenied, Msg: msg}
}

func BadRequest(msg string) *Error {
	return &Error{Code: CodeBadRequest, Msg: msg}
}

func RenewalFailed(msg string, err error) *Error {
	return &Error{Code: CodeRenewalFailed, Msg: msg, Err: err}
}

// CodeOf extracts the code from err, defaulting to CodeProvider for unknown
// failures so infrastructure problems surface as 5xx.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeProvider
}

// HTTPStatus maps the taxonomy onto response statuses: eligibility and access
// problems are the caller's fault, provider and configuration problems are ours.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeNotEligible:
		return http.StatusUnprocessableEntity
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAccessDenied:
		return http.StatusForbidden
	case CodeConfiguration, CodeProvider, CodeRenewalFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
