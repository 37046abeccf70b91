package provider

import (
	"errors"
	"fmt"
)

// Code is the normalized provider error taxonomy. Provider-specific error
// names never cross the capability boundary.
type Code string

const (
	CodeNotFound           Code = "not_found"
	CodeInvalidCredentials Code = "invalid_credentials"
	CodeNotConfirmed       Code = "not_confirmed"
	CodeAlreadyExists      Code = "already_exists"
	CodeInvalidCode        Code = "invalid_code"
	CodeRateLimited        Code = "rate_limited"
	CodeUnavailable        Code = "unavailable"
	CodeUnknown            Code = "unknown"
)

// Error is a normalized provider failure.
type Error struct {
	Code     Code
	Provider Type
	Message  string
	cause    error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("provider %s: %s: %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Code)
}

func (e *Error) Unwrap() error { return e.cause }

// NewError builds a normalized provider error, optionally wrapping a cause.
func NewError(ptype Type, code Code, msg string, cause error) *Error {
	return &Error{Code: code, Provider: ptype, Message: msg, cause: cause}
}

// CodeOf extracts the normalized code from err, or CodeUnknown if err did
// not originate at a provider boundary.
func CodeOf(err error) Code {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return CodeUnknown
}

// IsCode reports whether err carries the given normalized code.
func IsCode(err error, code Code) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Code == code
}
