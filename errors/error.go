package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error is the node's canonical error type: a stable code plus a
// human-readable message and an optional wrapped cause.
type Error struct {
	code       ERR
	message    string
	wrappedErr error
}

// Interface is the contract every *Error satisfies; useful for mocking.
type Interface interface {
	error
	Code() ERR
	Message() string
	Unwrap() error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.wrappedErr == nil {
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}

	return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.wrappedErr)
}

// Is reports whether target carries the same error code. Falls back to
// substring matching against plain errors so errors.Is keeps working
// against sentinels that were never wrapped in an *Error.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}

	targetErr, ok := target.(*Error)
	if !ok {
		return strings.Contains(e.Error(), target.Error())
	}

	if e.code == targetErr.code {
		return true
	}

	if wrapped, ok := e.wrappedErr.(*Error); ok {
		return wrapped.Is(target)
	}

	return false
}

func (e *Error) As(target interface{}) bool {
	if e == nil {
		return false
	}

	if targetErr, ok := target.(**Error); ok {
		*targetErr = e
		return true
	}

	if e.wrappedErr != nil {
		return errors.As(e.wrappedErr, target)
	}

	return false
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.wrappedErr
}

func (e *Error) Code() ERR {
	if e == nil {
		return ERR_UNKNOWN
	}

	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}

	return e.message
}

// New builds an *Error of the given kind. If the last element of params is
// itself an error, it becomes the wrapped cause and the remaining params
// are used to format message with fmt.Sprintf semantics.
func New(code ERR, message string, params ...interface{}) *Error {
	var wrapped error

	if len(params) > 0 {
		if err, ok := params[len(params)-1].(error); ok {
			wrapped = err
			params = params[:len(params)-1]
		}
	}

	if len(params) > 0 {
		message = fmt.Sprintf(message, params...)
	}

	return &Error{code: code, message: message, wrappedErr: wrapped}
}

// Is delegates to the standard library so callers can keep using
// errors.Is/errors.As uniformly across sentinel and *Error values.
func Is(err, target error) bool { return errors.Is(err, target) }
func As(err error, target interface{}) bool { return errors.As(err, target) }
