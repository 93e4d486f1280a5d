// Package rterr defines the typed error taxonomy shared by every
// component of the runtime. Components return these values rather than
// panicking; only unrecoverable corruption propagates as a panic.
package rterr

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure across the runtime.
type Code string

const (
	NotFound               Code = "NOT_FOUND"
	AlreadyExists          Code = "ALREADY_EXISTS"
	ValidationFailed       Code = "VALIDATION_FAILED"
	PolicyViolation        Code = "POLICY_VIOLATION"
	RateLimited            Code = "RATE_LIMITED"
	ResourceLimitExceeded  Code = "RESOURCE_LIMIT_EXCEEDED"
	ExecutionTimeout       Code = "EXECUTION_TIMEOUT"
	ExecutionError         Code = "EXECUTION_ERROR"
	MemoryLimitExceeded    Code = "MEMORY_LIMIT_EXCEEDED"
	ToolError              Code = "TOOL_ERROR"
	ToolNotFound           Code = "TOOL_NOT_FOUND"
	InvalidJSON            Code = "INVALID_JSON"
	Cancelled              Code = "CANCELLED"
)

// Error is the concrete error type returned by runtime components.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, rterr.New(rterr.NotFound, "")) style
// comparisons by matching on Code alone.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// New builds an *Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds an *Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error carrying an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the Code from err, returning "" if err is not (or does
// not wrap) an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
