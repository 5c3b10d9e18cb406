// internal/common/apperrors/errors.go
// Coded application errors shared by the engine, service and transport layers

package apperrors

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeUnknown         Code = "UNKNOWN"
	CodeInvalid         Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeAlreadyAchieved Code = "ALREADY_ACHIEVED"
	CodeConflict        Code = "CONCURRENCY_CONFLICT"
	CodeOutcomeUnknown  Code = "OUTCOME_UNKNOWN"
	CodeForbidden       Code = "PERMISSION_DENIED"
	CodeInternal        Code = "INTERNAL"
)

type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func Validation(msg string) error {
	return New(CodeInvalid, msg)
}

func NotFound(msg string) error {
	return New(CodeNotFound, msg)
}

func Forbidden(msg string) error {
	return New(CodeForbidden, msg)
}

// Conflict reports that optimistic retries were exhausted. The caller may
// retry the whole operation.
func Conflict(msg string, cause error) error {
	return Wrap(CodeConflict, msg, cause)
}

// OutcomeUnknown marks a storage failure after which the caller cannot tell
// whether the mutation landed.
func OutcomeUnknown(msg string, cause error) error {
	return Wrap(CodeOutcomeUnknown, msg, cause)
}

func Internal(msg string, cause error) error {
	return Wrap(CodeInternal, msg, cause)
}

// CodeOf walks the chain and returns the first AppError code found.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// As returns the outermost AppError in the chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
