package common

import (
	"errors"
	"net/http"
)

// Error codes shared by every module.
const (
	CodeValidation  = "VALIDATION_ERROR"
	CodeNotFound    = "NOT_FOUND"
	CodePersistence = "PERSISTENCE_ERROR"
	CodeConflict    = "CONFLICT"
	CodeInternal    = "INTERNAL"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// Validation reports input that blocks the current operation. No state is mutated.
func Validation(message string, details any) *AppError {
	return &AppError{Code: CodeValidation, Message: message, HTTPStatus: http.StatusBadRequest, Details: details}
}

// ValidationWrap is Validation carrying a sentinel so callers can match it with errors.Is.
func ValidationWrap(err error, message string, details any) *AppError {
	appErr := Validation(message, details)
	appErr.Err = err
	return appErr
}

// NotFound reports a missing resource.
func NotFound(what string) *AppError {
	return &AppError{Code: CodeNotFound, Message: what + " not found", HTTPStatus: http.StatusNotFound}
}

// Persistence reports a failed read or write against a backing store. The
// operation may be retried as a whole.
func Persistence(step string, err error) *AppError {
	return &AppError{
		Code:       CodePersistence,
		Message:    "unable to complete " + step,
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
		Details:    map[string]any{"step": step, "retryable": true},
	}
}

// Conflict reports a request that collides with existing state.
func Conflict(code, message string) *AppError {
	if code == "" {
		code = CodeConflict
	}
	return &AppError{Code: code, Message: message, HTTPStatus: http.StatusConflict}
}

// HasCode reports whether err is an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}
