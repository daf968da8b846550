package common

import (
	"errors"
	"net/http"
)

// Error codes shared by every service in the module.
const (
	CodeInvalidInput = "INVALID_INPUT"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeValidation   = "VALIDATION_ERROR"
	CodeStorage      = "STORAGE_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeBadRequest   = "BAD_REQUEST"
	CodeInternal     = "INTERNAL"
)

// Sentinels usable with errors.Is; they match any AppError carrying the same code.
var (
	ErrInvalidInput = &AppError{Code: CodeInvalidInput, HTTPStatus: http.StatusBadRequest}
	ErrForbidden    = &AppError{Code: CodeForbidden, HTTPStatus: http.StatusForbidden}
	ErrNotFound     = &AppError{Code: CodeNotFound, HTTPStatus: http.StatusNotFound}
	ErrValidation   = &AppError{Code: CodeValidation, HTTPStatus: http.StatusUnprocessableEntity}
	ErrStorage      = &AppError{Code: CodeStorage, HTTPStatus: http.StatusInternalServerError}
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
		if e.Message != "" {
			return e.Message + ": " + e.Err.Error()
		}
		return e.Err.Error()
	}
	if e.Message == "" {
		return e.Code
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

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return other.Code != "" && e.Code == other.Code
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

// InvalidInput reports a malformed or out-of-range request value.
func InvalidInput(message string, details any) *AppError {
	return &AppError{Code: CodeInvalidInput, Message: message, HTTPStatus: http.StatusBadRequest, Details: details}
}

// Forbidden reports that the actor lacks the capability for an operation.
func Forbidden(message string) *AppError {
	if message == "" {
		message = "you are not allowed to perform this action"
	}
	return &AppError{Code: CodeForbidden, Message: message, HTTPStatus: http.StatusForbidden}
}

// NotFound reports a missing record.
func NotFound(message string) *AppError {
	if message == "" {
		message = "not found"
	}
	return &AppError{Code: CodeNotFound, Message: message, HTTPStatus: http.StatusNotFound}
}

// Validation reports a settings or payload rule violation.
func Validation(message string, details any) *AppError {
	return &AppError{Code: CodeValidation, Message: message, HTTPStatus: http.StatusUnprocessableEntity, Details: details}
}

// Storage wraps a persistence failure. The underlying error never reaches clients.
func Storage(err error) *AppError {
	return &AppError{Code: CodeStorage, Message: "storage failure", HTTPStatus: http.StatusInternalServerError, Err: err}
}

// Code returns the AppError code carried by err or CodeInternal.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != "" {
		return appErr.Code
	}
	return CodeInternal
}
