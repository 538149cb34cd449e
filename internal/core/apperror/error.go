// Package apperror provides structured error handling for the publishing core.
// All errors crossing a package boundary must use AppError so that callers can
// distinguish the error kinds of the storage pipeline without string matching.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes of the storage and rendering pipeline
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeEngine   = "ENGINE_ERROR"

	// Filter and cursor validation (400)
	CodeFilterParse  = "FILTER_PARSE_ERROR"
	CodeInvalidInput = "INVALID_INPUT"

	// Query translation (422)
	CodeTranslation = "TRANSLATION_UNSUPPORTED"

	// Document validation before a write (400)
	CodeValidation = "VALIDATION_ERROR"

	// Write matched fewer documents than expected (409)
	CodePartialWrite = "PARTIAL_WRITE_MISMATCH"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"
)

// AppError is the standard error type for the framework.
// It implements the error interface and carries structured details.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (operator, field, backend, counts)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions for common errors ---

// NewFilterParse creates a filter parse error (400).
// Raised before any query execution: wrong arity, unknown operator,
// reversed range bounds, unknown field.
func NewFilterParse(message string) *AppError {
	return &AppError{
		Code:       CodeFilterParse,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewTranslationUnsupported is returned when a backend cannot express an
// operator. The caller must see operator, field and backend; the framework
// never silently approximates.
func NewTranslationUnsupported(backend, operator, field string) *AppError {
	return &AppError{
		Code:       CodeTranslation,
		Message:    fmt.Sprintf("operator %q on field %q is not supported by the %s backend", operator, field, backend),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"backend": backend, "operator": operator, "field": field},
	}
}

// NewEngine wraps a storage engine failure (network, connection, I/O).
func NewEngine(backend, operation string, err error) *AppError {
	return &AppError{
		Code:       CodeEngine,
		Message:    fmt.Sprintf("%s: %s failed", backend, operation),
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"backend": backend, "operation": operation},
		Err:        err,
	}
}

// NewValidation creates a document validation error (400).
// A document failing validation is never sent to the storage engine.
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidInput creates an error for malformed request parameters (400),
// e.g. a page limit outside the enumerated set.
func NewInvalidInput(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidInput,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewPartialWriteMismatch reports a write that matched fewer documents than
// expected (concurrent deletion or id mismatch). Reported, never retried.
func NewPartialWriteMismatch(collection string, id any, matched int64) *AppError {
	return &AppError{
		Code:       CodePartialWrite,
		Message:    "write matched an unexpected number of documents",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"collection": collection, "id": id, "matched": matched},
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal creates an internal error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// --- Helper functions ---

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsCode checks the code of an error in the chain.
func IsCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}

// IsTranslationUnsupported checks if error is CodeTranslation
func IsTranslationUnsupported(err error) bool {
	return IsCode(err, CodeTranslation)
}
