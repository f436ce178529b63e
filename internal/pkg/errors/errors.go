// Package errors provides custom error types and error handling utilities.
package errors

import (
	goerrors "errors"
	"fmt"
	"strconv"
)

// Error codes.
const (
	// Client/input errors.
	CodeValidation     = "VALIDATION_ERROR"
	CodeNotFound       = "NOT_FOUND"
	CodeInvalidRequest = "INVALID_REQUEST"

	// Backend errors.
	CodeBackend        = "BACKEND_ERROR"
	CodeBackendTimeout = "BACKEND_TIMEOUT"
	CodeCircuitOpen    = "CIRCUIT_OPEN"
	CodeCostLimited    = "COST_LIMITED"
	CodeSynthesis      = "SYNTHESIS_ERROR"

	// Infrastructure errors.
	CodeInternal    = "INTERNAL_ERROR"
	CodeUnavailable = "SERVICE_UNAVAILABLE"
)

// Backend identifiers used in error details.
const (
	BackendExact    = "exact"
	BackendSemantic = "semantic"
	BackendModel    = "model"
)

// AppError represents an application error with code and details.
type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with an AppError.
func Wrap(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// WithDetail adds a single detail to the error.
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Convenience constructors.

// ValidationError creates a validation error.
func ValidationError(message string) *AppError {
	return New(CodeValidation, message)
}

// BackendError wraps a store or network failure from a backend.
func BackendError(backend string, err error) *AppError {
	return Wrap(CodeBackend, fmt.Sprintf("%s backend failed", backend), err).
		WithDetail("backend", backend)
}

// TimeoutError creates a deadline-exceeded error for a backend.
func TimeoutError(backend string) *AppError {
	return New(CodeBackendTimeout, fmt.Sprintf("%s backend deadline exceeded", backend)).
		WithDetail("backend", backend)
}

// CircuitOpenError creates a breaker-rejected error with retry hint.
func CircuitOpenError(backend string, retryAfterMs int64) *AppError {
	return New(CodeCircuitOpen,
		fmt.Sprintf("%s backend unavailable, retry in %dms", backend, retryAfterMs)).
		WithDetail("backend", backend).
		WithDetail("retry_after_ms", strconv.FormatInt(retryAfterMs, 10))
}

// CostLimitError creates a daily-ceiling-exceeded error.
func CostLimitError(limitType, reason string) *AppError {
	return New(CodeCostLimited, reason).WithDetail("limit_type", limitType)
}

// SynthesisError wraps a model completion failure.
func SynthesisError(err error) *AppError {
	return Wrap(CodeSynthesis, "answer synthesis failed", err)
}

// InternalError creates an internal error.
func InternalError(message string, err error) *AppError {
	return Wrap(CodeInternal, message, err)
}

// Predicates used by the orchestrator's degradation logic.

// CodeOf returns the AppError code of err, or empty string.
func CodeOf(err error) string {
	var appErr *AppError
	if goerrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// BackendOf returns the backend named in err's details, or empty string.
func BackendOf(err error) string {
	var appErr *AppError
	if goerrors.As(err, &appErr) {
		return appErr.Details["backend"]
	}
	return ""
}

// IsCircuitOpen reports whether err is a breaker rejection.
func IsCircuitOpen(err error) bool {
	return CodeOf(err) == CodeCircuitOpen
}

// IsCostLimited reports whether err is a cost governor denial.
func IsCostLimited(err error) bool {
	return CodeOf(err) == CodeCostLimited
}

// IsBackendFailure reports whether err is a tolerable backend failure:
// a store error, a timeout, or an open breaker. These degrade a single
// backend to a nil result instead of failing the query.
func IsBackendFailure(err error) bool {
	switch CodeOf(err) {
	case CodeBackend, CodeBackendTimeout, CodeCircuitOpen:
		return true
	}
	return false
}

// RetryAfterMs returns the retry hint of a breaker rejection, or 0.
func RetryAfterMs(err error) int64 {
	var appErr *AppError
	if !goerrors.As(err, &appErr) {
		return 0
	}
	ms, parseErr := strconv.ParseInt(appErr.Details["retry_after_ms"], 10, 64)
	if parseErr != nil {
		return 0
	}
	return ms
}
