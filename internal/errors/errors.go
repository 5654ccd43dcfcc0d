package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/reports-aggregator/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryValidation represents malformed or missing input, detected before any remote call
	CategoryValidation ErrorCategory = "validation"
	// CategoryTimeout represents a protected call that exceeded its time budget
	CategoryTimeout ErrorCategory = "timeout"
	// CategoryCircuitOpen represents a call short-circuited by an open breaker
	CategoryCircuitOpen ErrorCategory = "circuit_open"
	// CategoryBackendUnavailable represents the terminal failure produced by a fallback
	CategoryBackendUnavailable ErrorCategory = "backend_unavailable"
	// CategorySystem represents unexpected internal errors (5xx)
	CategorySystem ErrorCategory = "system"
	// CategoryRateLimit represents rate limit errors
	CategoryRateLimit ErrorCategory = "rate_limit"
)

// Error codes carried by CategorizedError.Code
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeTimeout            = "TIMEOUT"
	CodeCircuitOpen        = "CIRCUIT_OPEN"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
	CodeRateLimit          = "RATE_LIMIT_EXCEEDED"
	CodeNotFound           = "NOT_FOUND"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewValidationError creates an error for an invalid or missing parameter
func NewValidationError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       CodeValidation,
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewTimeoutError creates an error for an operation that exceeded its budget
func NewTimeoutError(operation string, budget time.Duration) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryTimeout,
		StatusCode: http.StatusGatewayTimeout,
		Code:       CodeTimeout,
		Message:    fmt.Sprintf("operation %s timed out after %s", operation, budget),
		Details: map[string]interface{}{
			"operation": operation,
			"timeout":   budget.String(),
		},
	}
}

// NewCircuitOpenError creates an error for a call rejected by an open breaker
func NewCircuitOpenError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryCircuitOpen,
		StatusCode: http.StatusServiceUnavailable,
		Code:       CodeCircuitOpen,
		Message:    fmt.Sprintf("circuit breaker for %s is open", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewBackendUnavailableError creates the terminal, user-visible failure of a protected operation
func NewBackendUnavailableError(operation string, message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryBackendUnavailable,
		StatusCode: http.StatusServiceUnavailable,
		Code:       CodeServiceUnavailable,
		Message:    message,
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeInternal,
		Message:    message,
		Cause:      cause,
	}
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(limit float64) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRateLimit,
		StatusCode: http.StatusTooManyRequests,
		Code:       CodeRateLimit,
		Message:    "rate limit exceeded",
		Details: map[string]interface{}{
			"limit": limit,
		},
	}
}

// Categorize categorizes an existing error. The outermost CategorizedError in the chain wins.
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr
	}

	// Default to internal error
	return NewInternalError("unexpected error", err)
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

func hasCategory(err error, category ErrorCategory) bool {
	var catErr *CategorizedError
	if !stderrors.As(err, &catErr) {
		return false
	}
	return catErr.Category == category
}

// IsValidation reports whether err is a validation failure
func IsValidation(err error) bool {
	return hasCategory(err, CategoryValidation)
}

// IsBackendUnavailable reports whether err is the terminal fallback failure
func IsBackendUnavailable(err error) bool {
	return hasCategory(err, CategoryBackendUnavailable)
}

// IsTimeout reports whether err or any wrapped cause is a timeout
func IsTimeout(err error) bool {
	for err != nil {
		if catErr, ok := err.(*CategorizedError); ok && catErr.Category == CategoryTimeout {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// IsCircuitOpen reports whether err or any wrapped cause is an open-breaker rejection
func IsCircuitOpen(err error) bool {
	for err != nil {
		if catErr, ok := err.(*CategorizedError); ok && catErr.Category == CategoryCircuitOpen {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// IsUserError determines if an error is a user error (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	return catErr.StatusCode >= 400 && catErr.StatusCode < 500
}

// IsSystemError determines if an error is a system error (5xx)
func IsSystemError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	return catErr.StatusCode >= 500
}
