// Package errors defines the categorized error taxonomy shared by the pipeline,
// the providers and the HTTP layer.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/scor-analyzer/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryUserInput represents user input errors (4xx)
	CategoryUserInput ErrorCategory = "user_input"
	// CategoryValidation represents request validation errors
	CategoryValidation ErrorCategory = "validation"
	// CategoryUpstream represents chain-data or price-data provider failures
	CategoryUpstream ErrorCategory = "upstream"
	// CategoryDataFormat represents fetched data that does not match the expected shape
	CategoryDataFormat ErrorCategory = "data_format"
	// CategoryCache represents cache backend failures
	CategoryCache ErrorCategory = "cache"
	// CategoryDatabase represents database errors
	CategoryDatabase ErrorCategory = "database"
	// CategoryRateLimit represents rate limit errors
	CategoryRateLimit ErrorCategory = "rate_limit"
	// CategorySystem represents unexpected system errors (5xx)
	CategorySystem ErrorCategory = "system"
)

// Error codes
const (
	CodeInvalidSubjectFormat = "INVALID_SUBJECT_FORMAT"
	CodeInvalidParameter     = "INVALID_PARAMETER"
	CodeUpstreamUnavailable  = "UPSTREAM_UNAVAILABLE"
	CodeDataFormat           = "DATA_FORMAT_ERROR"
	CodeCacheUnavailable     = "CACHE_UNAVAILABLE"
	CodeDatabase             = "DATABASE_ERROR"
	CodeRateLimit            = "RATE_LIMIT_EXCEEDED"
	CodeInternal             = "INTERNAL_ERROR"
)

// User-facing messages. Raw upstream bodies never reach the caller.
const (
	MessageBadAddress          = "Invalid DAO address format. Please check the address."
	MessageUpstreamUnavailable = "Upstream data unavailable. Please try again later."
	MessageRetry               = "Something went wrong. Please try again in a moment."
	MessageRateLimited         = "Rate limit exceeded. Please wait a moment and try again."
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

// ToServiceError converts to the public error shape, replacing internal detail
// with the short user-facing message for the category.
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: PublicMessage(e),
		Details: e.Details,
	}
}

// NewInvalidSubjectError creates an error for a malformed subject identifier
func NewInvalidSubjectError(subject string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUserInput,
		StatusCode: http.StatusBadRequest,
		Code:       CodeInvalidSubjectFormat,
		Message:    fmt.Sprintf("invalid subject format: %q", subject),
		Details: map[string]interface{}{
			"subject": subject,
		},
	}
}

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       CodeInvalidParameter,
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewUpstreamUnavailableError creates an error for a failed chain-data or price-data fetch
func NewUpstreamUnavailableError(provider string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUpstream,
		StatusCode: http.StatusBadGateway,
		Code:       CodeUpstreamUnavailable,
		Message:    fmt.Sprintf("upstream unavailable: %s", provider),
		Cause:      cause,
		Details: map[string]interface{}{
			"provider": provider,
		},
	}
}

// NewUpstreamStatusError creates an upstream error for a non-success HTTP status
func NewUpstreamStatusError(provider string, statusCode int) *CategorizedError {
	err := NewUpstreamUnavailableError(provider, fmt.Errorf("unexpected status %d", statusCode))
	err.Details["status"] = statusCode
	return err
}

// NewDataFormatError creates an error for data that does not match the expected shape
func NewDataFormatError(field string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDataFormat,
		StatusCode: http.StatusBadGateway,
		Code:       CodeDataFormat,
		Message:    fmt.Sprintf("malformed field '%s': %s", field, reason),
		Details: map[string]interface{}{
			"field": field,
		},
	}
}

// NewCacheUnavailableError creates a cache error
func NewCacheUnavailableError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryCache,
		StatusCode: http.StatusServiceUnavailable,
		Code:       CodeCacheUnavailable,
		Message:    fmt.Sprintf("cache unavailable during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeDatabase,
		Message:    fmt.Sprintf("database error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
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

// Categorize categorizes an existing error. Wrapped CategorizedErrors are found
// anywhere in the chain; anything else becomes an internal error.
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr
	}

	return NewInternalError("unexpected error", err)
}

func hasCategory(err error, category ErrorCategory) bool {
	var catErr *CategorizedError
	return stderrors.As(err, &catErr) && catErr.Category == category
}

// IsInvalidSubject reports whether err is an InvalidSubjectFormat error
func IsInvalidSubject(err error) bool {
	var catErr *CategorizedError
	return stderrors.As(err, &catErr) && catErr.Code == CodeInvalidSubjectFormat
}

// IsUpstreamUnavailable reports whether err is an UpstreamUnavailable error
func IsUpstreamUnavailable(err error) bool {
	return hasCategory(err, CategoryUpstream)
}

// IsDataFormat reports whether err is a DataFormatError
func IsDataFormat(err error) bool {
	return hasCategory(err, CategoryDataFormat)
}

// IsCacheUnavailable reports whether err is a CacheUnavailable error
func IsCacheUnavailable(err error) bool {
	return hasCategory(err, CategoryCache)
}

// IsRateLimited reports whether err is a rate limit error
func IsRateLimited(err error) bool {
	return hasCategory(err, CategoryRateLimit)
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the short user-visible message for an error
func PublicMessage(err error) string {
	catErr := Categorize(err)
	if catErr == nil {
		return ""
	}

	switch catErr.Category {
	case CategoryUserInput:
		return MessageBadAddress
	case CategoryValidation:
		return catErr.Message
	case CategoryUpstream, CategoryDataFormat:
		return MessageUpstreamUnavailable
	case CategoryRateLimit:
		return MessageRateLimited
	default:
		return MessageRetry
	}
}

// IsRetryable determines if an error is retryable
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	switch catErr.Category {
	case CategoryUpstream, CategoryCache, CategoryDatabase:
		return true
	case CategoryRateLimit:
		return true
	default:
		return false
	}
}

// IsUserError determines if an error is a user error (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	return catErr.StatusCode >= 400 && catErr.StatusCode < 500
}
