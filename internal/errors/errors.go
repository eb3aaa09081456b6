// Package errors categorizes failures so callers can decide whether to retry,
// skip or surface them.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/twin-miner/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryStore represents target store (Postgres) errors
	CategoryStore ErrorCategory = "store"
	// CategoryCache represents sequence cursor (Redis) errors
	CategoryCache ErrorCategory = "cache"
	// CategoryAnalytics represents improvement history (ClickHouse) errors
	CategoryAnalytics ErrorCategory = "analytics"
	// CategoryNotification represents discovery webhook errors
	CategoryNotification ErrorCategory = "notification"
	// CategoryValidation represents malformed input or target data
	CategoryValidation ErrorCategory = "validation"
	// CategoryNotFound represents missing records
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryConfig represents unusable configuration
	CategoryConfig ErrorCategory = "config"
	// CategorySystem represents everything else
	CategorySystem ErrorCategory = "system"
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

// NewStoreError creates a target store error
func NewStoreError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryStore,
		StatusCode: http.StatusInternalServerError,
		Code:       "STORE_ERROR",
		Message:    fmt.Sprintf("store error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewCacheError creates a sequence cursor error
func NewCacheError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryCache,
		StatusCode: http.StatusInternalServerError,
		Code:       "CACHE_ERROR",
		Message:    fmt.Sprintf("cache error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewAnalyticsError creates an improvement history error
func NewAnalyticsError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAnalytics,
		StatusCode: http.StatusInternalServerError,
		Code:       "ANALYTICS_ERROR",
		Message:    fmt.Sprintf("analytics error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewNotifyError creates a discovery webhook error. status is the HTTP status
// returned by the endpoint, or 0 for transport failures.
func NewNotifyError(targetID string, status int, cause error) *CategorizedError {
	msg := fmt.Sprintf("discovery notification for target %s failed", targetID)
	if status != 0 {
		msg = fmt.Sprintf("%s with status %d", msg, status)
	}
	return &CategorizedError{
		Category:   CategoryNotification,
		StatusCode: http.StatusBadGateway,
		Code:       "NOTIFY_FAILED",
		Message:    msg,
		Cause:      cause,
		Details: map[string]interface{}{
			"targetId": targetID,
			"status":   status,
		},
	}
}

// NewMalformedTargetError reports a target whose data cannot be scored
func NewMalformedTargetError(targetID string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       "MALFORMED_TARGET",
		Message:    fmt.Sprintf("target %s cannot be scored", targetID),
		Cause:      cause,
		Details: map[string]interface{}{
			"targetId": targetID,
		},
	}
}

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Cause:      cause,
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewConfigError reports a configuration value the miner cannot start with
func NewConfigError(key string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryConfig,
		StatusCode: http.StatusInternalServerError,
		Code:       "INVALID_CONFIG",
		Message:    fmt.Sprintf("invalid configuration %s: %s", key, reason),
		Details: map[string]interface{}{
			"key":    key,
			"reason": reason,
		},
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// Categorize categorizes an existing error. Wrapped CategorizedErrors are
// found with errors.As.
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr
	}

	var svcErr *types.ServiceError
	if stderrors.As(err, &svcErr) {
		return &CategorizedError{
			Category:   CategorySystem,
			StatusCode: http.StatusInternalServerError,
			Code:       svcErr.Code,
			Message:    svcErr.Message,
			Details:    svcErr.Details,
		}
	}

	return NewInternalError("unexpected error", err)
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsRetryable determines if an error is worth retrying. Only connection
// establishment uses this; notifications are never retried.
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	switch catErr.Category {
	case CategoryStore, CategoryCache, CategoryAnalytics:
		return true
	default:
		return false
	}
}
