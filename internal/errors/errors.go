package errors

import (
	"fmt"
	"net/http"

	"github.com/botique-hub/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryValidation represents malformed or missing request fields (4xx)
	CategoryValidation ErrorCategory = "validation"
	// CategoryAuthorization represents credential failures
	CategoryAuthorization ErrorCategory = "authorization"
	// CategoryPayment represents on-chain payment verification failures
	CategoryPayment ErrorCategory = "payment"
	// CategoryStateTransition represents rejected job lifecycle transitions
	CategoryStateTransition ErrorCategory = "state_transition"
	// CategoryDelivery represents webhook delivery failures
	CategoryDelivery ErrorCategory = "delivery"
	// CategoryNotFound represents missing resources
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryDatabase represents database errors
	CategoryDatabase ErrorCategory = "database"
	// CategorySystem represents internal system errors (5xx)
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

// ToServiceError converts to the wire-level ServiceError. The cause is
// deliberately dropped so internal detail never reaches a response body.
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewValidationError creates a validation error for a malformed field
func NewValidationError(field string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "VALIDATION_ERROR",
		Message:    fmt.Sprintf("invalid field '%s': %s", field, reason),
		Details: map[string]interface{}{
			"field":  field,
			"reason": reason,
		},
	}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewPaymentVerificationError creates a payment verification error.
// The job stays in its current state; payment can be retried with a new
// transaction hash.
func NewPaymentVerificationError(reason string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryPayment,
		StatusCode: http.StatusPaymentRequired,
		Code:       "PAYMENT_VERIFICATION_FAILED",
		Message:    fmt.Sprintf("payment verification failed: %s", reason),
		Cause:      cause,
		Details: map[string]interface{}{
			"reason": reason,
		},
	}
}

// NewInvalidStateTransitionError creates an invalid state transition error
func NewInvalidStateTransitionError(jobID string, from, to types.JobStatus) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryStateTransition,
		StatusCode: http.StatusConflict,
		Code:       "INVALID_STATE_TRANSITION",
		Message:    fmt.Sprintf("job %s cannot transition from %s to %s", jobID, from, to),
		Details: map[string]interface{}{
			"jobId": jobID,
			"from":  string(from),
			"to":    string(to),
		},
	}
}

// NewDeliveryPermanentFailureError creates an error for a webhook target
// that rejected the notification with a 4xx response.
func NewDeliveryPermanentFailureError(statusCode int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDelivery,
		StatusCode: http.StatusBadGateway,
		Code:       "DELIVERY_PERMANENT_FAILURE",
		Message:    fmt.Sprintf("webhook target rejected notification with status %d", statusCode),
		Details: map[string]interface{}{
			"statusCode": statusCode,
		},
	}
}

// NewDeliveryExhaustedError creates an error for a webhook delivery that
// failed transiently on every attempt.
func NewDeliveryExhaustedError(attempts int, lastErr string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDelivery,
		StatusCode: http.StatusBadGateway,
		Code:       "DELIVERY_EXHAUSTED",
		Message:    fmt.Sprintf("webhook delivery failed after %d attempts", attempts),
		Details: map[string]interface{}{
			"attempts":  attempts,
			"lastError": lastErr,
		},
	}
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       "DATABASE_ERROR",
		Message:    fmt.Sprintf("database error during %s", operation),
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
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	if catErr, ok := err.(*CategorizedError); ok {
		return catErr
	}

	if svcErr, ok := err.(*types.ServiceError); ok {
		return categorizeServiceError(svcErr)
	}

	return NewInternalError("unexpected error", err)
}

func categorizeServiceError(err *types.ServiceError) *CategorizedError {
	status := http.StatusInternalServerError
	category := CategorySystem

	switch err.Code {
	case "VALIDATION_ERROR":
		status, category = http.StatusBadRequest, CategoryValidation
	case "UNAUTHORIZED":
		status, category = http.StatusUnauthorized, CategoryAuthorization
	case "NOT_FOUND":
		status, category = http.StatusNotFound, CategoryNotFound
	case "PAYMENT_VERIFICATION_FAILED":
		status, category = http.StatusPaymentRequired, CategoryPayment
	case "INVALID_STATE_TRANSITION":
		status, category = http.StatusConflict, CategoryStateTransition
	case "DELIVERY_PERMANENT_FAILURE", "DELIVERY_EXHAUSTED":
		status, category = http.StatusBadGateway, CategoryDelivery
	}

	return &CategorizedError{
		Category:   category,
		StatusCode: status,
		Code:       err.Code,
		Message:    err.Message,
		Details:    err.Details,
	}
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsUserError determines if an error is a user error (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}
	return catErr.StatusCode >= 400 && catErr.StatusCode < 500
}

// IsRetryable determines if the failed operation may succeed on resubmission
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	// A failed payment check can be retried with a new transaction;
	// database and system errors may be transient.
	switch catErr.Category {
	case CategoryPayment, CategoryDatabase:
		return true
	case CategorySystem:
		return catErr.StatusCode == http.StatusServiceUnavailable
	default:
		return false
	}
}
