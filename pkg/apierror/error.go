// Package apierror defines the structured error taxonomy shared by the
// services and the HTTP surface. Every failure class the scheduler and
// synchronizer distinguish (validation, auth, marketplace rejection,
// transient, conflict) has a constructor here so callers can branch on Code.
package apierror

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Taxonomy codes.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeAuthExpired         = "AUTH_EXPIRED"
	CodeMarketplaceRejected = "MARKETPLACE_REJECTED"
	CodeTransient           = "TRANSIENT"
	CodeConflict            = "CONFLICT"
	CodeTooFrequent         = "TOO_FREQUENT"
)

// Error represents a structured API error response.
type Error struct {
	StatusCode int          `json:"-"`
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Details    []FieldError `json:"details,omitempty"`
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// WithDetails adds field-level error details.
func (e *Error) WithDetails(details ...FieldError) *Error {
	e.Details = details
	return e
}

// ToJSON converts the error to JSON bytes.
func (e *Error) ToJSON() []byte {
	response := map[string]interface{}{
		"success": false,
		"error": map[string]interface{}{
			"code":    e.Code,
			"message": e.Message,
		},
	}

	if len(e.Details) > 0 {
		response["error"].(map[string]interface{})["details"] = e.Details
	}

	data, _ := json.Marshal(response)
	return data
}

// HasCode reports whether err is an *Error carrying the given taxonomy code.
func HasCode(err error, code string) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *Error {
	return &Error{
		StatusCode: http.StatusBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
	}
}

// Validation creates a 400 error for input rejected before any external call.
func Validation(message string, details ...FieldError) *Error {
	return &Error{
		StatusCode: http.StatusBadRequest,
		Code:       CodeValidation,
		Message:    message,
		Details:    details,
	}
}

// Unauthorized creates a 401 Unauthorized error.
func Unauthorized(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return &Error{
		StatusCode: http.StatusUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
	}
}

// AuthExpired creates a 401 error for an expired or revoked marketplace
// connection. Surfaced distinctly so the UI can re-prompt OAuth instead of
// retrying forever.
func AuthExpired(message string) *Error {
	if message == "" {
		message = "Marketplace connection expired; reconnect required"
	}
	return &Error{
		StatusCode: http.StatusUnauthorized,
		Code:       CodeAuthExpired,
		Message:    message,
	}
}

// NotFound creates a 404 Not Found error.
func NotFound(message string) *Error {
	if message == "" {
		message = "Resource not found"
	}
	return &Error{
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    message,
	}
}

// Conflict creates a 409 error for optimistic-concurrency version mismatches
// and for deletes rejected by referential rules.
func Conflict(message string) *Error {
	return &Error{
		StatusCode: http.StatusConflict,
		Code:       CodeConflict,
		Message:    message,
	}
}

// MarketplaceRejected creates a 422 error for a business-rule rejection by
// the marketplace (4xx upstream). Not retried; reported to the user.
func MarketplaceRejected(message string) *Error {
	return &Error{
		StatusCode: http.StatusUnprocessableEntity,
		Code:       CodeMarketplaceRejected,
		Message:    message,
	}
}

// TooFrequent creates a 429 error for callers re-running a rate-limited
// operation inside its freshness window.
func TooFrequent(message string) *Error {
	return &Error{
		StatusCode: http.StatusTooManyRequests,
		Code:       CodeTooFrequent,
		Message:    message,
	}
}

// Transient creates a 503 error for timeouts and upstream 429/5xx failures
// that will be retried next cycle.
func Transient(message string) *Error {
	if message == "" {
		message = "Temporary upstream failure"
	}
	return &Error{
		StatusCode: http.StatusServiceUnavailable,
		Code:       CodeTransient,
		Message:    message,
	}
}

// InternalError creates a 500 Internal Server Error.
func InternalError(message string) *Error {
	if message == "" {
		message = "An unexpected error occurred"
	}
	return &Error{
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
	}
}
