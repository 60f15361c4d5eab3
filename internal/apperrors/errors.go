package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Code is a stable, machine-readable error code shared across the connector.
// Codes are part of the API surface; do not rename existing values.
type Code string

const (
	CodeNetworkError          Code = "network_error"
	CodeRateLimitExceeded     Code = "rate_limit_exceeded"
	CodeAuthenticationFailed  Code = "authentication_failed"
	CodeValidationFailed      Code = "validation_failed"
	CodeInvalidAddress        Code = "invalid_address"
	CodeInvalidProductSKU     Code = "invalid_product_sku"
	CodeInsufficientInventory Code = "insufficient_inventory"
	CodeTrackingAlreadySynced Code = "tracking_already_synced"
	CodeMarketplaceAPIError   Code = "marketplace_api_error"
	CodeFulfillmentAPIError   Code = "fulfillment_api_error"
)

// Error is the typed error carried across client and service boundaries.
// Retryable indicates whether the caller may retry the same request verbatim.
type Error struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`

	// StatusCode is the upstream HTTP status when the error originated from a
	// remote API call, 0 otherwise.
	StatusCode int `json:"statusCode,omitempty"`

	// RetryAfter is the provider-declared delay before a retry may be made.
	// When set it overrides the computed backoff.
	RetryAfter time.Duration `json:"-"`

	cause error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a non-retryable error with the given code.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewRetryable creates a retryable error with the given code.
func NewRetryable(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Retryable: true}
}

// Wrap attaches a cause to a new error with the given code. Retryability is
// inherited from the cause when it is itself an *Error.
func Wrap(code Code, cause error, message string) *Error {
	e := &Error{Code: code, Message: message, cause: cause}
	var inner *Error
	if errors.As(cause, &inner) {
		e.Retryable = inner.Retryable
	}
	return e
}

// WithStatus sets the upstream HTTP status on the error and returns it.
func (e *Error) WithStatus(status int) *Error {
	e.StatusCode = status
	return e
}

// FromHTTPStatus maps an upstream HTTP status to a typed error using the
// provider-specific catch-all code for anything unclassified.
func FromHTTPStatus(status int, catchAll Code, body string) *Error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return New(CodeAuthenticationFailed, "authentication rejected by remote API: %s", body).WithStatus(status)
	case status == http.StatusTooManyRequests:
		return NewRetryable(CodeRateLimitExceeded, "remote API rate limit exceeded").WithStatus(status)
	case status >= 500:
		return NewRetryable(catchAll, "remote API unavailable: %s", body).WithStatus(status)
	default:
		return New(catchAll, "remote API error: %s", body).WithStatus(status)
	}
}

// IsRetryable reports whether err is a retryable connector error. Plain
// network errors (no typed wrapper) are treated as retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return err != nil
}

// CodeOf extracts the connector error code, or "" for untyped errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// As is a convenience wrapper around errors.As for *Error.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
