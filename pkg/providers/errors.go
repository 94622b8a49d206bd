package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
)

// ErrorType is the coarse classification of a failed operation.
type ErrorType string

const (
	// TypeInvalidRequest marks requests rejected before any network call.
	TypeInvalidRequest ErrorType = "invalid_request"

	// TypeModelNotFound marks requests whose provider prefix cannot be resolved.
	TypeModelNotFound ErrorType = "model_not_found"

	// TypeProviderError marks upstream failures: non-2xx status, transport
	// failure, timeout, malformed or oversized body.
	TypeProviderError ErrorType = "provider_error"

	// TypeInternalError marks anything unanticipated.
	TypeInternalError ErrorType = "internal_error"
)

// Machine-stable error codes.
const (
	CodeMissingField            = "missing_field"
	CodeInvalidField            = "invalid_field"
	CodeModelNotFound           = "model_not_found"
	CodeProviderRequestFailed   = "provider_request_failed"
	CodeProviderTimeout         = "provider_timeout"
	CodeResponseTooLarge        = "response_too_large"
	CodeInvalidProviderResponse = "invalid_provider_response"
	CodeInternalError           = "internal_error"
)

// ErrResponseTooLarge is wrapped by errors for bodies exceeding MaxResponseSize.
var ErrResponseTooLarge = errors.New("response exceeds maximum size")

// ErrConnectionClosed is returned by calls made after Close.
var ErrConnectionClosed = errors.New("connection closed")

// Error is the structured outcome of a failed gateway operation.
type Error struct {
	// Type is the coarse classification
	Type ErrorType

	// Code is the machine-stable code
	Code string

	// Provider is the provider involved, if any
	Provider string

	// StatusCode is the upstream HTTP status (0 if not applicable)
	StatusCode int

	// Message is the human-readable description
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %q %s (status %d): %s", e.Provider, e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %q %s: %s", e.Provider, e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrorBody is the wire form {"error": {...}}.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the message, type and code of an error body.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// Body returns the wire representation of the error.
func (e *Error) Body() ErrorBody {
	return ErrorBody{Error: ErrorDetail{
		Message: e.Message,
		Type:    string(e.Type),
		Code:    e.Code,
	}}
}

// MarshalJSON encodes the error as its wire body.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Body())
}

// AsError extracts a *Error from err, wrapping anything else as internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewInternalError(err)
}

// NewMissingFieldError reports a required request field that is absent.
func NewMissingFieldError(field string) *Error {
	return &Error{
		Type:    TypeInvalidRequest,
		Code:    CodeMissingField,
		Message: fmt.Sprintf("missing required field %q", field),
	}
}

// NewInvalidFieldError reports a request field with the wrong shape.
func NewInvalidFieldError(field, reason string) *Error {
	return &Error{
		Type:    TypeInvalidRequest,
		Code:    CodeInvalidField,
		Message: fmt.Sprintf("invalid field %q: %s", field, reason),
	}
}

// NewModelNotFoundError reports a model whose provider cannot be resolved.
func NewModelNotFoundError(model string) *Error {
	provider, _ := ParseModelName(model)
	msg := fmt.Sprintf("model %q not found: expected \"<provider>/<model>\"", model)
	if provider != "" {
		msg = fmt.Sprintf("model %q not found: unknown provider %q", model, provider)
	}
	return &Error{
		Type:     TypeModelNotFound,
		Code:     CodeModelNotFound,
		Provider: provider,
		Message:  msg,
	}
}

// NewStatusError reports a non-2xx upstream response.
func NewStatusError(provider string, status int, snippet string) *Error {
	msg := fmt.Sprintf("provider %s returned status %d", provider, status)
	if snippet != "" {
		msg += ": " + snippet
	}
	return &Error{
		Type:       TypeProviderError,
		Code:       CodeProviderRequestFailed,
		Provider:   provider,
		StatusCode: status,
		Message:    msg,
	}
}

// NewTransportError classifies a failed upstream round trip.
func NewTransportError(provider string, err error) *Error {
	if errors.Is(err, ErrResponseTooLarge) {
		return NewTooLargeError(provider, 0)
	}
	if isTimeout(err) {
		return &Error{
			Type:     TypeProviderError,
			Code:     CodeProviderTimeout,
			Provider: provider,
			Message:  fmt.Sprintf("provider %s timed out", provider),
			Cause:    err,
		}
	}
	return &Error{
		Type:     TypeProviderError,
		Code:     CodeProviderRequestFailed,
		Provider: provider,
		Message:  fmt.Sprintf("provider %s request failed: %v", provider, err),
		Cause:    err,
	}
}

// NewTooLargeError reports a buffered body above the configured limit.
func NewTooLargeError(provider string, limit int64) *Error {
	msg := fmt.Sprintf("provider %s response exceeds maximum size", provider)
	if limit > 0 {
		msg = fmt.Sprintf("provider %s response exceeds maximum size of %d bytes", provider, limit)
	}
	return &Error{
		Type:     TypeProviderError,
		Code:     CodeResponseTooLarge,
		Provider: provider,
		Message:  msg,
		Cause:    ErrResponseTooLarge,
	}
}

// NewInvalidResponseError reports an upstream body that could not be parsed.
func NewInvalidResponseError(provider string, err error) *Error {
	return &Error{
		Type:     TypeProviderError,
		Code:     CodeInvalidProviderResponse,
		Provider: provider,
		Message:  fmt.Sprintf("provider %s returned an invalid response: %v", provider, err),
		Cause:    err,
	}
}

// NewInternalError wraps an unanticipated failure.
func NewInternalError(err error) *Error {
	return &Error{
		Type:    TypeInternalError,
		Code:    CodeInternalError,
		Message: fmt.Sprintf("internal error: %v", err),
		Cause:   err,
	}
}

// isTimeout reports whether err is a deadline or network timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsTimeout reports whether err is a provider timeout.
func IsTimeout(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == CodeProviderTimeout
	}
	return isTimeout(err)
}
