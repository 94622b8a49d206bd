package proxy

import (
	"net/http"
	"strconv"

	"meridian-hq/nexus/pkg/limits/ratelimit"
	"meridian-hq/nexus/pkg/providers"
)

// Request-level error codes produced before the gateway is reached.
const (
	CodeInvalidJSON       = "invalid_json"
	CodeRequestTooLarge   = "request_too_large"
	CodeRateLimitExceeded = "rate_limit_exceeded"
)

// TypeRateLimit classifies requests turned away by admission control.
const TypeRateLimit providers.ErrorType = "rate_limit_error"

// StatusCode maps a gateway error to its HTTP status.
//
//	invalid_request  -> 400 (413 for oversized bodies)
//	model_not_found  -> 404
//	provider_error   -> 502 (504 for timeouts)
//	rate_limit_error -> 429
//	internal_error   -> 500
func StatusCode(err *providers.Error) int {
	if err == nil {
		return http.StatusOK
	}
	switch err.Type {
	case providers.TypeInvalidRequest:
		if err.Code == CodeRequestTooLarge {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case providers.TypeModelNotFound:
		return http.StatusNotFound
	case TypeRateLimit:
		return http.StatusTooManyRequests
	case providers.TypeProviderError:
		if err.Code == providers.CodeProviderTimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewInvalidJSONError reports an unparseable request body.
func NewInvalidJSONError(err error) *providers.Error {
	return &providers.Error{
		Type:    providers.TypeInvalidRequest,
		Code:    CodeInvalidJSON,
		Message: "Request body must be a JSON object: " + err.Error(),
		Cause:   err,
	}
}

// NewRequestTooLargeError reports a body over the configured limit.
func NewRequestTooLargeError(limit int64) *providers.Error {
	return &providers.Error{
		Type:    providers.TypeInvalidRequest,
		Code:    CodeRequestTooLarge,
		Message: "Request body exceeds the limit of " + formatBytes(limit),
	}
}

// NewRateLimitError reports a client over its request rate or concurrency
// limit.
func NewRateLimitError(reason string) *providers.Error {
	msg := "Rate limit exceeded"
	switch reason {
	case ratelimit.ReasonRate:
		msg = "Rate limit exceeded: too many requests"
	case ratelimit.ReasonConcurrency:
		msg = "Rate limit exceeded: too many concurrent requests"
	}
	return &providers.Error{
		Type:    TypeRateLimit,
		Code:    CodeRateLimitExceeded,
		Message: msg,
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	switch {
	case n >= unit*unit && n%(unit*unit) == 0:
		return strconv.FormatInt(n/(unit*unit), 10) + " MiB"
	case n >= unit && n%unit == 0:
		return strconv.FormatInt(n/unit, 10) + " KiB"
	default:
		return strconv.FormatInt(n, 10) + " bytes"
	}
}
