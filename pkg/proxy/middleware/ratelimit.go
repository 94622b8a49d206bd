package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"

	"meridian-hq/nexus/pkg/limits/ratelimit"
	"meridian-hq/nexus/pkg/proxy"
	"meridian-hq/nexus/pkg/telemetry/logging"
)

// RateLimitRecorder counts rejected requests by reason.
type RateLimitRecorder interface {
	RecordRateLimited(reason string)
}

// LimiterSource returns the live limiter set, or nil when limiting is off.
type LimiterSource func() *ratelimit.Manager

// RateLimit admits requests through the per-client limiters. It must run
// after authentication so the client description is in the context; open
// gateways fall back to the remote IP. Rejections get 429 with
// Retry-After.
func RateLimit(source LimiterSource, recorder RateLimitRecorder, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limits := source()
			if limits == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := ClientKey(r)
			release, d := limits.Acquire(key)
			if !d.Allowed {
				if recorder != nil {
					recorder.RecordRateLimited(d.Reason)
				}
				logger.WarnContext(r.Context(), "Request rate limited",
					"key", key,
					"reason", d.Reason,
					"limit", d.Limit,
					"retry_after", d.RetryAfter,
				)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(d)))
				_ = proxy.WriteError(w, proxy.NewRateLimitError(d.Reason))
				return
			}
			defer release()

			if d.Limit >= 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
				w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientKey identifies the caller for rate limiting: the authenticated
// client description, else the remote IP.
func ClientKey(r *http.Request) string {
	if client := logging.GetClient(r.Context()); client != "" {
		return "client:" + client
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func retryAfterSeconds(d ratelimit.Decision) int {
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
