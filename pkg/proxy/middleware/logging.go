package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"meridian-hq/nexus/pkg/security/tls"
)

// HTTPRecorder receives one observation per completed request.
type HTTPRecorder interface {
	RecordHTTPRequest(route, method string, status int, duration time.Duration)
}

// responseWriter captures the status code and byte count. It keeps
// http.ResponseController working through Unwrap so streaming handlers can
// still flush.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	bytes      int64
	written    bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.written {
		return
	}
	rw.statusCode = code
	rw.written = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// LoggingOptions configures Logging.
type LoggingOptions struct {
	Logger   *slog.Logger
	Recorder HTTPRecorder

	// IdentitySource, when set, logs the verified client certificate
	// field as "client_cert".
	IdentitySource string
}

// Logging logs every request on completion and reports it to the recorder.
// The route label is the matched mux pattern, or "unmatched".
func Logging(opts LoggingOptions) func(http.Handler) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)

			// The mux records the matched pattern on the request it is
			// given, so keep a handle on that exact request.
			req := r.WithContext(r.Context())
			next.ServeHTTP(rw, req)

			duration := time.Since(start)
			route := req.Pattern
			if route == "" {
				route = "unmatched"
			}

			level := slog.LevelInfo
			switch {
			case rw.statusCode >= 500:
				level = slog.LevelError
			case rw.statusCode >= 400:
				level = slog.LevelWarn
			}

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"route", route,
				"status", rw.statusCode,
				"bytes", rw.bytes,
				"latency_ms", duration.Milliseconds(),
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			}
			if opts.IdentitySource != "" {
				if id := tls.ClientIdentity(r, opts.IdentitySource); id != "" {
					attrs = append(attrs, "client_cert", id)
				}
			}
			logger.Log(req.Context(), level, "Request completed", attrs...)

			if opts.Recorder != nil {
				opts.Recorder.RecordHTTPRequest(route, r.Method, rw.statusCode, duration)
			}
		})
	}
}
