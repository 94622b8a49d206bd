package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"meridian-hq/nexus/pkg/providers"
	"meridian-hq/nexus/pkg/proxy"
)

// errUnexpected hides panic details from clients.
var errUnexpected = errors.New("unexpected server error")

// Recovery turns a handler panic into a 500 internal_error response and
// logs the stack. http.ErrAbortHandler is re-panicked so net/http can abort
// the connection quietly.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				logger.ErrorContext(r.Context(), "Panic in handler",
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				_ = proxy.WriteError(w, providers.NewInternalError(errUnexpected))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
