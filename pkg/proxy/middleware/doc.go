/*
Package middleware provides the HTTP middleware wrapped around every
gateway route.

Order, outermost first:

	handler := middleware.Chain(mux,
		tracer.Middleware,
		middleware.RequestID,
		middleware.Logging(middleware.LoggingOptions{Logger: logger, Recorder: collector}),
		middleware.Recovery(logger),
	)

RequestID stores the ID with logging.WithRequestID so every log line
written through a context-aware logger carries "request_id". Logging reads
the matched mux pattern after the handler returns, which keeps the metrics
route label bounded. Recovery writes the standard error body with type
internal_error.
*/
package middleware
