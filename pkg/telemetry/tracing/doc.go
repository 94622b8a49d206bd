// Package tracing provides OpenTelemetry tracing for the gateway.
//
// Incoming requests get a server span through Tracer.Middleware, which
// continues any W3C traceparent the client sent. Upstream provider calls
// get a client span through Tracer.Transport, which also forwards the
// trace context to the provider. When tracing is disabled, Noop still
// forwards incoming trace context without recording spans.
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	handler = tracer.Middleware(handler)
//	conn, _ := providers.NewConnection(ep, cc, providers.WrapTransport(tracer.Transport))
package tracing
