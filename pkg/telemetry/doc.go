// Package telemetry groups the gateway's observability packages.
//
//   - logging: slog construction with request fields and credential redaction
//   - metrics: Prometheus collector, also the providers.Recorder
//   - tracing: OpenTelemetry server and upstream spans
//   - health: liveness, readiness and version probes
package telemetry
