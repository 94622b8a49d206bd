package providers

import "time"

// Recorder receives per-provider measurements. The telemetry/metrics package
// provides the Prometheus implementation.
type Recorder interface {
	// RecordRequest counts an upstream call. op is "chat", "discovery" or
	// "health"; status is "success" or "error".
	RecordRequest(provider, op, status string)

	// RecordError counts a failed call by error code.
	RecordError(provider, code string)

	// RecordLatency observes the time until response headers.
	RecordLatency(provider, op string, d time.Duration)

	// RecordDiscovery observes the number of models a discovery returned.
	RecordDiscovery(provider string, models int, failed bool)

	// UpdateHealth sets the latest health probe outcome.
	UpdateHealth(provider string, healthy bool)

	// StreamOpened and StreamClosed track in-flight streams.
	StreamOpened(provider string)
	StreamClosed(provider string)
}

// NopRecorder discards all measurements.
type NopRecorder struct{}

func (NopRecorder) RecordRequest(string, string, string)        {}
func (NopRecorder) RecordError(string, string)                  {}
func (NopRecorder) RecordLatency(string, string, time.Duration) {}
func (NopRecorder) RecordDiscovery(string, int, bool)           {}
func (NopRecorder) UpdateHealth(string, bool)                   {}
func (NopRecorder) StreamOpened(string)                         {}
func (NopRecorder) StreamClosed(string)                         {}
