package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ProviderMetrics tracks upstream provider health and performance.
//
// Metrics:
//   - nexus_provider_requests_total: upstream calls by operation and status
//   - nexus_provider_errors_total: failed calls by error code
//   - nexus_provider_latency_seconds: time to response headers
//   - nexus_provider_health: last probe outcome (1=healthy, 0=unhealthy)
//   - nexus_provider_models: models returned by the last discovery
//   - nexus_provider_discovery_failures_total: discoveries that exhausted retries
//   - nexus_provider_active_streams: streams currently open
type ProviderMetrics struct {
	requests          *prometheus.CounterVec
	errors            *prometheus.CounterVec
	latency           *prometheus.HistogramVec
	health            *prometheus.GaugeVec
	models            *prometheus.GaugeVec
	discoveryFailures *prometheus.CounterVec
	activeStreams     *prometheus.GaugeVec
}

// NewProviderMetrics creates and registers provider metrics with the provided registry.
func NewProviderMetrics(namespace string, registry *prometheus.Registry) *ProviderMetrics {
	pm := &ProviderMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_requests_total",
				Help:      "Total number of upstream calls by operation and status",
			},
			[]string{"provider", "operation", "status"},
		),

		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_errors_total",
				Help:      "Total number of provider errors by code",
			},
			[]string{"provider", "code"},
		),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_latency_seconds",
				Help:      "Upstream latency until response headers in seconds",
				Buckets:   requestDurationBuckets,
			},
			[]string{"provider", "operation"},
		),

		health: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "provider_health",
				Help:      "Provider health status (1=healthy, 0=unhealthy)",
			},
			[]string{"provider"},
		),

		models: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "provider_models",
				Help:      "Number of models returned by the last discovery",
			},
			[]string{"provider"},
		),

		discoveryFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_discovery_failures_total",
				Help:      "Total number of discoveries that exhausted their retries",
			},
			[]string{"provider"},
		),

		activeStreams: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "provider_active_streams",
				Help:      "Number of streamed completions currently open",
			},
			[]string{"provider"},
		),
	}

	registry.MustRegister(
		pm.requests,
		pm.errors,
		pm.latency,
		pm.health,
		pm.models,
		pm.discoveryFailures,
		pm.activeStreams,
	)

	return pm
}

// RecordRequest counts one upstream call.
func (pm *ProviderMetrics) RecordRequest(provider, operation, status string) {
	pm.requests.WithLabelValues(provider, operation, status).Inc()
}

// RecordError counts one failed call.
func (pm *ProviderMetrics) RecordError(provider, code string) {
	pm.errors.WithLabelValues(provider, code).Inc()
}

// RecordLatency observes one upstream latency in seconds.
func (pm *ProviderMetrics) RecordLatency(provider, operation string, seconds float64) {
	pm.latency.WithLabelValues(provider, operation).Observe(seconds)
}

// UpdateHealth updates the health status of a provider.
func (pm *ProviderMetrics) UpdateHealth(provider string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	pm.health.WithLabelValues(provider).Set(value)
}

// RecordDiscovery sets the model gauge. A failed discovery also counts a
// failure; the gauge drops to 0 since an empty list is served.
func (pm *ProviderMetrics) RecordDiscovery(provider string, models int, failed bool) {
	pm.models.WithLabelValues(provider).Set(float64(models))
	if failed {
		pm.discoveryFailures.WithLabelValues(provider).Inc()
	}
}

// StreamOpened increments the active stream gauge.
func (pm *ProviderMetrics) StreamOpened(provider string) {
	pm.activeStreams.WithLabelValues(provider).Inc()
}

// StreamClosed decrements the active stream gauge.
func (pm *ProviderMetrics) StreamClosed(provider string) {
	pm.activeStreams.WithLabelValues(provider).Dec()
}
