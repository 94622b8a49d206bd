package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics tracks requests served by the gateway's HTTP surface.
//
// Metrics:
//   - nexus_http_requests_total: requests by route, method and status code
//   - nexus_http_request_duration_seconds: request duration by route
//   - nexus_chat_completions_total: chat completions by provider, model,
//     stream flag and outcome
//   - nexus_rate_limited_total: requests rejected by admission control
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	chatTotal       *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
}

// NewRequestMetrics creates and registers request metrics with the provided registry.
func NewRequestMetrics(namespace string, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests served",
			},
			[]string{"route", "method", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   requestDurationBuckets,
			},
			[]string{"route"},
		),

		chatTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_completions_total",
				Help:      "Total number of chat completions by outcome",
			},
			[]string{"provider", "model", "stream", "outcome"},
		),

		rateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Total number of requests rejected by per-client rate limits",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.chatTotal,
		rm.rateLimited,
	)

	return rm
}

// RecordHTTP records one served HTTP request.
func (rm *RequestMetrics) RecordHTTP(route, method string, status int, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	rm.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordChat records one chat completion outcome.
func (rm *RequestMetrics) RecordChat(provider, model string, stream bool, outcome string) {
	rm.chatTotal.WithLabelValues(provider, model, strconv.FormatBool(stream), outcome).Inc()
}

// RecordRateLimited records one rejected request.
func (rm *RequestMetrics) RecordRateLimited(reason string) {
	rm.rateLimited.WithLabelValues(reason).Inc()
}
