package metrics

import (
	"fmt"
	"sync"
	"time"

	"meridian-hq/nexus/pkg/config"
	"meridian-hq/nexus/pkg/providers"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// requestDurationBuckets covers buffered completions and long streams.
var requestDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 300, 600}

// maxModelLabels bounds the number of distinct model label values. Model
// names come from clients, so they are not trusted to be few.
const maxModelLabels = 1000

// Collector owns the gateway's Prometheus registry. It implements
// providers.Recorder, so it can be handed straight to every provider
// connection.
//
// When metrics are disabled every method is a no-op, but the registry still
// exists so a handler can be mounted unconditionally.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	requestMetrics  *RequestMetrics
	providerMetrics *ProviderMetrics

	cardinalityLimiter *CardinalityLimiter
}

var _ providers.Recorder = (*Collector)(nil)

// NewCollector creates a new metrics collector. If registry is nil, a fresh
// registry with the Go runtime and process collectors is used.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if cfg == nil {
		cfg = &config.MetricsConfig{}
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = config.DefaultMetricsNamespace
	}

	return &Collector{
		config:             cfg,
		registry:           registry,
		requestMetrics:     NewRequestMetrics(namespace, registry),
		providerMetrics:    NewProviderMetrics(namespace, registry),
		cardinalityLimiter: NewCardinalityLimiter(maxModelLabels),
	}
}

// Enabled reports whether measurements are recorded.
func (c *Collector) Enabled() bool {
	return c.config.Enabled
}

// RecordHTTPRequest records one served HTTP request.
func (c *Collector) RecordHTTPRequest(route, method string, status int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.requestMetrics.RecordHTTP(route, method, status, duration)
}

// RecordChat records the outcome of one chat completion.
//
// Parameters:
//   - provider: routing prefix, or "" when the model did not resolve
//   - model: full "<provider>/<model>" name from the request
//   - outcome: "success" or the error code
func (c *Collector) RecordChat(provider, model string, stream bool, outcome string) {
	if !c.config.Enabled {
		return
	}
	if !c.cardinalityLimiter.Allow(fmt.Sprintf("%s:%s", provider, model)) {
		model = "other"
	}
	c.requestMetrics.RecordChat(provider, model, stream, outcome)
}

// RecordRateLimited counts a request rejected by the per-client limiter.
func (c *Collector) RecordRateLimited(reason string) {
	if !c.config.Enabled {
		return
	}
	c.requestMetrics.RecordRateLimited(reason)
}

// RecordRequest implements providers.Recorder.
func (c *Collector) RecordRequest(provider, op, status string) {
	if !c.config.Enabled {
		return
	}
	c.providerMetrics.RecordRequest(provider, op, status)
}

// RecordError implements providers.Recorder.
func (c *Collector) RecordError(provider, code string) {
	if !c.config.Enabled {
		return
	}
	c.providerMetrics.RecordError(provider, code)
}

// RecordLatency implements providers.Recorder.
func (c *Collector) RecordLatency(provider, op string, d time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.providerMetrics.RecordLatency(provider, op, d.Seconds())
}

// RecordDiscovery implements providers.Recorder.
func (c *Collector) RecordDiscovery(provider string, models int, failed bool) {
	if !c.config.Enabled {
		return
	}
	c.providerMetrics.RecordDiscovery(provider, models, failed)
}

// UpdateHealth implements providers.Recorder.
func (c *Collector) UpdateHealth(provider string, healthy bool) {
	if !c.config.Enabled {
		return
	}
	c.providerMetrics.UpdateHealth(provider, healthy)
}

// StreamOpened implements providers.Recorder.
func (c *Collector) StreamOpened(provider string) {
	if !c.config.Enabled {
		return
	}
	c.providerMetrics.StreamOpened(provider)
}

// StreamClosed implements providers.Recorder.
func (c *Collector) StreamClosed(provider string) {
	if !c.config.Enabled {
		return
	}
	c.providerMetrics.StreamClosed(provider)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label combinations per metric.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label set is allowed. Returns true if the label set
// already exists or if we haven't reached the cardinality limit yet.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
