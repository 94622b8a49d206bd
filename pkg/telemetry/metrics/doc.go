// Package metrics exposes the gateway's Prometheus metrics.
//
// Collector implements providers.Recorder, so one instance is shared by
// every provider connection and by the HTTP layer:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	gw, err := gateway.New(endpoints, clientCfg, patterns, gateway.WithRecorder(collector))
//	mux.Handle("/metrics", collector.Handler())
//
// Client-supplied model names are bounded by a cardinality limiter; label
// sets beyond the limit are folded into model="other".
package metrics
