// Package server runs the gateway's HTTP server.
//
// It ties the configuration, the gateway registry, authentication,
// telemetry and the proxy handlers together and owns the process-wide
// background tasks: configuration file watching, scheduled model-catalog
// refresh and TLS certificate reload.
//
// # Routes
//
//	GET  /                     service information
//	GET  /health               provider health fan-out
//	GET  /v1/models            aggregated model catalog (?refresh=true)
//	POST /v1/chat/completions  chat completion, buffered or streamed (token,
//	                           per-client rate limit)
//	POST /v1/reload            reload configuration (token)
//	GET  /livez /readyz        orchestrator probes
//	GET  /version              build information
//	GET  /metrics              Prometheus metrics, when enabled
//
// # Usage
//
//	cfg, err := config.Load(ctx, path, nil)
//	if err != nil {
//	    return err
//	}
//	srv, err := server.New(cfg, server.Options{ConfigPath: path})
//	if err != nil {
//	    return err
//	}
//	return srv.Start(ctx)
//
// Start blocks until ctx is cancelled or Stop is called, then shuts down
// gracefully: the listener drains within server.shutdown_timeout and every
// provider connection pool is closed.
package server
