// Package health serves the liveness, readiness and version probes used by
// orchestrators. Readiness runs cheap local checks registered by the
// server, such as "a gateway is installed"; upstream reachability is
// reported separately by the gateway's /health endpoint.
package health
