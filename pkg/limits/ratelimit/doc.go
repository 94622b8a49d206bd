// Package ratelimit provides per-client admission control for the chat
// completion endpoint.
//
// Each client key (the authenticated token description, or the remote IP
// when the gateway is open) gets its own Limiter combining:
//
//   - Token Bucket: a steady request rate with a burst allowance
//   - Concurrent Limiter: a cap on simultaneous in-flight requests
//
// Limiters live in a Manager, a size-bounded LRU so a flood of distinct
// keys cannot grow memory without bound:
//
//	m, err := ratelimit.NewManager(ratelimit.Config{
//	    RequestsPerSecond: 5,
//	    Burst:             10,
//	    MaxConcurrent:     4,
//	})
//	release, d := m.Acquire("ci-runner")
//	if !d.Allowed {
//	    // reject with 429, Retry-After: d.RetryAfter
//	}
//	defer release()
//
// # Thread Safety
//
// Every type in this package is safe for concurrent use.
package ratelimit
