package ratelimit

import "time"

// Config describes the limits applied to each client key. Zero values
// disable the corresponding limit.
type Config struct {
	// RequestsPerSecond is the sustained request rate.
	RequestsPerSecond float64

	// Burst is the bucket capacity. Defaults to max(1, 2*RequestsPerSecond).
	Burst int

	// MaxConcurrent limits simultaneous in-flight requests.
	MaxConcurrent int

	// MaxClients bounds the number of tracked keys. Defaults to
	// DefaultMaxClients.
	MaxClients int
}

// DefaultMaxClients is the Manager capacity when Config.MaxClients is zero.
const DefaultMaxClients = 10000

// Rejection reasons. Stable values, used as metric labels.
const (
	ReasonRate        = "rate"
	ReasonConcurrency = "concurrency"
)

// Decision is the outcome of one admission check.
type Decision struct {
	// Allowed indicates if the request is permitted.
	Allowed bool

	// Reason is ReasonRate or ReasonConcurrency when rejected.
	Reason string

	// Limit is the configured limit that was hit.
	Limit int64

	// Remaining is the number of requests or slots left.
	Remaining int64

	// RetryAfter suggests how long to wait before retrying.
	RetryAfter time.Duration
}

// Enabled reports whether any limit is configured.
func (c Config) Enabled() bool {
	return c.RequestsPerSecond > 0 || c.MaxConcurrent > 0
}

func (c Config) burst() int64 {
	if c.Burst > 0 {
		return int64(c.Burst)
	}
	b := int64(c.RequestsPerSecond * 2)
	if b < 1 {
		b = 1
	}
	return b
}
