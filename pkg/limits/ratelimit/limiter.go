package ratelimit

import (
	"sync"
	"time"
)

// Limiter applies the configured limits to one client key.
type Limiter struct {
	bucket     *TokenBucket
	concurrent *ConcurrentLimiter
}

// NewLimiter creates a limiter. Only non-zero limits in cfg are enforced.
func NewLimiter(cfg Config) *Limiter {
	return newLimiter(cfg, time.Now)
}

func newLimiter(cfg Config, now func() time.Time) *Limiter {
	l := &Limiter{}
	if cfg.RequestsPerSecond > 0 {
		l.bucket = newTokenBucket(cfg.burst(), cfg.RequestsPerSecond, now)
	}
	if cfg.MaxConcurrent > 0 {
		l.concurrent = NewConcurrentLimiter(cfg.MaxConcurrent)
	}
	return l
}

func noop() {}

// Acquire admits one request. On success the returned release function
// must be called when the request finishes; it is safe to call more than
// once. A rejected request consumes nothing.
//
// The concurrency slot is taken first so a request turned away for
// concurrency does not spend a rate token.
func (l *Limiter) Acquire() (release func(), d Decision) {
	release = noop
	if l.concurrent != nil {
		if !l.concurrent.Acquire() {
			return noop, Decision{
				Reason:     ReasonConcurrency,
				Limit:      l.concurrent.Limit(),
				Remaining:  0,
				RetryAfter: time.Second,
			}
		}
		var once sync.Once
		release = func() { once.Do(l.concurrent.Release) }
	}

	if l.bucket != nil && !l.bucket.Take(1) {
		release()
		return noop, Decision{
			Reason:     ReasonRate,
			Limit:      l.bucket.Capacity(),
			Remaining:  l.bucket.Remaining(),
			RetryAfter: l.bucket.TimeUntilAvailable(1),
		}
	}

	d = Decision{Allowed: true, Limit: -1, Remaining: -1}
	if l.bucket != nil {
		d.Limit = l.bucket.Capacity()
		d.Remaining = l.bucket.Remaining()
	}
	return release, d
}

// InFlight returns the number of admitted requests not yet released.
func (l *Limiter) InFlight() int64 {
	if l.concurrent == nil {
		return 0
	}
	return l.concurrent.Current()
}
