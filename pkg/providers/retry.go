package providers

import "time"

// Backoff is the retry schedule for discovery. The first attempt runs
// immediately; attempt n>0 waits min(Base*2^n, MaxDelay).
//
//	b := providers.Backoff{MaxAttempts: 3, Base: time.Second, MaxDelay: 10 * time.Second}
//	for {
//	    wait, ok := b.Next()
//	    if !ok {
//	        break // exhausted
//	    }
//	    sleep(wait)
//	    if try() == nil {
//	        break
//	    }
//	}
type Backoff struct {
	// MaxAttempts is the total number of attempts allowed
	MaxAttempts int

	// Base is the unit delay (one second by default)
	Base time.Duration

	// MaxDelay caps any single wait
	MaxDelay time.Duration

	attempt int
}

// Next reports whether another attempt is allowed and how long to wait
// before making it.
func (b *Backoff) Next() (time.Duration, bool) {
	if b.attempt >= b.MaxAttempts {
		return 0, false
	}
	n := b.attempt
	b.attempt++
	if n == 0 {
		return 0, true
	}
	return b.delay(n), true
}

// Attempt returns the number of attempts handed out so far.
func (b *Backoff) Attempt() int {
	return b.attempt
}

func (b *Backoff) delay(n int) time.Duration {
	base := b.Base
	if base <= 0 {
		base = time.Second
	}
	// Shift guard: 2^30 seconds is far beyond any sensible cap.
	if n > 30 {
		n = 30
	}
	d := base << uint(n)
	if b.MaxDelay > 0 && (d > b.MaxDelay || d <= 0) {
		return b.MaxDelay
	}
	return d
}
