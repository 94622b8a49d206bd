package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// ============================================================================
// Token Bucket Tests
// ============================================================================

func TestTokenBucket_Basic(t *testing.T) {
	clock := newFakeClock()
	bucket := newTokenBucket(10, 10, clock.Now)

	if !bucket.Take(5) {
		t.Fatal("expected to take 5 tokens from full bucket")
	}
	if got := bucket.Remaining(); got != 5 {
		t.Errorf("Remaining() = %d, want 5", got)
	}
	if !bucket.Take(5) {
		t.Fatal("expected to take remaining 5 tokens")
	}
	if bucket.Take(1) {
		t.Error("expected bucket to be empty")
	}
}

func TestTokenBucket_Refill(t *testing.T) {
	clock := newFakeClock()
	bucket := newTokenBucket(10, 10, clock.Now)
	bucket.Take(10)

	clock.Advance(50 * time.Millisecond)
	if bucket.Take(1) {
		t.Error("half a token should not admit a request")
	}

	clock.Advance(50 * time.Millisecond)
	if !bucket.Take(1) {
		t.Error("expected one token after 100ms at 10/s")
	}
}

func TestTokenBucket_CapacityLimit(t *testing.T) {
	clock := newFakeClock()
	bucket := newTokenBucket(10, 10, clock.Now)

	clock.Advance(time.Hour)
	if got := bucket.Remaining(); got != 10 {
		t.Errorf("Remaining() = %d, want capacity 10", got)
	}
}

func TestTokenBucket_TimeUntilAvailable(t *testing.T) {
	clock := newFakeClock()
	bucket := newTokenBucket(10, 10, clock.Now)

	if got := bucket.TimeUntilAvailable(1); got != 0 {
		t.Errorf("full bucket TimeUntilAvailable = %v, want 0", got)
	}

	bucket.Take(10)
	if got := bucket.TimeUntilAvailable(5); got != 500*time.Millisecond {
		t.Errorf("TimeUntilAvailable(5) = %v, want 500ms", got)
	}
}

func TestTokenBucket_Reset(t *testing.T) {
	clock := newFakeClock()
	bucket := newTokenBucket(3, 1, clock.Now)
	bucket.Take(3)
	bucket.Reset()
	if got := bucket.Remaining(); got != 3 {
		t.Errorf("Remaining() after Reset = %d, want 3", got)
	}
}

// ============================================================================
// Concurrent Limiter Tests
// ============================================================================

func TestConcurrentLimiter_Basic(t *testing.T) {
	cl := NewConcurrentLimiter(2)

	if !cl.Acquire() || !cl.Acquire() {
		t.Fatal("expected two slots")
	}
	if cl.Acquire() {
		t.Error("third acquire should fail")
	}
	if got := cl.Remaining(); got != 0 {
		t.Errorf("Remaining() = %d, want 0", got)
	}

	cl.Release()
	if !cl.Acquire() {
		t.Error("slot should be free after Release")
	}
	if got := cl.Current(); got != 2 {
		t.Errorf("Current() = %d, want 2", got)
	}
}

func TestConcurrentLimiter_Parallel(t *testing.T) {
	cl := NewConcurrentLimiter(10)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cl.Acquire() {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 10 {
		t.Errorf("admitted %d, want exactly 10", admitted)
	}
	if cl.Current() != 10 {
		t.Errorf("Current() = %d, want 10", cl.Current())
	}
}

// ============================================================================
// Limiter Tests
// ============================================================================

func TestLimiter_Rate(t *testing.T) {
	clock := newFakeClock()
	l := newLimiter(Config{RequestsPerSecond: 1, Burst: 2}, clock.Now)

	for i := 0; i < 2; i++ {
		release, d := l.Acquire()
		if !d.Allowed {
			t.Fatalf("request %d rejected: %+v", i, d)
		}
		release()
	}

	_, d := l.Acquire()
	if d.Allowed || d.Reason != ReasonRate {
		t.Fatalf("expected rate rejection, got %+v", d)
	}
	if d.Limit != 2 || d.RetryAfter != time.Second {
		t.Errorf("decision = %+v, want limit 2 retry 1s", d)
	}

	clock.Advance(time.Second)
	if _, d := l.Acquire(); !d.Allowed {
		t.Errorf("expected admission after refill, got %+v", d)
	}
}

func TestLimiter_Concurrency(t *testing.T) {
	l := NewLimiter(Config{MaxConcurrent: 1})

	release, d := l.Acquire()
	if !d.Allowed {
		t.Fatalf("first request rejected: %+v", d)
	}
	if l.InFlight() != 1 {
		t.Errorf("InFlight() = %d, want 1", l.InFlight())
	}

	_, d = l.Acquire()
	if d.Allowed || d.Reason != ReasonConcurrency {
		t.Fatalf("expected concurrency rejection, got %+v", d)
	}

	release()
	release()
	if l.InFlight() != 0 {
		t.Errorf("InFlight() = %d after double release, want 0", l.InFlight())
	}
	if _, d := l.Acquire(); !d.Allowed {
		t.Errorf("expected admission after release, got %+v", d)
	}
}

func TestLimiter_RateRejectionFreesSlot(t *testing.T) {
	clock := newFakeClock()
	l := newLimiter(Config{RequestsPerSecond: 1, Burst: 1, MaxConcurrent: 5}, clock.Now)

	release, _ := l.Acquire()
	release()

	_, d := l.Acquire()
	if d.Allowed {
		t.Fatal("expected rate rejection")
	}
	if l.InFlight() != 0 {
		t.Errorf("rate rejection leaked a concurrency slot: InFlight() = %d", l.InFlight())
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	l := NewLimiter(Config{})
	for i := 0; i < 1000; i++ {
		release, d := l.Acquire()
		if !d.Allowed {
			t.Fatalf("unlimited limiter rejected request %d", i)
		}
		release()
	}
}

func TestConfig_Burst(t *testing.T) {
	tests := []struct {
		cfg  Config
		want int64
	}{
		{Config{RequestsPerSecond: 5}, 10},
		{Config{RequestsPerSecond: 0.2}, 1},
		{Config{RequestsPerSecond: 5, Burst: 3}, 3},
	}
	for _, tt := range tests {
		if got := tt.cfg.burst(); got != tt.want {
			t.Errorf("%+v.burst() = %d, want %d", tt.cfg, got, tt.want)
		}
	}

	if (Config{}).Enabled() {
		t.Error("zero config should be disabled")
	}
	if !(Config{MaxConcurrent: 1}).Enabled() {
		t.Error("concurrency-only config should be enabled")
	}
}

// ============================================================================
// Manager Tests
// ============================================================================

func TestManager_PerKey(t *testing.T) {
	clock := newFakeClock()
	m, err := newManager(Config{RequestsPerSecond: 1, Burst: 1}, clock.Now)
	if err != nil {
		t.Fatalf("newManager: %v", err)
	}

	if _, d := m.Acquire("alice"); !d.Allowed {
		t.Fatal("alice first request rejected")
	}
	if _, d := m.Acquire("alice"); d.Allowed {
		t.Error("alice second request should be limited")
	}
	if _, d := m.Acquire("bob"); !d.Allowed {
		t.Error("bob must not share alice's bucket")
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
}

func TestManager_Eviction(t *testing.T) {
	m, err := NewManager(Config{MaxConcurrent: 1, MaxClients: 2})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	release, d := m.Acquire("k0")
	if !d.Allowed {
		t.Fatal("k0 rejected")
	}
	for i := 1; i <= 3; i++ {
		m.Acquire(fmt.Sprintf("k%d", i))
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}

	// Releasing after eviction must not panic or affect new limiters.
	release()
	if _, d := m.Acquire("k0"); !d.Allowed {
		t.Error("re-created k0 limiter should admit")
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	m, err := NewManager(Config{MaxConcurrent: 1000})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			release, d := m.Acquire(fmt.Sprintf("client-%d", i%5))
			if d.Allowed {
				release()
			}
		}(i)
	}
	wg.Wait()

	if m.Len() != 5 {
		t.Errorf("Len() = %d, want 5", m.Len())
	}
}
