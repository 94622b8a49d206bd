package gateway

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Registry holds the live Gateway and swaps it wholesale on reload.
//
// A replaced gateway keeps serving requests that already resolved a provider
// through it; its connections are closed after the grace period.
type Registry struct {
	current atomic.Pointer[Gateway]
	grace   time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	retired map[*Gateway]*time.Timer
	closed  bool
}

// NewRegistry creates a registry serving g.
func NewRegistry(g *Gateway, grace time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		grace:   grace,
		logger:  logger.With("component", "gateway.registry"),
		retired: make(map[*Gateway]*time.Timer),
	}
	r.current.Store(g)
	return r
}

// Current returns the live gateway.
func (r *Registry) Current() *Gateway {
	return r.current.Load()
}

// Swap installs next and schedules the previous gateway for closing.
func (r *Registry) Swap(next *Gateway) error {
	if next == nil {
		return errors.New("cannot install a nil gateway")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		_ = next.CloseAll()
		return errors.New("registry is closed")
	}

	old := r.current.Swap(next)
	r.logger.Info("gateway swapped",
		"providers", len(next.providers),
		"grace_period", r.grace,
	)
	if old == nil || old == next {
		return nil
	}
	r.retire(old)
	return nil
}

// retire closes old after the grace period. Caller holds r.mu.
func (r *Registry) retire(old *Gateway) {
	if r.grace <= 0 {
		r.closeRetired(old)
		return
	}
	r.retired[old] = time.AfterFunc(r.grace, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, pending := r.retired[old]; !pending {
			return
		}
		delete(r.retired, old)
		r.closeRetired(old)
	})
}

func (r *Registry) closeRetired(old *Gateway) {
	if err := old.CloseAll(); err != nil {
		r.logger.Error("failed to close retired gateway", "error", err)
		return
	}
	r.logger.Debug("retired gateway closed")
}

// Pending returns the number of retired gateways not yet closed.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.retired)
}

// Close closes the live gateway and any retired ones immediately.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	for old, timer := range r.retired {
		timer.Stop()
		errs = append(errs, old.CloseAll())
	}
	clear(r.retired)

	if g := r.current.Load(); g != nil {
		errs = append(errs, g.CloseAll())
	}
	return errors.Join(errs...)
}
