package ratelimit

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// Manager holds one Limiter per client key in a size-bounded LRU. A key
// evicted while it has requests in flight keeps its slots: the release
// functions close over the evicted limiter.
type Manager struct {
	cfg      Config
	limiters *lru.Cache
	now      func() time.Time
	mu       sync.Mutex
}

// NewManager creates a manager for cfg.
func NewManager(cfg Config) (*Manager, error) {
	return newManager(cfg, time.Now)
}

func newManager(cfg Config, now func() time.Time) (*Manager, error) {
	size := cfg.MaxClients
	if size <= 0 {
		size = DefaultMaxClients
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Manager{cfg: cfg, limiters: cache, now: now}, nil
}

// Config returns the limits applied to every key.
func (m *Manager) Config() Config {
	return m.cfg
}

// Acquire admits one request for key. See Limiter.Acquire.
func (m *Manager) Acquire(key string) (release func(), d Decision) {
	return m.limiter(key).Acquire()
}

// Len returns the number of tracked keys.
func (m *Manager) Len() int {
	return m.limiters.Len()
}

func (m *Manager) limiter(key string) *Limiter {
	if v, ok := m.limiters.Get(key); ok {
		return v.(*Limiter)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.limiters.Get(key); ok {
		return v.(*Limiter)
	}
	l := newLimiter(m.cfg, m.now)
	m.limiters.Add(key, l)
	return l
}
