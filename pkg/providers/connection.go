package providers

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// userAgent identifies the gateway to upstream providers.
const userAgent = "nexus-gateway"

// Connection owns one pooled HTTP client bound to a single Endpoint.
// It is safe for concurrent use.
type Connection struct {
	// endpoint describes the upstream backend
	endpoint Endpoint

	// cfg contains the connection tunables
	cfg ClientConfig

	// client carries every upstream call. It has no overall Timeout; each
	// call is bounded by its own context deadline so streams can outlive
	// the buffered-call budget.
	client *http.Client

	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	// slots caps in-flight upstream calls at MaxConnections. The
	// transport's per-host limit only counts TCP connections, which HTTP/2
	// multiplexes.
	slots *semaphore.Weighted

	// closed rejects new calls after Close
	closed atomic.Bool

	// discovery dedupes concurrent refetches
	discovery singleflight.Group

	// mu protects the model cache
	mu              sync.Mutex
	models          []ModelInfo
	cached          bool
	lastFetch       time.Time
	lastFetchFailed bool
}

// Option configures a Connection.
type Option func(*Connection)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Connection) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Connection) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithClock overrides the time source used for the failure cooldown.
func WithClock(now func() time.Time) Option {
	return func(c *Connection) {
		if now != nil {
			c.now = now
		}
	}
}

// WithSleeper overrides how discovery waits between attempts.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Connection) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithTransport replaces the pooled transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Connection) {
		if rt != nil {
			c.client.Transport = rt
		}
	}
}

// WrapTransport decorates the transport in place, for example to add
// tracing. It applies after WithTransport when both are given in order.
func WrapTransport(wrap func(http.RoundTripper) http.RoundTripper) Option {
	return func(c *Connection) {
		if wrap != nil {
			c.client.Transport = wrap(c.client.Transport)
		}
	}
}

// NewConnection creates a connection with its own pooled transport.
func NewConnection(endpoint Endpoint, cfg ClientConfig, opts ...Option) (*Connection, error) {
	ep, err := NewEndpoint(endpoint.Name, endpoint.BaseURL, endpoint.APIKey, endpoint.Models)
	if err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	c := &Connection{
		endpoint: ep,
		cfg:      cfg,
		client:   &http.Client{Transport: newTransport(cfg)},
		slots:    semaphore.NewWeighted(int64(cfg.MaxConnections)),
		logger:   slog.Default(),
		recorder: NopRecorder{},
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("provider", ep.Name)

	c.logger.Debug("provider connection created",
		"base_url", ep.BaseURL,
		"chat_url", ep.ChatURL(),
		"declared_models", len(ep.Models),
		"max_connections", cfg.MaxConnections,
	)
	return c, nil
}

func newTransport(cfg ClientConfig) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxConnsPerHost:       cfg.MaxConnections,
		MaxIdleConns:          cfg.MaxKeepaliveConnections,
		MaxIdleConnsPerHost:   cfg.MaxKeepaliveConnections,
		IdleConnTimeout:       cfg.KeepaliveExpiry,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		ExpectContinueTimeout: time.Second,
		ForceAttemptHTTP2:     true,
	}
}

// Name returns the provider name.
func (c *Connection) Name() string {
	return c.endpoint.Name
}

// Endpoint returns the endpoint this connection is bound to.
func (c *Connection) Endpoint() Endpoint {
	return c.endpoint
}

// Close stops accepting new calls and releases idle pooled connections.
// In-flight calls complete or fail on their own. Close is idempotent.
func (c *Connection) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.client.CloseIdleConnections()
	c.logger.Debug("provider connection closed")
	return nil
}

func (c *Connection) isClosed() bool {
	return c.closed.Load()
}

// acquire waits for an upstream call slot until ctx ends. The returned
// release is safe to call more than once.
func (c *Connection) acquire(ctx context.Context) (release func(), err error) {
	if err := c.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(func() { c.slots.Release(1) }) }, nil
}

func (c *Connection) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if c.endpoint.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.endpoint.APIKey)
	}
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// drainAndClose discards a bounded amount of the body so the connection can
// be reused, then closes it.
func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4<<10))
	_ = body.Close()
}

// readLimited reads at most limit bytes, failing with ErrResponseTooLarge if
// the declared length or the actual body exceeds it.
func readLimited(body io.Reader, declared, limit int64) ([]byte, error) {
	if declared > limit {
		return nil, ErrResponseTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrResponseTooLarge
	}
	return data, nil
}

// snippet returns a short prefix of an error body for messages.
func snippet(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, 512))
	return string(data)
}
