package providers

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// trackedBody counts Close calls so tests can assert exactly-once release.
type trackedBody struct {
	io.Reader
	closer func() error
	closes atomic.Int32
}

func (b *trackedBody) Close() error {
	b.closes.Add(1)
	if b.closer != nil {
		return b.closer()
	}
	return nil
}

func (b *trackedBody) Closes() int {
	return int(b.closes.Load())
}

// fakeTransport serves canned responses and records every request.
type fakeTransport struct {
	mu       sync.Mutex
	handler  func(*http.Request) (*http.Response, error)
	requests []*http.Request
	bodies   []*trackedBody
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	resp, err := f.handler(req)
	if err != nil {
		return nil, err
	}
	if tb, ok := resp.Body.(*trackedBody); ok {
		f.mu.Lock()
		f.bodies = append(f.bodies, tb)
		f.mu.Unlock()
	}
	resp.Request = req
	return resp, nil
}

func (f *fakeTransport) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeTransport) LastRequest() *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

func (f *fakeTransport) CloseIdleConnections() {}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode:    status,
		Header:        http.Header{"Content-Type": []string{"application/json"}},
		Body:          &trackedBody{Reader: strings.NewReader(body)},
		ContentLength: int64(len(body)),
	}
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingSleeper returns immediately and remembers requested waits.
type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) Waits() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

func newTestConnection(t *testing.T, ep Endpoint, cfg ClientConfig, rt http.RoundTripper, opts ...Option) *Connection {
	t.Helper()
	opts = append([]Option{WithTransport(rt), WithSleeper((&recordingSleeper{}).Sleep)}, opts...)
	conn, err := NewConnection(ep, cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func testEndpoint(name string) Endpoint {
	return Endpoint{Name: name, BaseURL: "http://" + name + ".test/v1", APIKey: "sk-" + name}
}

func chatEnvelope(t *testing.T, model string, extra map[string]any) *Envelope {
	t.Helper()
	fields := map[string]any{
		"model":    model,
		"messages": []map[string]any{{"role": "user", "content": "hi"}},
	}
	for k, v := range extra {
		fields[k] = v
	}
	env, err := EnvelopeFrom(fields, "model", "messages")
	require.NoError(t, err)
	return env
}

func sizedBody(n int) string {
	return `{"model":"x","pad":"` + strings.Repeat("a", n) + `","n":` + strconv.Itoa(n) + `}`
}
