package providers

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// peakTransport holds every round trip briefly and records the largest number
// of calls it saw at once.
type peakTransport struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	hold     time.Duration
}

func (p *peakTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	n := p.inFlight.Add(1)
	for {
		cur := p.peak.Load()
		if n <= cur || p.peak.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(p.hold)
	p.inFlight.Add(-1)

	resp := jsonResponse(http.StatusOK, `{"choices":[]}`)
	resp.Request = req
	return resp, nil
}

func (p *peakTransport) CloseIdleConnections() {}

// sseOrJSON answers streamed requests with an event stream and everything
// else with JSON.
func sseOrJSON(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept") == "text/event-stream" {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
			Body:       &trackedBody{Reader: strings.NewReader("data: {}\n\ndata: [DONE]\n\n")},
		}, nil
	}
	return jsonResponse(http.StatusOK, `{"data":[],"choices":[]}`), nil
}

func TestMaxConnectionsCapsConcurrentCalls(t *testing.T) {
	transport := &peakTransport{hold: 20 * time.Millisecond}
	cfg := DefaultClientConfig()
	cfg.MaxConnections = 1
	conn := newTestConnection(t, testEndpoint("acme"), cfg, transport)

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := conn.ChatCompletion(context.Background(), chatEnvelope(t, "acme/m", nil))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), transport.peak.Load())
}

func TestOpenStreamHoldsConnectionSlot(t *testing.T) {
	transport := &fakeTransport{handler: sseOrJSON}
	cfg := DefaultClientConfig()
	cfg.MaxConnections = 1
	cfg.NonStreamTimeout = 50 * time.Millisecond
	conn := newTestConnection(t, testEndpoint("acme"), cfg, transport)
	ctx := context.Background()

	res, err := conn.ChatCompletion(ctx, chatEnvelope(t, "acme/m", map[string]any{"stream": true}))
	require.NoError(t, err)
	require.True(t, res.IsStream())

	_, err = conn.ChatCompletion(ctx, chatEnvelope(t, "acme/m", nil))
	require.Error(t, err)
	assert.True(t, IsTimeout(err), "queued call should time out while the stream is open: %v", err)
	assert.Equal(t, 1, transport.Calls())

	require.NoError(t, res.Stream.Close())

	_, err = conn.ChatCompletion(ctx, chatEnvelope(t, "acme/m", nil))
	require.NoError(t, err)
	assert.Equal(t, 2, transport.Calls())
}

func TestConnectionLogsProviderOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	transport := &fakeTransport{handler: sseOrJSON}
	conn := newTestConnection(t, testEndpoint("acme"), DefaultClientConfig(), transport, WithLogger(logger))
	ctx := context.Background()

	require.True(t, conn.HealthCheck(ctx))
	res, err := conn.ChatCompletion(ctx, chatEnvelope(t, "acme/m", map[string]any{"stream": true}))
	require.NoError(t, err)
	require.NoError(t, res.Stream.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	for _, line := range lines {
		assert.Equal(t, 1, strings.Count(line, `"provider":`), line)
	}
	assert.Contains(t, buf.String(), "health check completed")
	assert.Contains(t, buf.String(), "stream released")
}
