package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mock "meridian-hq/nexus/internal/providers"
	"meridian-hq/nexus/pkg/config"
	"meridian-hq/nexus/pkg/telemetry/health"
	"meridian-hq/nexus/pkg/telemetry/logging"
)

const configTemplate = `
server:
  listen_address: "127.0.0.1:0"
  shutdown_timeout: 2s
providers:
%s
tokens:
  - description: ci
    token: %s
gateway:
  close_grace_period: 1ms
  discovery_attempts: 1
telemetry:
  metrics:
    enabled: true
`

func providerLines(upstreams map[string]*mock.MockServer, order ...string) string {
	var b strings.Builder
	for _, name := range order {
		fmt.Fprintf(&b, "  - name: %s\n    base_url: %s\n    api_key: sk-%s\n", name, upstreams[name].BaseURL(), name)
	}
	return b.String()
}

func writeConfigFile(t *testing.T, path, providers, token string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(configTemplate, providers, token)), 0o600))
}

func newTestServer(t *testing.T, path string) *Server {
	t.Helper()
	cfg, err := config.Load(context.Background(), path, nil)
	require.NoError(t, err)

	logger, err := logging.New(logging.Config{Writer: io.Discard})
	require.NoError(t, err)

	s, err := New(cfg, Options{
		ConfigPath: path,
		Logger:     logger,
		Version:    health.NewVersionInfo("1.0.0-test", "abc123", "now"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const chatBody = `{"model":"acme/gpt-4","messages":[{"role":"user","content":"hi"}]}`

func TestServer_Routes(t *testing.T) {
	acme := mock.StartMockServer(t, "gpt-4")
	path := filepath.Join(t.TempDir(), "nexus.yaml")
	writeConfigFile(t, path, providerLines(map[string]*mock.MockServer{"acme": acme}, "acme"), "tok-1")
	h := newTestServer(t, path).Handler()

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		status int
		want   string
	}{
		{"root", http.MethodGet, "/", "", "", http.StatusOK, `"providers_count":1`},
		{"health", http.MethodGet, "/health", "", "", http.StatusOK, `"status":"healthy"`},
		{"models", http.MethodGet, "/v1/models", "", "", http.StatusOK, `"id":"acme/gpt-4"`},
		{"chat without token", http.MethodPost, "/v1/chat/completions", "", chatBody, http.StatusUnauthorized, `"authentication_error"`},
		{"chat with bad token", http.MethodPost, "/v1/chat/completions", "nope", chatBody, http.StatusUnauthorized, `"invalid_token"`},
		{"chat", http.MethodPost, "/v1/chat/completions", "tok-1", chatBody, http.StatusOK, `"model":"acme/gpt-4"`},
		{"chat wrong method", http.MethodGet, "/v1/chat/completions", "", "", http.StatusMethodNotAllowed, ""},
		{"reload without token", http.MethodPost, "/v1/reload", "", "", http.StatusUnauthorized, ""},
		{"unknown path", http.MethodGet, "/v2/nothing", "", "", http.StatusNotFound, ""},
		{"livez", http.MethodGet, "/livez", "", "", http.StatusOK, `"status":"ok"`},
		{"readyz", http.MethodGet, "/readyz", "", "", http.StatusOK, `"status":"ready"`},
		{"version", http.MethodGet, "/version", "", "", http.StatusOK, `"version":"1.0.0-test"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
			if tt.want != "" {
				assert.Contains(t, rec.Body.String(), tt.want)
			}
		})
	}
}

func TestServer_Metrics(t *testing.T) {
	acme := mock.StartMockServer(t, "gpt-4")
	path := filepath.Join(t.TempDir(), "nexus.yaml")
	writeConfigFile(t, path, providerLines(map[string]*mock.MockServer{"acme": acme}, "acme"), "tok-1")
	h := newTestServer(t, path).Handler()

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/chat/completions", "tok-1", chatBody).Code)

	rec := do(t, h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "nexus_http_requests_total")
	assert.Contains(t, body, `route="POST /v1/chat/completions"`)
	assert.Contains(t, body, "nexus_chat_completions_total")
}

func TestServer_Reload(t *testing.T) {
	upstreams := map[string]*mock.MockServer{
		"acme": mock.StartMockServer(t, "gpt-4"),
		"beta": mock.StartMockServer(t, "llama-3"),
	}
	path := filepath.Join(t.TempDir(), "nexus.yaml")
	writeConfigFile(t, path, providerLines(upstreams, "acme"), "tok-old")
	s := newTestServer(t, path)
	h := s.Handler()
	first := s.Gateway()

	writeConfigFile(t, path, providerLines(upstreams, "acme", "beta"), "tok-new")

	rec := do(t, h, http.MethodPost, "/v1/reload", "tok-old", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		ProvidersCount int `json:"providers_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.ProvidersCount)
	assert.NotSame(t, first, s.Gateway())
	assert.Equal(t, []string{"acme", "beta"}, s.Gateway().ProviderNames())

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/v1/chat/completions", "tok-old", chatBody).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/chat/completions", "tok-new", chatBody).Code)

	rec = do(t, h, http.MethodGet, "/v1/models", "", "")
	assert.Contains(t, rec.Body.String(), "beta/llama-3")
}

func TestServer_ReloadFailureKeepsGateway(t *testing.T) {
	acme := mock.StartMockServer(t, "gpt-4")
	path := filepath.Join(t.TempDir(), "nexus.yaml")
	writeConfigFile(t, path, providerLines(map[string]*mock.MockServer{"acme": acme}, "acme"), "tok-1")
	s := newTestServer(t, path)
	before := s.Gateway()

	require.NoError(t, os.WriteFile(path, []byte("providers: [\"broken\"]\n"), 0o600))

	rec := do(t, s.Handler(), http.MethodPost, "/v1/reload", "tok-1", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Same(t, before, s.Gateway())
	assert.Equal(t, http.StatusOK, do(t, s.Handler(), http.MethodPost, "/v1/chat/completions", "tok-1", chatBody).Code)
}

func TestServer_StartAndShutdown(t *testing.T) {
	acme := mock.StartMockServer(t, "gpt-4")
	path := filepath.Join(t.TempDir(), "nexus.yaml")
	writeConfigFile(t, path, providerLines(map[string]*mock.MockServer{"acme": acme}, "acme"), "tok-1")
	s := newTestServer(t, path)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	mock.WaitForCondition(t, 2*time.Second, s.IsRunning, "server did not start")

	resp, err := http.Get("http://" + s.Addr() + "/livez")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.False(t, s.IsRunning())
}

func TestServer_ReloadWithoutPath(t *testing.T) {
	cfg, err := config.Parse([]byte("providers: [\"acme|http://acme.test/v1|k\"]\n"))
	require.NoError(t, err)
	logger, err := logging.New(logging.Config{Writer: io.Discard})
	require.NoError(t, err)

	s, err := New(cfg, Options{Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	_, err = s.Reload(context.Background())
	assert.Error(t, err)
}

func TestServer_RateLimit(t *testing.T) {
	acme := mock.StartMockServer(t, "gpt-4")
	path := filepath.Join(t.TempDir(), "nexus.yaml")
	providers := providerLines(map[string]*mock.MockServer{"acme": acme}, "acme")
	limited := fmt.Sprintf(configTemplate, providers, "tok-1") +
		"security:\n  rate_limit:\n    requests_per_second: 0.001\n    burst: 1\n"
	require.NoError(t, os.WriteFile(path, []byte(limited), 0o600))

	s := newTestServer(t, path)
	h := s.Handler()

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/chat/completions", "tok-1", chatBody).Code)
	rec := do(t, h, http.MethodPost, "/v1/chat/completions", "tok-1", chatBody)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rate_limit_exceeded"`)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	metricsBody := do(t, h, http.MethodGet, "/metrics", "", "").Body.String()
	assert.Contains(t, metricsBody, `nexus_rate_limited_total{reason="rate"} 1`)

	// Removing the limit on reload takes effect immediately.
	writeConfigFile(t, path, providers, "tok-1")
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/reload", "tok-1", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/chat/completions", "tok-1", chatBody).Code)
}
