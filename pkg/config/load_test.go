package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, "nexus.yaml", `
server:
  listen_address: "0.0.0.0:9000"
  read_timeout: "45s"

providers:
  - name: openai
    base_url: "https://api.openai.com/v1/"
    api_key: "sk-openai"
  - name: local
    base_url: "http://127.0.0.1:11434/v1"
    models: ["llama3", "mistral"]

tokens:
  - description: ci
    token: tok-ci

supported_models:
  - "^openai/gpt-4"

gateway:
  stream_timeout: "2m"
  model_refresh_schedule: "@every 5m"

telemetry:
  logging:
    level: debug
    format: text
  metrics:
    enabled: true
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9000" {
		t.Errorf("expected listen address %q, got %q", "0.0.0.0:9000", cfg.Server.ListenAddress)
	}
	if cfg.Server.ReadTimeout != 45*time.Second {
		t.Errorf("expected read timeout %v, got %v", 45*time.Second, cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != DefaultWriteTimeout {
		t.Errorf("expected default write timeout, got %v", cfg.Server.WriteTimeout)
	}

	if len(cfg.Providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(cfg.Providers))
	}
	if cfg.Providers[0].Name != "openai" || cfg.Providers[1].Name != "local" {
		t.Errorf("provider order not preserved: %+v", cfg.Providers)
	}
	if got := cfg.Providers[1].Models; len(got) != 2 || got[0] != "llama3" {
		t.Errorf("expected declared models, got %v", got)
	}

	if cfg.Gateway.StreamTimeout != 2*time.Minute {
		t.Errorf("expected stream timeout 2m, got %v", cfg.Gateway.StreamTimeout)
	}
	if cfg.Gateway.NonStreamTimeout != DefaultNonStreamTimeout {
		t.Errorf("expected default non-stream timeout, got %v", cfg.Gateway.NonStreamTimeout)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("expected logging level %q, got %q", "debug", cfg.Telemetry.Logging.Level)
	}
	if !cfg.Telemetry.Metrics.Enabled {
		t.Error("expected metrics enabled")
	}
	if got := cfg.TokenMap()["tok-ci"]; got != "ci" {
		t.Errorf("expected token description %q, got %q", "ci", got)
	}
}

func TestLoadConfig_JSON(t *testing.T) {
	path := writeConfig(t, "nexus.json", `{
  "host": "localhost",
  "port": 4000,
  "providers": ["acme|http://acme.test/v1|sk-acme"],
  "tokens": ["admin|tok-admin"]
}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Server.ListenAddress != "127.0.0.1:4000" {
		t.Errorf("expected legacy listen address, got %q", cfg.Server.ListenAddress)
	}
	if len(cfg.Providers) != 1 || cfg.Providers[0].APIKey != "sk-acme" {
		t.Errorf("unexpected providers: %+v", cfg.Providers)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "bad.yaml", "server: [unclosed")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	path := writeConfig(t, "invalid.yaml", `
providers:
  - name: "a/b"
    base_url: "ftp://example.com"
`)
	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected validation error")
	}

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(verr.Errors) != 2 {
		t.Errorf("expected 2 field errors, got %d: %v", len(verr.Errors), verr)
	}
}

func TestParse_EmptyDocument(t *testing.T) {
	cfg, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("expected default listen address, got %q", cfg.Server.ListenAddress)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("empty configuration should be valid: %v", err)
	}

	warnings := strings.Join(cfg.Warnings(), "\n")
	if !strings.Contains(warnings, "no tokens configured") {
		t.Errorf("expected unauthenticated warning, got %q", warnings)
	}
	if !strings.Contains(warnings, "no providers configured") {
		t.Errorf("expected no-providers warning, got %q", warnings)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, "nexus.yaml", `
providers:
  - name: my-provider
    base_url: "http://file.test/v1"
    api_key: from-file
`)

	t.Setenv("NEXUS_SERVER_LISTEN_ADDRESS", "0.0.0.0:7000")
	t.Setenv("NEXUS_LOG_LEVEL", "warn")
	t.Setenv("NEXUS_STREAM_TIMEOUT", "90s")
	t.Setenv("NEXUS_NON_STREAM_TIMEOUT", "soon")
	t.Setenv("NEXUS_MAX_RESPONSE_SIZE", "2048")
	t.Setenv("NEXUS_METRICS_ENABLED", "true")
	t.Setenv("NEXUS_PROVIDER_MY_PROVIDER_API_KEY", "from-env")
	t.Setenv("NEXUS_PROVIDER_MY_PROVIDER_BASE_URL", "http://env.test/v1")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:7000" {
		t.Errorf("expected env listen address, got %q", cfg.Server.ListenAddress)
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("expected env log level, got %q", cfg.Telemetry.Logging.Level)
	}
	if cfg.Gateway.StreamTimeout != 90*time.Second {
		t.Errorf("expected env stream timeout, got %v", cfg.Gateway.StreamTimeout)
	}
	if cfg.Gateway.NonStreamTimeout != DefaultNonStreamTimeout {
		t.Errorf("invalid override should be ignored, got %v", cfg.Gateway.NonStreamTimeout)
	}
	if cfg.Gateway.MaxResponseSize != 2048 {
		t.Errorf("expected env max response size, got %d", cfg.Gateway.MaxResponseSize)
	}
	if !cfg.Telemetry.Metrics.Enabled {
		t.Error("expected metrics enabled from env")
	}
	if cfg.Providers[0].APIKey != "from-env" || cfg.Providers[0].BaseURL != "http://env.test/v1" {
		t.Errorf("expected provider env overrides, got %+v", cfg.Providers[0])
	}

	found := false
	for _, w := range cfg.Warnings() {
		if strings.Contains(w, "NEXUS_NON_STREAM_TIMEOUT") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected warning about ignored override, got %v", cfg.Warnings())
	}
}

func TestEnvName(t *testing.T) {
	tests := map[string]string{
		"openai":      "OPENAI",
		"my-provider": "MY_PROVIDER",
		"Local.2":     "LOCAL_2",
	}
	for in, want := range tests {
		if got := envName(in); got != want {
			t.Errorf("envName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestApplyDefaults_LegacyListenAddress(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"", 0, DefaultListenAddress},
		{"localhost", 0, "127.0.0.1:8080"},
		{"0.0.0.0", 9999, "0.0.0.0:9999"},
		{"", 3000, "127.0.0.1:3000"},
		{"::1", 8081, "[::1]:8081"},
	}

	for _, tt := range tests {
		cfg := &Config{Host: tt.host, Port: tt.port}
		ApplyDefaults(cfg)
		if cfg.Server.ListenAddress != tt.want {
			t.Errorf("host=%q port=%d: got %q, want %q", tt.host, tt.port, cfg.Server.ListenAddress, tt.want)
		}
	}
}

func TestApplyDefaults_ExplicitListenAddressWins(t *testing.T) {
	cfg := &Config{Host: "0.0.0.0", Port: 1, Server: ServerConfig{ListenAddress: "127.0.0.1:2"}}
	ApplyDefaults(cfg)
	if cfg.Server.ListenAddress != "127.0.0.1:2" {
		t.Errorf("expected explicit address, got %q", cfg.Server.ListenAddress)
	}
}

func TestApplyDefaults_KeepaliveBoundedByMaxConnections(t *testing.T) {
	cfg := &Config{Gateway: GatewayConfig{MaxConnections: 5}}
	ApplyDefaults(cfg)
	if cfg.Gateway.MaxKeepaliveConnections != 5 {
		t.Errorf("expected keepalive 5, got %d", cfg.Gateway.MaxKeepaliveConnections)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestClientConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cc := cfg.ClientConfig()

	if cc.NonStreamTimeout != DefaultNonStreamTimeout {
		t.Errorf("expected non-stream timeout %v, got %v", DefaultNonStreamTimeout, cc.NonStreamTimeout)
	}
	if cc.StreamTimeout != DefaultStreamTimeout {
		t.Errorf("expected stream timeout %v, got %v", DefaultStreamTimeout, cc.StreamTimeout)
	}
	if cc.MaxResponseSize != DefaultMaxResponseSize {
		t.Errorf("expected max response size %d, got %d", DefaultMaxResponseSize, cc.MaxResponseSize)
	}
	if cc.FailureCooldown != DefaultFailureCooldown {
		t.Errorf("expected failure cooldown %v, got %v", DefaultFailureCooldown, cc.FailureCooldown)
	}
}

func TestEndpoints(t *testing.T) {
	cfg := &Config{Providers: ProviderList{
		{Name: "b", BaseURL: "http://b.test/v1/"},
		{Name: "a", BaseURL: "http://a.test/v1", APIKey: "k", Models: []string{"m1"}},
	}}
	eps, err := cfg.Endpoints()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(eps) != 2 || eps[0].Name != "b" || eps[1].Name != "a" {
		t.Fatalf("unexpected endpoints: %+v", eps)
	}
	if eps[0].BaseURL != "http://b.test/v1" {
		t.Errorf("expected trailing slash trimmed, got %q", eps[0].BaseURL)
	}

	cfg.Providers = append(cfg.Providers, ProviderConfig{Name: "", BaseURL: "http://x"})
	if _, err := cfg.Endpoints(); err == nil {
		t.Error("expected error for empty provider name")
	}
}

func TestSingleton(t *testing.T) {
	prev := GetConfig()
	t.Cleanup(func() { SetConfig(prev) })

	cfg := &Config{}
	SetConfig(cfg)
	if GetConfig() != cfg {
		t.Error("GetConfig did not return the stored configuration")
	}

	path := writeConfig(t, "nexus.yaml", `providers: ["x|http://x.test/v1|k"]`)
	reloaded, err := ReloadConfig(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if GetConfig() != reloaded {
		t.Error("ReloadConfig did not replace the global configuration")
	}

	bad := writeConfig(t, "bad.yaml", `providers: ["broken"]`)
	if _, err := ReloadConfig(context.Background(), bad, nil); err == nil {
		t.Fatal("expected reload error")
	}
	if GetConfig() != reloaded {
		t.Error("failed reload must keep the previous configuration")
	}
}
