package config

import (
	"time"
)

// Config is the root configuration structure for the Nexus gateway.
type Config struct {
	// Server contains HTTP server configuration including listen address
	// and timeouts.
	Server ServerConfig `yaml:"server"`

	// Host and Port are the legacy way of setting the listen address. They
	// are used only when server.listen_address is empty.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Providers is the ordered list of upstream backends. Order is the
	// registration order used when aggregating model lists.
	Providers ProviderList `yaml:"providers"`

	// Tokens is the client bearer-token allow-list.
	Tokens TokenList `yaml:"tokens"`

	// SupportedModels is the global model allow-list: case-insensitive
	// regular expressions matched against "<provider>/<model>" ids. Empty
	// allows every model.
	SupportedModels []string `yaml:"supported_models"`

	// Gateway contains connection pool, timeout and discovery tunables.
	Gateway GatewayConfig `yaml:"gateway"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Security contains listener TLS and secret reference configuration.
	Security SecurityConfig `yaml:"security"`

	// Watch enables hot reload when the configuration file changes.
	Watch bool `yaml:"watch"`

	// warnings collects non-fatal problems found while parsing.
	warnings []string
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Chat completions lift this deadline and rely on the gateway
	// call timeouts instead.
	// Default: 60s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is how long graceful shutdown waits for in-flight
	// requests.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxRequestBytes caps inbound chat request bodies.
	// Default: 10485760 (10MB)
	MaxRequestBytes int64 `yaml:"max_request_bytes"`

	// NormalizeContent flattens array-form message content into plain text
	// before dispatch.
	// Default: true
	NormalizeContent *bool `yaml:"normalize_content"`
}

// ContentNormalization reports whether message content is normalized.
func (s ServerConfig) ContentNormalization() bool {
	return s.NormalizeContent == nil || *s.NormalizeContent
}

// ProviderConfig describes one upstream backend.
//
// In YAML it is either a mapping or a legacy "name|base_url|api_key" string.
type ProviderConfig struct {
	// Name is the routing prefix. Must be unique and must not contain "/".
	Name string `yaml:"name"`

	// BaseURL is the backend API root (e.g., "https://api.openai.com/v1") or
	// its full chat-completions URL.
	BaseURL string `yaml:"base_url"`

	// APIKey is sent upstream as a bearer credential.
	APIKey string `yaml:"api_key"`

	// Models optionally declares the upstream model ids, skipping live
	// discovery.
	Models []string `yaml:"models"`
}

// TokenConfig is one allowed client token.
//
// In YAML it is either a mapping or a legacy "description|token" string.
type TokenConfig struct {
	// Description identifies the token holder in logs.
	Description string `yaml:"description"`

	// Token is the bearer value clients present.
	Token string `yaml:"token"`
}

// GatewayConfig contains the connection and discovery tunables shared by all
// providers.
type GatewayConfig struct {
	// ConnectTimeout bounds TCP connection establishment.
	// Default: 10s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// TLSHandshakeTimeout bounds the TLS handshake.
	// Default: 10s
	TLSHandshakeTimeout time.Duration `yaml:"tls_handshake_timeout"`

	// ResponseHeaderTimeout bounds the wait for upstream response headers.
	// Zero leaves it bounded only by the call timeout.
	// Default: 0
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout"`

	// NonStreamTimeout bounds a buffered chat completion.
	// Default: 30s
	NonStreamTimeout time.Duration `yaml:"non_stream_timeout"`

	// StreamTimeout bounds a streamed chat completion end to end.
	// Default: 10m
	StreamTimeout time.Duration `yaml:"stream_timeout"`

	// DiscoveryTimeout bounds one model discovery attempt.
	// Default: 10s
	DiscoveryTimeout time.Duration `yaml:"discovery_timeout"`

	// HealthCheckTimeout bounds one health probe.
	// Default: 5s
	HealthCheckTimeout time.Duration `yaml:"health_check_timeout"`

	// MaxConnections caps concurrent connections per provider.
	// Default: 100
	MaxConnections int `yaml:"max_connections"`

	// MaxKeepaliveConnections caps idle pooled connections per provider.
	// Default: 20
	MaxKeepaliveConnections int `yaml:"max_keepalive_connections"`

	// KeepaliveExpiry is how long idle connections stay pooled.
	// Default: 30s
	KeepaliveExpiry time.Duration `yaml:"keepalive_expiry"`

	// MaxResponseSize caps buffered upstream bodies in bytes.
	// Default: 10485760 (10MB)
	MaxResponseSize int64 `yaml:"max_response_size"`

	// DiscoveryAttempts is the number of discovery attempts per refetch.
	// Default: 3
	DiscoveryAttempts int `yaml:"discovery_attempts"`

	// DiscoveryMaxBackoff caps the wait between discovery attempts.
	// Default: 10s
	DiscoveryMaxBackoff time.Duration `yaml:"discovery_max_backoff"`

	// FailureCooldown is how long a failed discovery is served from cache.
	// Default: 10s
	FailureCooldown time.Duration `yaml:"failure_cooldown"`

	// ModelRefreshSchedule is a cron expression for forced catalog refresh
	// (e.g., "*/15 * * * *" or "@every 5m"). Empty disables it.
	ModelRefreshSchedule string `yaml:"model_refresh_schedule"`

	// CloseGracePeriod delays closing a gateway replaced by a reload so
	// in-flight requests can finish.
	// Default: 30s
	CloseGracePeriod time.Duration `yaml:"close_grace_period"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing configures OpenTelemetry tracing.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log format: json, text.
	// Default: "json"
	Format string `yaml:"format"`

	// File, when set, receives a copy of every log line.
	File string `yaml:"file"`

	// AddSource adds source file and line to log records.
	AddSource bool `yaml:"add_source"`

	// Redact masks API keys and tokens in log output.
	// Default: true
	Redact *bool `yaml:"redact"`
}

// RedactEnabled reports whether log redaction is on.
func (l LoggingConfig) RedactEnabled() bool {
	return l.Redact == nil || *l.Redact
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled exposes metrics.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes every metric name.
	// Default: "nexus"
	Namespace string `yaml:"namespace"`
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	// Enabled turns on span export.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector address (host:port).
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is reported as service.name.
	// Default: "nexus"
	ServiceName string `yaml:"service_name"`

	// Sampler is the sampling strategy: always, never, ratio.
	// Default: "always"
	Sampler string `yaml:"sampler"`

	// SampleRatio is used with the ratio sampler (0.0 to 1.0).
	SampleRatio float64 `yaml:"sample_ratio"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// SecurityConfig contains security-related configuration.
type SecurityConfig struct {
	// TLS configures HTTPS on the gateway listener.
	TLS TLSConfig `yaml:"tls"`

	// Secrets configures ${secret:name} resolution in api_key and token
	// values.
	Secrets SecretsConfig `yaml:"secrets"`

	// RateLimit configures per-client admission control on chat
	// completions.
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig limits each client, keyed by token description, or by
// remote IP when no tokens are configured. All zero disables limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained request rate per client.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the number of requests a client may send at once.
	// Default: twice RequestsPerSecond
	Burst int `yaml:"burst"`

	// MaxConcurrent caps in-flight chat completions per client, streams
	// included.
	MaxConcurrent int `yaml:"max_concurrent"`

	// MaxClients bounds the number of clients tracked at once.
	// Default: 10000
	MaxClients int `yaml:"max_clients"`
}

// Enabled reports whether any limit is set.
func (r RateLimitConfig) Enabled() bool {
	return r.RequestsPerSecond > 0 || r.MaxConcurrent > 0
}

// TLSConfig contains listener TLS configuration.
type TLSConfig struct {
	// Enabled serves HTTPS instead of HTTP.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// CertFile is the PEM certificate path. Required when Enabled.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the PEM private key path. Required when Enabled.
	KeyFile string `yaml:"key_file"`

	// MinVersion is the minimum TLS version: "1.2" or "1.3".
	// Default: "1.3"
	MinVersion string `yaml:"min_version"`

	// CipherSuites restricts TLS 1.2 cipher suites. Empty uses Go's
	// defaults.
	CipherSuites []string `yaml:"cipher_suites"`

	// ReloadInterval is how often certificate files are checked for
	// changes.
	// Default: 5m
	ReloadInterval time.Duration `yaml:"cert_reload_interval"`

	// MTLS configures client certificate verification.
	MTLS MTLSConfig `yaml:"mtls"`
}

// MTLSConfig contains mutual TLS configuration.
type MTLSConfig struct {
	// Enabled requests client certificates.
	Enabled bool `yaml:"enabled"`

	// ClientCAFile is the PEM CA bundle used to verify clients.
	ClientCAFile string `yaml:"client_ca_file"`

	// ClientAuthType is one of "require", "request", "verify_if_given".
	// Default: "require"
	ClientAuthType string `yaml:"client_auth_type"`

	// IdentitySource selects the certificate field logged as the client
	// identity: "subject.CN", "subject.OU", "subject.O" or "SAN".
	// Default: "subject.CN"
	IdentitySource string `yaml:"identity_source"`
}

// SecretsConfig contains secret resolution configuration.
type SecretsConfig struct {
	// EnvPrefix namespaces secret environment variables.
	// Default: "NEXUS_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`

	// Dir holds one file per secret. Checked before the environment.
	Dir string `yaml:"dir"`

	// CacheTTL keeps resolved secrets across reloads. Zero disables.
	// Default: 5m
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// Warnings returns non-fatal problems: ignored environment overrides,
// unusable model patterns and an empty token allow-list.
func (c *Config) Warnings() []string {
	out := append([]string(nil), c.warnings...)
	out = append(out, c.PatternWarnings()...)
	if len(c.Tokens) == 0 {
		out = append(out, "no tokens configured: chat completions are not authenticated")
	}
	if len(c.Providers) == 0 {
		out = append(out, "no providers configured")
	}
	return out
}

func (c *Config) warn(msg string) {
	c.warnings = append(c.warnings, msg)
}
