package config

import (
	"net"
	"strconv"
	"time"
)

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576  // 1MB
	DefaultMaxRequestBytes = 10485760 // 10MB

	// Gateway defaults
	DefaultConnectTimeout          = 10 * time.Second
	DefaultTLSHandshakeTimeout     = 10 * time.Second
	DefaultNonStreamTimeout        = 30 * time.Second
	DefaultStreamTimeout           = 10 * time.Minute
	DefaultDiscoveryTimeout        = 10 * time.Second
	DefaultHealthCheckTimeout      = 5 * time.Second
	DefaultMaxConnections          = 100
	DefaultMaxKeepaliveConnections = 20
	DefaultKeepaliveExpiry         = 30 * time.Second
	DefaultMaxResponseSize         = 10485760 // 10MB
	DefaultDiscoveryAttempts       = 3
	DefaultDiscoveryMaxBackoff     = 10 * time.Second
	DefaultFailureCooldown         = 10 * time.Second
	DefaultCloseGracePeriod        = 30 * time.Second

	// Telemetry defaults
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "nexus"
	DefaultTracingEndpoint  = "localhost:4317"
	DefaultServiceName      = "nexus"
	DefaultTracingSampler   = "always"
	DefaultTracingTimeout   = 10 * time.Second

	// Security defaults
	DefaultTLSMinVersion   = "1.3"
	DefaultCertReload      = 5 * time.Minute
	DefaultClientAuthType  = "require"
	DefaultIdentitySource  = "subject.CN"
	DefaultSecretEnvPrefix = "NEXUS_SECRET_"
	DefaultSecretCacheTTL  = 5 * time.Minute
)

// ApplyDefaults fills every unset field with its default value.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(cfg)
	applyGatewayDefaults(&cfg.Gateway)
	applyTelemetryDefaults(&cfg.Telemetry)
	applySecurityDefaults(&cfg.Security)
}

func applyServerDefaults(cfg *Config) {
	s := &cfg.Server
	if s.ListenAddress == "" {
		s.ListenAddress = legacyListenAddress(cfg.Host, cfg.Port)
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	if s.MaxHeaderBytes == 0 {
		s.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if s.MaxRequestBytes == 0 {
		s.MaxRequestBytes = DefaultMaxRequestBytes
	}
}

// legacyListenAddress builds an address from the top-level host and port.
func legacyListenAddress(host string, port int) string {
	if host == "" && port == 0 {
		return DefaultListenAddress
	}
	if host == "" || host == "localhost" {
		host = "127.0.0.1"
	}
	if port == 0 {
		port = 8080
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func applyGatewayDefaults(g *GatewayConfig) {
	if g.ConnectTimeout == 0 {
		g.ConnectTimeout = DefaultConnectTimeout
	}
	if g.TLSHandshakeTimeout == 0 {
		g.TLSHandshakeTimeout = DefaultTLSHandshakeTimeout
	}
	if g.NonStreamTimeout == 0 {
		g.NonStreamTimeout = DefaultNonStreamTimeout
	}
	if g.StreamTimeout == 0 {
		g.StreamTimeout = DefaultStreamTimeout
	}
	if g.DiscoveryTimeout == 0 {
		g.DiscoveryTimeout = DefaultDiscoveryTimeout
	}
	if g.HealthCheckTimeout == 0 {
		g.HealthCheckTimeout = DefaultHealthCheckTimeout
	}
	if g.MaxConnections == 0 {
		g.MaxConnections = DefaultMaxConnections
	}
	if g.MaxKeepaliveConnections == 0 {
		g.MaxKeepaliveConnections = min(DefaultMaxKeepaliveConnections, g.MaxConnections)
	}
	if g.KeepaliveExpiry == 0 {
		g.KeepaliveExpiry = DefaultKeepaliveExpiry
	}
	if g.MaxResponseSize == 0 {
		g.MaxResponseSize = DefaultMaxResponseSize
	}
	if g.DiscoveryAttempts == 0 {
		g.DiscoveryAttempts = DefaultDiscoveryAttempts
	}
	if g.DiscoveryMaxBackoff == 0 {
		g.DiscoveryMaxBackoff = DefaultDiscoveryMaxBackoff
	}
	if g.FailureCooldown == 0 {
		g.FailureCooldown = DefaultFailureCooldown
	}
	if g.CloseGracePeriod == 0 {
		g.CloseGracePeriod = DefaultCloseGracePeriod
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLogLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLogFormat
	}
	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultMetricsPath
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNamespace
	}
	if t.Tracing.Endpoint == "" {
		t.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if t.Tracing.ServiceName == "" {
		t.Tracing.ServiceName = DefaultServiceName
	}
	if t.Tracing.Sampler == "" {
		t.Tracing.Sampler = DefaultTracingSampler
	}
	if t.Tracing.Timeout == 0 {
		t.Tracing.Timeout = DefaultTracingTimeout
	}
}

func applySecurityDefaults(s *SecurityConfig) {
	if s.TLS.MinVersion == "" {
		s.TLS.MinVersion = DefaultTLSMinVersion
	}
	if s.TLS.ReloadInterval == 0 {
		s.TLS.ReloadInterval = DefaultCertReload
	}
	if s.TLS.MTLS.ClientAuthType == "" {
		s.TLS.MTLS.ClientAuthType = DefaultClientAuthType
	}
	if s.TLS.MTLS.IdentitySource == "" {
		s.TLS.MTLS.IdentitySource = DefaultIdentitySource
	}
	if s.Secrets.EnvPrefix == "" {
		s.Secrets.EnvPrefix = DefaultSecretEnvPrefix
	}
	if s.Secrets.CacheTTL == 0 {
		s.Secrets.CacheTTL = DefaultSecretCacheTTL
	}
}
