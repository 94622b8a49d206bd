package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
//
// Invalid supported_models patterns are not errors; see Config.Warnings.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateProviders(cfg.Providers)...)
	errs = append(errs, validateTokens(cfg.Tokens)...)
	errs = append(errs, validateGateway(&cfg.Gateway)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateSecurity(&cfg.Security)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid address %q: %v", cfg.ListenAddress, err),
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.read_timeout", Message: "must not be negative"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.write_timeout", Message: "must not be negative"})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.idle_timeout", Message: "must not be negative"})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.shutdown_timeout", Message: "must not be negative"})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_header_bytes", Message: "must not be negative"})
	}
	if cfg.MaxRequestBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_request_bytes", Message: "must not be negative"})
	}

	return errs
}

func validateProviders(list ProviderList) []FieldError {
	var errs []FieldError
	seen := make(map[string]int, len(list))

	for i, p := range list {
		prefix := fmt.Sprintf("providers[%d]", i)
		name := strings.TrimSpace(p.Name)

		switch {
		case name == "":
			errs = append(errs, FieldError{Field: prefix + ".name", Message: "is required"})
		case strings.Contains(name, "/"):
			errs = append(errs, FieldError{Field: prefix + ".name", Message: fmt.Sprintf("%q must not contain '/'", name)})
		default:
			if j, dup := seen[name]; dup {
				errs = append(errs, FieldError{
					Field:   prefix + ".name",
					Message: fmt.Sprintf("duplicate provider name %q (also providers[%d])", name, j),
				})
			}
			seen[name] = i
		}

		if p.BaseURL == "" {
			errs = append(errs, FieldError{Field: prefix + ".base_url", Message: "is required"})
			continue
		}
		u, err := url.Parse(p.BaseURL)
		if err != nil {
			errs = append(errs, FieldError{Field: prefix + ".base_url", Message: fmt.Sprintf("invalid URL: %v", err)})
			continue
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, FieldError{Field: prefix + ".base_url", Message: "must use http or https scheme"})
		}
		if u.Host == "" {
			errs = append(errs, FieldError{Field: prefix + ".base_url", Message: "must include a host"})
		}
	}

	return errs
}

func validateTokens(list TokenList) []FieldError {
	var errs []FieldError
	seen := make(map[string]bool, len(list))
	for i, t := range list {
		if t.Token == "" {
			errs = append(errs, FieldError{Field: fmt.Sprintf("tokens[%d].token", i), Message: "is required"})
			continue
		}
		if seen[t.Token] {
			errs = append(errs, FieldError{Field: fmt.Sprintf("tokens[%d].token", i), Message: "duplicate token"})
		}
		seen[t.Token] = true
	}
	return errs
}

func validateGateway(cfg *GatewayConfig) []FieldError {
	var errs []FieldError

	positive := []struct {
		field string
		ok    bool
	}{
		{"gateway.connect_timeout", cfg.ConnectTimeout > 0},
		{"gateway.tls_handshake_timeout", cfg.TLSHandshakeTimeout > 0},
		{"gateway.non_stream_timeout", cfg.NonStreamTimeout > 0},
		{"gateway.stream_timeout", cfg.StreamTimeout > 0},
		{"gateway.discovery_timeout", cfg.DiscoveryTimeout > 0},
		{"gateway.health_check_timeout", cfg.HealthCheckTimeout > 0},
		{"gateway.max_connections", cfg.MaxConnections > 0},
		{"gateway.max_keepalive_connections", cfg.MaxKeepaliveConnections > 0},
		{"gateway.keepalive_expiry", cfg.KeepaliveExpiry > 0},
		{"gateway.max_response_size", cfg.MaxResponseSize > 0},
		{"gateway.discovery_attempts", cfg.DiscoveryAttempts > 0},
		{"gateway.discovery_max_backoff", cfg.DiscoveryMaxBackoff > 0},
	}
	for _, p := range positive {
		if !p.ok {
			errs = append(errs, FieldError{Field: p.field, Message: "must be positive"})
		}
	}

	if cfg.ResponseHeaderTimeout < 0 {
		errs = append(errs, FieldError{Field: "gateway.response_header_timeout", Message: "must not be negative"})
	}
	if cfg.FailureCooldown < 0 {
		errs = append(errs, FieldError{Field: "gateway.failure_cooldown", Message: "must not be negative"})
	}
	if cfg.CloseGracePeriod < 0 {
		errs = append(errs, FieldError{Field: "gateway.close_grace_period", Message: "must not be negative"})
	}
	if cfg.MaxKeepaliveConnections > cfg.MaxConnections && cfg.MaxConnections > 0 {
		errs = append(errs, FieldError{
			Field:   "gateway.max_keepalive_connections",
			Message: fmt.Sprintf("must not exceed max_connections (%d)", cfg.MaxConnections),
		})
	}
	if cfg.ModelRefreshSchedule != "" {
		if _, err := cron.ParseStandard(cfg.ModelRefreshSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "gateway.model_refresh_schedule",
				Message: fmt.Sprintf("invalid cron schedule %q: %v", cfg.ModelRefreshSchedule, err),
			})
		}
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid level %q (must be debug, info, warn, or error)", cfg.Logging.Level),
		})
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid format %q (must be json or text)", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "must start with '/'"})
	}

	switch cfg.Tracing.Sampler {
	case "always", "never":
	case "ratio":
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sample_ratio",
				Message: fmt.Sprintf("must be between 0.0 and 1.0, got %g", cfg.Tracing.SampleRatio),
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q (must be always, never, or ratio)", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "is required when tracing is enabled"})
	}

	return errs
}

func validateSecurity(cfg *SecurityConfig) []FieldError {
	var errs []FieldError
	t := &cfg.TLS

	if t.Enabled {
		if t.CertFile == "" {
			errs = append(errs, FieldError{Field: "security.tls.cert_file", Message: "is required when TLS is enabled"})
		}
		if t.KeyFile == "" {
			errs = append(errs, FieldError{Field: "security.tls.key_file", Message: "is required when TLS is enabled"})
		}
	}
	switch t.MinVersion {
	case "1.2", "1.3":
	default:
		errs = append(errs, FieldError{
			Field:   "security.tls.min_version",
			Message: fmt.Sprintf("invalid version %q (must be 1.2 or 1.3)", t.MinVersion),
		})
	}
	if t.ReloadInterval < 0 {
		errs = append(errs, FieldError{Field: "security.tls.cert_reload_interval", Message: "must not be negative"})
	}

	if t.MTLS.Enabled {
		if !t.Enabled {
			errs = append(errs, FieldError{Field: "security.tls.mtls.enabled", Message: "requires security.tls.enabled"})
		}
		if t.MTLS.ClientCAFile == "" {
			errs = append(errs, FieldError{Field: "security.tls.mtls.client_ca_file", Message: "is required when mTLS is enabled"})
		}
	}
	switch t.MTLS.ClientAuthType {
	case "require", "request", "verify_if_given":
	default:
		errs = append(errs, FieldError{
			Field:   "security.tls.mtls.client_auth_type",
			Message: fmt.Sprintf("invalid type %q (must be require, request, or verify_if_given)", t.MTLS.ClientAuthType),
		})
	}
	switch t.MTLS.IdentitySource {
	case "subject.CN", "subject.OU", "subject.O", "SAN":
	default:
		errs = append(errs, FieldError{
			Field:   "security.tls.mtls.identity_source",
			Message: fmt.Sprintf("invalid source %q", t.MTLS.IdentitySource),
		})
	}

	if cfg.Secrets.CacheTTL < 0 {
		errs = append(errs, FieldError{Field: "security.secrets.cache_ttl", Message: "must not be negative"})
	}

	rl := cfg.RateLimit
	if rl.RequestsPerSecond < 0 {
		errs = append(errs, FieldError{Field: "security.rate_limit.requests_per_second", Message: "must not be negative"})
	}
	if rl.Burst < 0 {
		errs = append(errs, FieldError{Field: "security.rate_limit.burst", Message: "must not be negative"})
	}
	if rl.MaxConcurrent < 0 {
		errs = append(errs, FieldError{Field: "security.rate_limit.max_concurrent", Message: "must not be negative"})
	}
	if rl.MaxClients < 0 {
		errs = append(errs, FieldError{Field: "security.rate_limit.max_clients", Message: "must not be negative"})
	}

	return errs
}

// PatternWarnings reports supported_models patterns that do not compile.
// The model filter skips them.
func (c *Config) PatternWarnings() []string {
	var warnings []string
	for _, p := range c.SupportedModels {
		if _, err := regexp.Compile("(?i)" + p); err != nil {
			warnings = append(warnings, fmt.Sprintf("supported_models pattern %q is invalid and will be skipped: %v", p, err))
		}
	}
	return warnings
}
