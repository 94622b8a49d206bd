package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"meridian-hq/nexus/pkg/config"
	"meridian-hq/nexus/pkg/gateway"
	"meridian-hq/nexus/pkg/limits/ratelimit"
	"meridian-hq/nexus/pkg/providers"
)

// buildGateway creates a gateway for cfg wired to the server's metrics and
// tracing.
func (s *Server) buildGateway(cfg *config.Config) (*gateway.Gateway, error) {
	endpoints, err := cfg.Endpoints()
	if err != nil {
		return nil, fmt.Errorf("invalid provider configuration: %w", err)
	}
	gw, err := gateway.New(endpoints, cfg.ClientConfig(), cfg.SupportedModels,
		gateway.WithLogger(s.logger.Slog()),
		gateway.WithRecorder(s.collector),
		gateway.WithConnectionOptions(providers.WrapTransport(s.tracer.Transport)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}
	return gw, nil
}

// applyRateLimits installs fresh per-client limiters for cfg, or removes
// them when no limit is set. Counters restart; requests admitted by the old
// limiters release into them.
func (s *Server) applyRateLimits(cfg config.RateLimitConfig) error {
	if !cfg.Enabled() {
		s.limits.Store(nil)
		return nil
	}
	m, err := ratelimit.NewManager(ratelimit.Config{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		MaxConcurrent:     cfg.MaxConcurrent,
		MaxClients:        cfg.MaxClients,
	})
	if err != nil {
		return err
	}
	s.limits.Store(m)
	return nil
}

// Reload re-reads the configuration file and swaps in a new gateway. Tokens,
// rate limits and the log level take effect immediately. In-flight requests finish on
// the previous gateway, which is closed after the grace period. On failure
// nothing changes.
//
// The listen address, TLS, metrics, tracing and the refresh schedule are
// fixed at startup.
func (s *Server) Reload(ctx context.Context) (int, error) {
	if s.path == "" {
		return 0, errors.New("no configuration file to reload from")
	}

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	log := s.logger.Slog()

	// Re-read rotated secrets instead of serving cached values.
	s.resolver.Refresh()

	cfg, err := config.ReloadConfig(ctx, s.path, s.resolver)
	if err != nil {
		return 0, err
	}
	for _, w := range cfg.Warnings() {
		log.Warn("configuration warning", "warning", w)
	}

	gw, err := s.buildGateway(cfg)
	if err != nil {
		return 0, err
	}
	if err := s.registry.Swap(gw); err != nil {
		return 0, fmt.Errorf("failed to install gateway: %w", err)
	}

	s.tokens.Replace(cfg.TokenMap())
	if err := s.logger.SetLevel(cfg.Telemetry.Logging.Level); err != nil {
		log.Warn("failed to apply log level", "error", err)
	}

	if prev := s.cfg.Load(); prev == nil || prev.Security.RateLimit != cfg.Security.RateLimit {
		if err := s.applyRateLimits(cfg.Security.RateLimit); err != nil {
			log.Warn("failed to apply rate limits", "error", err)
		}
	}

	prev := s.cfg.Swap(cfg)
	warnRestartRequired(log, prev, cfg)

	count := len(gw.ProviderNames())
	log.Info("configuration reloaded", "providers", count, "tokens", s.tokens.Len())
	return count, nil
}

// warnRestartRequired logs settings that changed on disk but only apply at
// startup.
func warnRestartRequired(log *slog.Logger, prev, next *config.Config) {
	if prev == nil {
		return
	}
	changed := func(name string, differs bool) {
		if differs {
			log.Warn("configuration change requires restart", "setting", name)
		}
	}
	changed("server.listen_address", prev.Server.ListenAddress != next.Server.ListenAddress)
	changed("gateway.model_refresh_schedule", prev.Gateway.ModelRefreshSchedule != next.Gateway.ModelRefreshSchedule)
	changed("telemetry.metrics", prev.Telemetry.Metrics != next.Telemetry.Metrics)
	changed("telemetry.tracing", prev.Telemetry.Tracing != next.Telemetry.Tracing)
	changed("security.tls", !reflect.DeepEqual(prev.Security.TLS, next.Security.TLS))
}
