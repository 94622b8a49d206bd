package server

import (
	"net/http"

	"meridian-hq/nexus/pkg/proxy/handlers"
	"meridian-hq/nexus/pkg/proxy/middleware"
	"meridian-hq/nexus/pkg/security/auth"
	"meridian-hq/nexus/pkg/telemetry/health"
)

// setupRoutes builds the mux and wraps it in the middleware chain:
// tracing, request ID, access logging, panic recovery.
func (s *Server) setupRoutes() http.Handler {
	cfg := s.cfg.Load()
	log := s.logger.Slog()
	source := handlers.GatewaySource(s.registry.Current)
	guard := auth.NewMiddleware(s.tokens, nil, log)

	mux := http.NewServeMux()

	mux.Handle("GET /{$}", handlers.NewRootHandler(ServiceName, s.version.Version, source))
	mux.Handle("GET /health", handlers.NewHealthHandler(source, log))
	mux.Handle("GET /v1/models", handlers.NewModelsHandler(source, log))
	limit := middleware.RateLimit(s.limits.Load, s.collector, log)
	mux.Handle("POST /v1/chat/completions", guard.Handle(limit(
		handlers.NewChatHandler(source, s.chatSettings, s.collector, log),
	)))
	mux.Handle("POST /v1/reload", guard.Handle(handlers.NewReloadHandler(s.Reload, log)))

	mux.Handle("GET /livez", s.checker.LivenessHandler())
	mux.Handle("GET /readyz", s.checker.ReadinessHandler())
	mux.Handle("GET /version", health.VersionHandler(s.version))

	if cfg.Telemetry.Metrics.Enabled {
		mux.Handle("GET "+cfg.Telemetry.Metrics.Path, s.collector.Handler())
	}

	return middleware.Chain(mux,
		s.tracer.Middleware,
		middleware.RequestID,
		middleware.Logging(middleware.LoggingOptions{
			Logger:         log,
			Recorder:       s.collector,
			IdentitySource: identitySource(cfg.Security.TLS.MTLS.Enabled, cfg.Security.TLS.MTLS.IdentitySource),
		}),
		middleware.Recovery(log),
	)
}

func identitySource(mtls bool, source string) string {
	if !mtls {
		return ""
	}
	return source
}

// chatSettings reads the per-request chat knobs from the live configuration.
func (s *Server) chatSettings() handlers.ChatSettings {
	srv := s.cfg.Load().Server
	return handlers.ChatSettings{
		NormalizeContent: srv.ContentNormalization(),
		MaxRequestBytes:  srv.MaxRequestBytes,
	}
}
