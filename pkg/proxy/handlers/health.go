package handlers

import (
	"log/slog"
	"net/http"

	"meridian-hq/nexus/pkg/proxy"
)

// HealthHandler probes every provider and reports the aggregate. The
// service is healthy when at least one provider is. The status code is
// always 200; orchestrators should use /readyz instead.
type HealthHandler struct {
	Gateway GatewaySource
	Logger  *slog.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(source GatewaySource, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{Gateway: source, Logger: logger}
}

// ServeHTTP implements http.Handler.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	results := h.Gateway().HealthCheckAll(ctx)

	healthy := 0
	for _, ok := range results {
		if ok {
			healthy++
		}
	}

	status := StatusUnhealthy
	if healthy > 0 {
		status = StatusHealthy
	}

	h.Logger.InfoContext(ctx, "health check completed",
		"healthy_providers", healthy,
		"total_providers", len(results),
	)

	resp := HealthResponse{
		Status:           status,
		Providers:        results,
		HealthyProviders: healthy,
		TotalProviders:   len(results),
		Timestamp:        now().Unix(),
	}
	if err := proxy.WriteJSON(w, http.StatusOK, resp); err != nil {
		h.Logger.ErrorContext(ctx, "failed to write response", "error", err)
	}
}
