package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"meridian-hq/nexus/pkg/providers"
	"meridian-hq/nexus/pkg/proxy"
)

// ReloadFunc rebuilds the gateway from configuration and returns the new
// provider count.
type ReloadFunc func(ctx context.Context) (int, error)

// ReloadHandler triggers a configuration reload. On failure the previous
// gateway keeps serving.
type ReloadHandler struct {
	Reload ReloadFunc
	Logger *slog.Logger
}

// NewReloadHandler creates a new reload handler.
func NewReloadHandler(reload ReloadFunc, logger *slog.Logger) *ReloadHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReloadHandler{Reload: reload, Logger: logger}
}

// ServeHTTP implements http.Handler.
func (h *ReloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.Logger.InfoContext(ctx, "configuration reload requested")

	count, err := h.Reload(ctx)
	if err != nil {
		h.Logger.ErrorContext(ctx, "configuration reload failed", "error", err)
		perr := providers.NewInternalError(err)
		perr.Message = "Failed to reload configuration: " + err.Error()
		if werr := proxy.WriteError(w, perr); werr != nil {
			h.Logger.ErrorContext(ctx, "failed to write error response", "error", werr)
		}
		return
	}

	h.Logger.InfoContext(ctx, "configuration reloaded", "providers", count)
	resp := ReloadResponse{Message: "configuration reloaded", ProvidersCount: count}
	if err := proxy.WriteJSON(w, http.StatusOK, resp); err != nil {
		h.Logger.ErrorContext(ctx, "failed to write response", "error", err)
	}
}
