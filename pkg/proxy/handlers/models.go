package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"meridian-hq/nexus/pkg/providers"
	"meridian-hq/nexus/pkg/proxy"
)

// ModelsHandler serves the aggregated, filtered model catalog.
// "?refresh=true" bypasses every provider's cache.
type ModelsHandler struct {
	Gateway GatewaySource
	Logger  *slog.Logger
}

// NewModelsHandler creates a new models handler.
func NewModelsHandler(source GatewaySource, logger *slog.Logger) *ModelsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelsHandler{Gateway: source, Logger: logger}
}

// ServeHTTP implements http.Handler.
func (h *ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	force, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	models := h.Gateway().ListAllModels(ctx, force)
	if models == nil {
		models = []providers.ModelInfo{}
	}

	h.Logger.InfoContext(ctx, "listing models", "count", len(models), "refresh", force)

	resp := ModelsResponse{Object: "list", Data: models}
	if err := proxy.WriteJSON(w, http.StatusOK, resp); err != nil {
		h.Logger.ErrorContext(ctx, "failed to write response", "error", err)
	}
}
