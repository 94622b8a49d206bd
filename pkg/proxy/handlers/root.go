package handlers

import (
	"log/slog"
	"net/http"

	"meridian-hq/nexus/pkg/proxy"
)

// Endpoints lists the public API paths advertised by GET /.
var Endpoints = map[string]string{
	"models": "/v1/models",
	"chat":   "/v1/chat/completions",
	"health": "/health",
	"reload": "/v1/reload",
}

// RootHandler describes the service.
type RootHandler struct {
	Service string
	Version string
	Gateway GatewaySource
}

// NewRootHandler creates a new root handler.
func NewRootHandler(service, version string, source GatewaySource) *RootHandler {
	return &RootHandler{Service: service, Version: version, Gateway: source}
}

// ServeHTTP implements http.Handler.
func (h *RootHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := RootResponse{
		Service:        h.Service,
		Version:        h.Version,
		Endpoints:      Endpoints,
		ProvidersCount: len(h.Gateway().ProviderNames()),
	}
	if err := proxy.WriteJSON(w, http.StatusOK, resp); err != nil {
		slog.ErrorContext(r.Context(), "failed to write response", "error", err)
	}
}
