package handlers

import (
	"time"

	"meridian-hq/nexus/pkg/gateway"
	"meridian-hq/nexus/pkg/providers"
)

// GatewaySource returns the gateway that should serve the current request.
type GatewaySource func() *gateway.Gateway

// ChatRecorder receives the outcome of every chat completion.
type ChatRecorder interface {
	RecordChat(provider, model string, stream bool, outcome string)
}

type nopChatRecorder struct{}

func (nopChatRecorder) RecordChat(string, string, bool, string) {}

// ChatSettings are the per-request knobs read from the live configuration.
type ChatSettings struct {
	// NormalizeContent flattens array-form message content before dispatch
	NormalizeContent bool

	// MaxRequestBytes caps the request body (0 means unlimited)
	MaxRequestBytes int64
}

// RootResponse is the body of GET /.
type RootResponse struct {
	Service        string            `json:"service"`
	Version        string            `json:"version"`
	Endpoints      map[string]string `json:"endpoints"`
	ProvidersCount int               `json:"providers_count"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status           string          `json:"status"`
	Providers        map[string]bool `json:"providers"`
	HealthyProviders int             `json:"healthy_providers"`
	TotalProviders   int             `json:"total_providers"`
	Timestamp        int64           `json:"timestamp"`
}

// ModelsResponse is the body of GET /v1/models.
type ModelsResponse struct {
	Object string                `json:"object"`
	Data   []providers.ModelInfo `json:"data"`
}

// ReloadResponse is the body of a successful POST /v1/reload.
type ReloadResponse struct {
	Message        string `json:"message"`
	ProvidersCount int    `json:"providers_count"`
}

// Health status values.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Chat outcome labels that are not error codes.
const (
	OutcomeSuccess   = "success"
	OutcomeCancelled = "client_cancelled"
)

var now = time.Now
