package providers

import (
	"errors"
	"strings"
	"time"
)

// chatCompletionsPath is appended to the base URL unless the base URL already
// points at the chat endpoint.
const chatCompletionsPath = "/chat/completions"

// Endpoint is the immutable description of one upstream backend.
type Endpoint struct {
	// Name is the routing prefix ("acme" in "acme/gpt-4")
	Name string

	// BaseURL is the backend root with any trailing slash removed
	BaseURL string

	// APIKey is sent as a bearer credential on every upstream call
	APIKey string

	// Models, when non-empty, declares the upstream model ids this
	// provider exposes and disables live discovery
	Models []string
}

// NewEndpoint builds a normalized Endpoint.
func NewEndpoint(name, baseURL, apiKey string, models []string) (Endpoint, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Endpoint{}, errors.New("provider name is required")
	}
	if strings.Contains(name, "/") {
		return Endpoint{}, errors.New("provider name must not contain '/'")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return Endpoint{}, errors.New("provider base URL is required")
	}

	var declared []string
	for _, m := range models {
		if m = strings.TrimSpace(m); m != "" {
			declared = append(declared, m)
		}
	}

	return Endpoint{
		Name:    name,
		BaseURL: baseURL,
		APIKey:  apiKey,
		Models:  declared,
	}, nil
}

// ChatPath returns the path appended to BaseURL for chat completions. It is
// empty when BaseURL already ends with the chat-completions segment.
func (e Endpoint) ChatPath() string {
	if strings.HasSuffix(e.BaseURL, chatCompletionsPath) {
		return ""
	}
	return chatCompletionsPath
}

// ChatURL returns the full chat-completions URL.
func (e Endpoint) ChatURL() string {
	return e.BaseURL + e.ChatPath()
}

// ModelsURL returns the discovery URL. A base URL that already names the chat
// endpoint is trimmed back to its API root first.
func (e Endpoint) ModelsURL() string {
	return strings.TrimSuffix(e.BaseURL, chatCompletionsPath) + "/models"
}

// ClientConfig holds the tunables shared by every connection of a gateway.
type ClientConfig struct {
	// ConnectTimeout bounds TCP connection establishment
	ConnectTimeout time.Duration

	// TLSHandshakeTimeout bounds the TLS handshake
	TLSHandshakeTimeout time.Duration

	// ResponseHeaderTimeout bounds the wait for response headers after the
	// request is written (0 means no transport-level limit)
	ResponseHeaderTimeout time.Duration

	// NonStreamTimeout bounds a whole buffered chat completion
	NonStreamTimeout time.Duration

	// StreamTimeout bounds a whole streamed chat completion, including
	// consumption of every chunk
	StreamTimeout time.Duration

	// DiscoveryTimeout bounds a single model discovery attempt
	DiscoveryTimeout time.Duration

	// HealthCheckTimeout bounds a health probe
	HealthCheckTimeout time.Duration

	// MaxConnections caps concurrent upstream calls per provider; further
	// calls queue until a slot frees or their deadline passes
	MaxConnections int

	// MaxKeepaliveConnections caps idle pooled connections per provider
	MaxKeepaliveConnections int

	// KeepaliveExpiry is how long an idle connection stays pooled
	KeepaliveExpiry time.Duration

	// MaxResponseSize caps buffered response bodies in bytes
	MaxResponseSize int64

	// DiscoveryAttempts is the total number of discovery attempts per refetch
	DiscoveryAttempts int

	// DiscoveryMaxBackoff caps the wait between discovery attempts
	DiscoveryMaxBackoff time.Duration

	// FailureCooldown is how long a failed discovery result is served from
	// cache before the next call retries
	FailureCooldown time.Duration
}

// DefaultClientConfig returns the default connection tunables.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ConnectTimeout:          10 * time.Second,
		TLSHandshakeTimeout:     10 * time.Second,
		NonStreamTimeout:        30 * time.Second,
		StreamTimeout:           10 * time.Minute,
		DiscoveryTimeout:        10 * time.Second,
		HealthCheckTimeout:      5 * time.Second,
		MaxConnections:          100,
		MaxKeepaliveConnections: 20,
		KeepaliveExpiry:         30 * time.Second,
		MaxResponseSize:         10 * 1024 * 1024,
		DiscoveryAttempts:       3,
		DiscoveryMaxBackoff:     10 * time.Second,
		FailureCooldown:         10 * time.Second,
	}
}

// withDefaults fills zero-valued fields from DefaultClientConfig.
func (c ClientConfig) withDefaults() ClientConfig {
	d := DefaultClientConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.TLSHandshakeTimeout <= 0 {
		c.TLSHandshakeTimeout = d.TLSHandshakeTimeout
	}
	if c.NonStreamTimeout <= 0 {
		c.NonStreamTimeout = d.NonStreamTimeout
	}
	if c.StreamTimeout <= 0 {
		c.StreamTimeout = d.StreamTimeout
	}
	if c.DiscoveryTimeout <= 0 {
		c.DiscoveryTimeout = d.DiscoveryTimeout
	}
	if c.HealthCheckTimeout <= 0 {
		c.HealthCheckTimeout = d.HealthCheckTimeout
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = d.MaxConnections
	}
	if c.MaxKeepaliveConnections <= 0 {
		c.MaxKeepaliveConnections = d.MaxKeepaliveConnections
	}
	if c.KeepaliveExpiry <= 0 {
		c.KeepaliveExpiry = d.KeepaliveExpiry
	}
	if c.MaxResponseSize <= 0 {
		c.MaxResponseSize = d.MaxResponseSize
	}
	if c.DiscoveryAttempts <= 0 {
		c.DiscoveryAttempts = d.DiscoveryAttempts
	}
	if c.DiscoveryMaxBackoff <= 0 {
		c.DiscoveryMaxBackoff = d.DiscoveryMaxBackoff
	}
	if c.FailureCooldown < 0 {
		c.FailureCooldown = d.FailureCooldown
	}
	return c
}

// ModelInfo is one entry of the aggregated model catalog.
type ModelInfo struct {
	// ID is the fully-qualified "<provider>/<upstream id>"
	ID string `json:"id"`

	// Object is the upstream object type, "model" when absent
	Object string `json:"object"`

	// Created is the upstream creation timestamp, if reported
	Created *int64 `json:"created,omitempty"`

	// OwnedBy is always the provider name
	OwnedBy string `json:"owned_by"`
}

// ParseModelName splits a routing name on the first "/". A name without a
// slash has an empty provider.
func ParseModelName(model string) (provider, upstream string) {
	provider, upstream, found := strings.Cut(model, "/")
	if !found {
		return "", model
	}
	return provider, upstream
}
