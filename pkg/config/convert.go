package config

import (
	"meridian-hq/nexus/pkg/providers"
)

// Endpoints converts the provider list, preserving order.
func (c *Config) Endpoints() ([]providers.Endpoint, error) {
	eps := make([]providers.Endpoint, 0, len(c.Providers))
	for _, p := range c.Providers {
		ep, err := providers.NewEndpoint(p.Name, p.BaseURL, p.APIKey, p.Models)
		if err != nil {
			return nil, err
		}
		eps = append(eps, ep)
	}
	return eps, nil
}

// ClientConfig converts the gateway section into connection tunables.
func (c *Config) ClientConfig() providers.ClientConfig {
	g := c.Gateway
	return providers.ClientConfig{
		ConnectTimeout:          g.ConnectTimeout,
		TLSHandshakeTimeout:     g.TLSHandshakeTimeout,
		ResponseHeaderTimeout:   g.ResponseHeaderTimeout,
		NonStreamTimeout:        g.NonStreamTimeout,
		StreamTimeout:           g.StreamTimeout,
		DiscoveryTimeout:        g.DiscoveryTimeout,
		HealthCheckTimeout:      g.HealthCheckTimeout,
		MaxConnections:          g.MaxConnections,
		MaxKeepaliveConnections: g.MaxKeepaliveConnections,
		KeepaliveExpiry:         g.KeepaliveExpiry,
		MaxResponseSize:         g.MaxResponseSize,
		DiscoveryAttempts:       g.DiscoveryAttempts,
		DiscoveryMaxBackoff:     g.DiscoveryMaxBackoff,
		FailureCooldown:         g.FailureCooldown,
	}
}

// TokenMap returns token -> description.
func (c *Config) TokenMap() map[string]string {
	m := make(map[string]string, len(c.Tokens))
	for _, t := range c.Tokens {
		m[t.Token] = t.Description
	}
	return m
}
