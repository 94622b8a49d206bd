package providers

import (
	"testing"
	"time"

	gwproviders "meridian-hq/nexus/pkg/providers"
)

// TestEndpoint returns an endpoint named name pointing at ms.
func TestEndpoint(name string, ms *MockServer) gwproviders.Endpoint {
	return gwproviders.Endpoint{
		Name:    name,
		BaseURL: ms.BaseURL(),
		APIKey:  "sk-test-" + name,
	}
}

// TestClientConfig returns connection tunables with short timeouts and a
// single discovery attempt so failure paths finish quickly.
func TestClientConfig() gwproviders.ClientConfig {
	cfg := gwproviders.DefaultClientConfig()
	cfg.NonStreamTimeout = 2 * time.Second
	cfg.StreamTimeout = 5 * time.Second
	cfg.DiscoveryTimeout = time.Second
	cfg.HealthCheckTimeout = time.Second
	cfg.DiscoveryAttempts = 1
	cfg.FailureCooldown = time.Second
	return cfg
}

// StartMockServer starts a mock upstream that is closed with the test.
func StartMockServer(t *testing.T, models ...string) *MockServer {
	t.Helper()
	ms := NewMockServer(models...)
	t.Cleanup(ms.Close)
	return ms
}

// WaitForCondition polls condition until it holds or timeout elapses.
func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool, message string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if condition() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s: %s", timeout, message)
		}
		<-ticker.C
	}
}
