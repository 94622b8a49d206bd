package providers

import (
	"context"
	"net/http"
)

// HealthCheck probes the discovery endpoint. Any transport failure or non-2xx
// status yields false; it never returns an error.
func (c *Connection) HealthCheck(ctx context.Context) (healthy bool) {
	start := c.now()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("health check panicked", "panic", r)
			healthy = false
		}
		c.recorder.UpdateHealth(c.endpoint.Name, healthy)
		c.logger.Debug("health check completed",
			"healthy", healthy,
			"duration", c.now().Sub(start),
		)
	}()

	if c.isClosed() {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.HealthCheckTimeout)
	defer cancel()

	done, err := c.acquire(ctx)
	if err != nil {
		c.logger.Debug("health check found no free connection slot", "error", err)
		return false
	}
	defer done()

	req, err := c.newRequest(ctx, http.MethodGet, c.endpoint.ModelsURL(), nil)
	if err != nil {
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("health check failed", "error", err)
		return false
	}
	drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("health check returned non-2xx",
			"status", resp.StatusCode,
		)
		return false
	}
	return true
}
