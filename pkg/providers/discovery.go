package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// rawModel is one entry of an upstream /models response.
type rawModel struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Object  string `json:"object"`
	Created *int64 `json:"created"`
}

type modelsResponse struct {
	Data []json.RawMessage `json:"data"`
}

// ListModels returns the provider's models, prefixed with the provider name.
//
// A cached list is returned unless force is set, or the cache holds a failed
// discovery older than ClientConfig.FailureCooldown. Discovery failures are
// logged and yield an empty list.
func (c *Connection) ListModels(ctx context.Context, force bool) []ModelInfo {
	if len(c.endpoint.Models) > 0 {
		return c.declaredModels()
	}
	if c.isClosed() {
		return []ModelInfo{}
	}

	if !force {
		if models, ok := c.cachedModels(); ok {
			return models
		}
	}

	// The shared refetch is detached from any single caller's cancellation;
	// it is bounded by the per-attempt discovery timeout instead.
	ch := c.discovery.DoChan("models", func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx)), nil
	})

	select {
	case res := <-ch:
		return cloneModels(res.Val.([]ModelInfo))
	case <-ctx.Done():
		c.logger.Debug("model discovery abandoned by caller", "error", ctx.Err())
		models, _ := c.snapshot()
		return models
	}
}

// ClearCache drops the cached model list and failure state.
func (c *Connection) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models = nil
	c.cached = false
	c.lastFetch = time.Time{}
	c.lastFetchFailed = false
}

// cachedModels returns the cache unless it is missing or a failure whose
// cooldown has elapsed.
func (c *Connection) cachedModels() ([]ModelInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.cached {
		return nil, false
	}
	if c.lastFetchFailed && c.now().Sub(c.lastFetch) >= c.cfg.FailureCooldown {
		c.logger.Debug("failed discovery cooldown elapsed, refetching",
			"last_fetch", c.lastFetch,
			"cooldown", c.cfg.FailureCooldown,
		)
		return nil, false
	}
	return cloneModels(c.models), true
}

// snapshot returns whatever is cached, or an empty list.
func (c *Connection) snapshot() ([]ModelInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.cached {
		return []ModelInfo{}, false
	}
	return cloneModels(c.models), true
}

func (c *Connection) store(models []ModelInfo, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models = models
	c.cached = true
	c.lastFetch = c.now()
	c.lastFetchFailed = failed
}

// refresh runs discovery with retry and always updates the cache.
func (c *Connection) refresh(ctx context.Context) []ModelInfo {
	backoff := Backoff{
		MaxAttempts: c.cfg.DiscoveryAttempts,
		MaxDelay:    c.cfg.DiscoveryMaxBackoff,
	}

	var lastErr error
	for {
		wait, ok := backoff.Next()
		if !ok {
			break
		}
		if wait > 0 {
			c.logger.Debug("retrying model discovery",
				"attempt", backoff.Attempt(),
				"max_attempts", c.cfg.DiscoveryAttempts,
				"backoff", wait,
			)
			if err := c.sleep(ctx, wait); err != nil {
				lastErr = err
				break
			}
		}

		models, err := c.fetchOnce(ctx)
		if err == nil {
			c.store(models, false)
			c.recorder.RecordDiscovery(c.endpoint.Name, len(models), false)
			c.logger.Info("discovered models", "count", len(models))
			return cloneModels(models)
		}
		lastErr = err
		c.logger.Warn("model discovery attempt failed",
			"attempt", backoff.Attempt(),
			"max_attempts", c.cfg.DiscoveryAttempts,
			"error", err,
		)
		if ctx.Err() != nil {
			break
		}
	}

	c.store([]ModelInfo{}, true)
	c.recorder.RecordDiscovery(c.endpoint.Name, 0, true)
	c.logger.Error("model discovery failed, serving empty list",
		"attempts", backoff.Attempt(),
		"cooldown", c.cfg.FailureCooldown,
		"error", lastErr,
	)
	return []ModelInfo{}
}

// fetchOnce performs a single discovery attempt. Panics are converted to
// errors so they count as a failed attempt.
func (c *Connection) fetchOnce(ctx context.Context) (models []ModelInfo, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("discovery panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.DiscoveryTimeout)
	defer cancel()

	done, err := c.acquire(ctx)
	if err != nil {
		return nil, NewTransportError(c.endpoint.Name, err)
	}
	defer done()

	req, err := c.newRequest(ctx, http.MethodGet, c.endpoint.ModelsURL(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	start := c.now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.recorder.RecordRequest(c.endpoint.Name, "discovery", "error")
		return nil, NewTransportError(c.endpoint.Name, err)
	}
	defer resp.Body.Close()
	c.recorder.RecordLatency(c.endpoint.Name, "discovery", c.now().Sub(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.recorder.RecordRequest(c.endpoint.Name, "discovery", "error")
		return nil, NewStatusError(c.endpoint.Name, resp.StatusCode, snippet(resp.Body))
	}

	body, err := readLimited(resp.Body, resp.ContentLength, c.cfg.MaxResponseSize)
	if err != nil {
		c.recorder.RecordRequest(c.endpoint.Name, "discovery", "error")
		return nil, NewTransportError(c.endpoint.Name, err)
	}

	models, err = c.normalizeModels(body)
	if err != nil {
		c.recorder.RecordRequest(c.endpoint.Name, "discovery", "error")
		return nil, NewInvalidResponseError(c.endpoint.Name, err)
	}
	c.recorder.RecordRequest(c.endpoint.Name, "discovery", "success")
	return models, nil
}

// normalizeModels prefixes ids with the provider name, forces owned_by and
// drops duplicate ids within this provider.
func (c *Connection) normalizeModels(body []byte) ([]ModelInfo, error) {
	var parsed modelsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}

	models := make([]ModelInfo, 0, len(parsed.Data))
	seen := make(map[string]struct{}, len(parsed.Data))
	for _, raw := range parsed.Data {
		var m rawModel
		if err := json.Unmarshal(raw, &m); err != nil {
			c.logger.Debug("skipping malformed model entry", "error", err)
			continue
		}
		id := m.ID
		if id == "" {
			id = m.Model
		}
		if id == "" {
			c.logger.Debug("skipping model entry without id")
			continue
		}
		info := c.modelInfo(id)
		if m.Object != "" {
			info.Object = m.Object
		}
		info.Created = m.Created
		if _, dup := seen[info.ID]; dup {
			continue
		}
		seen[info.ID] = struct{}{}
		models = append(models, info)
	}
	return models, nil
}

func (c *Connection) modelInfo(upstream string) ModelInfo {
	return ModelInfo{
		ID:      c.endpoint.Name + "/" + upstream,
		Object:  "model",
		OwnedBy: c.endpoint.Name,
	}
}

// declaredModels lists the endpoint's configured models without any
// network call.
func (c *Connection) declaredModels() []ModelInfo {
	models := make([]ModelInfo, 0, len(c.endpoint.Models))
	seen := make(map[string]struct{}, len(c.endpoint.Models))
	for _, id := range c.endpoint.Models {
		info := c.modelInfo(id)
		if _, dup := seen[info.ID]; dup {
			continue
		}
		seen[info.ID] = struct{}{}
		models = append(models, info)
	}
	return models
}

func cloneModels(models []ModelInfo) []ModelInfo {
	out := make([]ModelInfo, len(models))
	copy(out, models)
	return out
}
