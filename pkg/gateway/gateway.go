package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"meridian-hq/nexus/pkg/providers"
)

// Gateway routes requests to providers by the "provider/model" prefix and
// aggregates model listings and health across all of them.
//
// The provider set is fixed at construction. A configuration reload builds a
// new Gateway instead of mutating this one, so lookups need no locking.
type Gateway struct {
	providers []providers.Provider
	byName    map[string]providers.Provider
	filter    *ModelFilter
	logger    *slog.Logger
	closed    atomic.Bool
}

// Option configures gateway construction.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	recorder providers.Recorder
	connOpts []providers.Option
}

// WithLogger sets the logger used by the gateway and its connections.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder passed to every connection.
func WithRecorder(r providers.Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// WithConnectionOptions appends options applied to every connection.
func WithConnectionOptions(opts ...providers.Option) Option {
	return func(o *options) {
		o.connOpts = append(o.connOpts, opts...)
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New creates a connection per endpoint. Endpoint names must be unique.
func New(endpoints []providers.Endpoint, cfg providers.ClientConfig, patterns []string, opts ...Option) (*Gateway, error) {
	o := buildOptions(opts)

	connOpts := append([]providers.Option{providers.WithLogger(o.logger)}, o.connOpts...)
	if o.recorder != nil {
		connOpts = append(connOpts, providers.WithRecorder(o.recorder))
	}

	conns := make([]providers.Provider, 0, len(endpoints))
	for _, ep := range endpoints {
		conn, err := providers.NewConnection(ep, cfg, connOpts...)
		if err != nil {
			closeAll(conns)
			return nil, fmt.Errorf("failed to create provider %q: %w", ep.Name, err)
		}
		conns = append(conns, conn)
	}

	g, err := NewWithProviders(conns, patterns, opts...)
	if err != nil {
		closeAll(conns)
		return nil, err
	}
	return g, nil
}

// NewWithProviders builds a gateway over existing providers, keeping their
// order as the registration order.
func NewWithProviders(provs []providers.Provider, patterns []string, opts ...Option) (*Gateway, error) {
	o := buildOptions(opts)

	g := &Gateway{
		providers: make([]providers.Provider, 0, len(provs)),
		byName:    make(map[string]providers.Provider, len(provs)),
		filter:    NewModelFilter(patterns, o.logger),
		logger:    o.logger,
	}
	for _, p := range provs {
		name := p.Name()
		if _, dup := g.byName[name]; dup {
			return nil, fmt.Errorf("duplicate provider name %q", name)
		}
		g.byName[name] = p
		g.providers = append(g.providers, p)
	}

	g.logger.Info("gateway initialized",
		"providers", len(g.providers),
		"model_patterns", g.filter.Len(),
	)
	return g, nil
}

// ProviderNames returns provider names in registration order.
func (g *Gateway) ProviderNames() []string {
	names := make([]string, len(g.providers))
	for i, p := range g.providers {
		names[i] = p.Name()
	}
	return names
}

// Provider returns a provider by name.
func (g *Gateway) Provider(name string) (providers.Provider, bool) {
	p, ok := g.byName[name]
	return p, ok
}

// Filter returns the model allow-list.
func (g *Gateway) Filter() *ModelFilter {
	return g.filter
}

// Resolve maps a routing name to its provider. A missing or unknown prefix
// yields a model_not_found error.
func (g *Gateway) Resolve(model string) (providers.Provider, *providers.Error) {
	name, _ := providers.ParseModelName(model)
	if name == "" {
		g.logger.Warn("model name has no provider prefix", "model", model)
		return nil, providers.NewModelNotFoundError(model)
	}
	p, ok := g.byName[name]
	if !ok {
		g.logger.Warn("no provider for model", "model", model, "provider", name)
		return nil, providers.NewModelNotFoundError(model)
	}
	return p, nil
}

// ChatCompletion validates env, resolves its provider and forwards the call.
// Every failure is a *providers.Error; unresolvable models never reach the
// network.
func (g *Gateway) ChatCompletion(ctx context.Context, env *providers.Envelope) (result *providers.ChatResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("chat completion panicked", "panic", r)
			result, err = nil, providers.NewInternalError(fmt.Errorf("panic: %v", r))
		}
	}()

	if verr := env.Validate(); verr != nil {
		return nil, verr
	}
	if g.closed.Load() {
		return nil, providers.NewInternalError(errors.New("gateway is closed"))
	}

	model, _ := env.Model()
	p, rerr := g.Resolve(model)
	if rerr != nil {
		return nil, rerr
	}

	g.logger.Info("routing chat completion", "model", model, "provider", p.Name(), "stream", env.Stream())

	result, err = p.ChatCompletion(ctx, env)
	if err != nil {
		return nil, providers.AsError(err)
	}
	return result, nil
}

// ListAllModels queries every provider concurrently and returns the filtered
// union in registration order. A failing provider contributes nothing and
// never fails the aggregate.
func (g *Gateway) ListAllModels(ctx context.Context, force bool) []providers.ModelInfo {
	slots := make([][]providers.ModelInfo, len(g.providers))

	var eg errgroup.Group
	for i, p := range g.providers {
		eg.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					g.logger.Error("model listing panicked", "provider", p.Name(), "panic", r)
					slots[i] = nil
				}
			}()
			slots[i] = p.ListModels(ctx, force)
			if len(slots[i]) == 0 {
				g.logger.Warn("provider returned no models", "provider", p.Name())
			}
			return nil
		})
	}
	_ = eg.Wait()

	var all []providers.ModelInfo
	for _, models := range slots {
		all = append(all, models...)
	}
	filtered := g.filter.Apply(all)
	if filtered == nil {
		filtered = []providers.ModelInfo{}
	}

	g.logger.Debug("aggregated models",
		"providers", len(g.providers),
		"models", len(all),
		"after_filter", len(filtered),
		"force", force,
	)
	return filtered
}

// HealthCheckAll probes every provider concurrently. A provider that fails or
// panics is reported unhealthy.
func (g *Gateway) HealthCheckAll(ctx context.Context) map[string]bool {
	results := make([]bool, len(g.providers))

	var eg errgroup.Group
	for i, p := range g.providers {
		eg.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					g.logger.Error("health check panicked", "provider", p.Name(), "panic", r)
					results[i] = false
				}
			}()
			results[i] = p.HealthCheck(ctx)
			return nil
		})
	}
	_ = eg.Wait()

	status := make(map[string]bool, len(g.providers))
	for i, p := range g.providers {
		status[p.Name()] = results[i]
	}
	return status
}

// ClearCaches drops every provider's cached models and failure state.
func (g *Gateway) ClearCaches() {
	for _, p := range g.providers {
		p.ClearCache()
	}
	g.logger.Info("model caches cleared", "providers", len(g.providers))
}

// CloseAll releases every provider's pooled connections. In-flight requests
// complete on their own; new chat requests are rejected. CloseAll is
// idempotent.
func (g *Gateway) CloseAll() error {
	if g.closed.Swap(true) {
		return nil
	}
	err := closeAll(g.providers)
	g.logger.Info("gateway closed", "providers", len(g.providers))
	return err
}

func closeAll(provs []providers.Provider) error {
	var errs []error
	for _, p := range provs {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close provider %q: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}
