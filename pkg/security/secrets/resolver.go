package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// refPattern matches ${secret:name} references.
var refPattern = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// Resolver looks secrets up across providers in order and caches the
// results.
type Resolver struct {
	providers []Provider
	cache     *Cache
	logger    *slog.Logger
}

// NewResolver creates a resolver. Providers are tried in order.
func NewResolver(providers []Provider, cache *Cache, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{providers: providers, cache: cache, logger: logger}
}

// GetSecret returns the first value any supporting provider yields.
func (r *Resolver) GetSecret(ctx context.Context, name string) (string, error) {
	if r.cache != nil {
		if value, ok := r.cache.Get(name); ok {
			return value, nil
		}
	}

	var lastErr error
	for _, p := range r.providers {
		if !p.Supports(name) {
			continue
		}
		value, err := p.GetSecret(ctx, name)
		if err != nil {
			lastErr = err
			r.logger.Debug("Secret provider lookup failed",
				"provider", p.Name(),
				"name", redactName(name),
				"error", err,
			)
			continue
		}
		if r.cache != nil {
			r.cache.Set(name, value)
		}
		return value, nil
	}

	if lastErr != nil {
		return "", fmt.Errorf("failed to get secret %q: %w", name, lastErr)
	}
	return "", fmt.Errorf("%w: %q (no provider supports it)", ErrNotFound, name)
}

// HasReferences reports whether s contains ${secret:...}.
func HasReferences(s string) bool {
	return refPattern.MatchString(s)
}

// Resolve replaces every ${secret:name} in s. Unresolvable references are
// left in place and reported together.
func (r *Resolver) Resolve(ctx context.Context, s string) (string, error) {
	var errs []error
	out := refPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSpace(refPattern.FindStringSubmatch(match)[1])
		value, err := r.GetSecret(ctx, name)
		if err != nil {
			errs = append(errs, err)
			return match
		}
		return value
	})
	return out, errors.Join(errs...)
}

// Refresh drops cached values so the next lookup hits the providers.
func (r *Resolver) Refresh() {
	if r.cache != nil {
		r.cache.Purge()
	}
}

func redactName(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
