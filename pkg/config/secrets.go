package config

import (
	"context"
	"fmt"
	"log/slog"

	"meridian-hq/nexus/pkg/security/secrets"
)

// NewSecretResolver builds the resolver for ${secret:name} references: the
// secrets directory first when set, then the environment.
func NewSecretResolver(cfg SecretsConfig, logger *slog.Logger) (*secrets.Resolver, error) {
	var chain []secrets.Provider
	if cfg.Dir != "" {
		fp, err := secrets.NewFileProvider(cfg.Dir)
		if err != nil {
			return nil, err
		}
		chain = append(chain, fp)
	}
	chain = append(chain, secrets.NewEnvProvider(cfg.EnvPrefix))

	cache, err := secrets.NewCache(secrets.CacheConfig{TTL: cfg.CacheTTL})
	if err != nil {
		return nil, fmt.Errorf("failed to create secret cache: %w", err)
	}
	return secrets.NewResolver(chain, cache, logger), nil
}

// ResolveSecrets replaces secret references in provider API keys and token
// values in place.
func (c *Config) ResolveSecrets(ctx context.Context, r *secrets.Resolver) error {
	for i := range c.Providers {
		p := &c.Providers[i]
		if !secrets.HasReferences(p.APIKey) {
			continue
		}
		value, err := r.Resolve(ctx, p.APIKey)
		if err != nil {
			return fmt.Errorf("providers[%d].api_key: %w", i, err)
		}
		p.APIKey = value
	}
	for i := range c.Tokens {
		t := &c.Tokens[i]
		if !secrets.HasReferences(t.Token) {
			continue
		}
		value, err := r.Resolve(ctx, t.Token)
		if err != nil {
			return fmt.Errorf("tokens[%d].token: %w", i, err)
		}
		t.Token = value
	}
	return nil
}

// Load reads the file with environment overrides and resolves secret
// references. It is the loader used by the server and the CLI.
func Load(ctx context.Context, path string, r *secrets.Resolver) (*Config, error) {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, err
	}
	if r == nil {
		r, err = NewSecretResolver(cfg.Security.Secrets, nil)
		if err != nil {
			return nil, err
		}
	}
	if err := cfg.ResolveSecrets(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to resolve secrets: %w", err)
	}
	return cfg, nil
}
