package config

import (
	"context"
	"fmt"
	"sync"

	"meridian-hq/nexus/pkg/security/secrets"
)

var (
	// globalConfig holds the singleton configuration instance.
	globalConfig *Config

	// configMutex protects access to globalConfig.
	configMutex sync.RWMutex

	// initOnce ensures configuration is initialized only once.
	initOnce sync.Once
)

// Initialize loads configuration from the specified path with environment
// variable overrides and secret references resolved, and stores it as the
// global singleton configuration. Subsequent calls are ignored.
func Initialize(ctx context.Context, path string) error {
	var initErr error

	initOnce.Do(func() {
		cfg, err := Load(ctx, path, nil)
		if err != nil {
			initErr = err
			return
		}

		configMutex.Lock()
		globalConfig = cfg
		configMutex.Unlock()
	})

	return initErr
}

// GetConfig returns the global configuration instance, or nil if Initialize
// has not been called successfully.
//
// For testing, prefer using dependency injection with explicit Config
// instances rather than relying on the global singleton.
func GetConfig() *Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}

// SetConfig sets the global configuration instance. Intended for tests and
// for callers that load configuration themselves.
func SetConfig(cfg *Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = cfg
}

// ReloadConfig reloads the configuration from the specified path, resolving
// secrets through r (nil builds a fresh resolver). The new configuration
// replaces the global instance only if loading and validation succeed;
// otherwise the existing configuration remains unchanged.
func ReloadConfig(ctx context.Context, path string, r *secrets.Resolver) (*Config, error) {
	cfg, err := Load(ctx, path, r)
	if err != nil {
		return nil, fmt.Errorf("failed to reload configuration: %w", err)
	}

	configMutex.Lock()
	globalConfig = cfg
	configMutex.Unlock()

	return cfg, nil
}
