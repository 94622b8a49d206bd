package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// envPrefix prefixes every environment override.
const envPrefix = "NEXUS_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// JSON files are accepted as well since JSON is valid YAML.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes configuration from YAML bytes and applies defaults without
// validating.
func Parse(data []byte) (*Config, error) {
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

func parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables always take
// precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	ApplyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies NEXUS_* environment variables.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("NEXUS_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("NEXUS_LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("NEXUS_LOG_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("NEXUS_MAX_RESPONSE_SIZE"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Gateway.MaxResponseSize = i
		} else {
			cfg.warn(fmt.Sprintf("ignoring NEXUS_MAX_RESPONSE_SIZE=%q: %v", val, err))
		}
	}
	if val := os.Getenv("NEXUS_STREAM_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Gateway.StreamTimeout = d
		} else {
			cfg.warn(fmt.Sprintf("ignoring NEXUS_STREAM_TIMEOUT=%q: %v", val, err))
		}
	}
	if val := os.Getenv("NEXUS_NON_STREAM_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Gateway.NonStreamTimeout = d
		} else {
			cfg.warn(fmt.Sprintf("ignoring NEXUS_NON_STREAM_TIMEOUT=%q: %v", val, err))
		}
	}
	if val := os.Getenv("NEXUS_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}

	for i := range cfg.Providers {
		applyProviderEnvOverrides(&cfg.Providers[i])
	}
}

// applyProviderEnvOverrides applies NEXUS_PROVIDER_<NAME>_API_KEY and
// NEXUS_PROVIDER_<NAME>_BASE_URL for one provider.
func applyProviderEnvOverrides(p *ProviderConfig) {
	key := envPrefix + "PROVIDER_" + envName(p.Name)
	if val := os.Getenv(key + "_API_KEY"); val != "" {
		p.APIKey = val
	}
	if val := os.Getenv(key + "_BASE_URL"); val != "" {
		p.BaseURL = val
	}
}

// envName upper-cases a provider name and maps non-alphanumerics to "_".
func envName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
}
