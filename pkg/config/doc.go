// Package config provides configuration management for the Nexus gateway.
//
// This package loads, validates and manages configuration from YAML files
// with environment variable overrides. JSON files are accepted as well.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a file only:
//     cfg, err := config.LoadConfig("nexus.yaml")
//
//  2. From a file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("nexus.yaml")
//
// # Providers and Tokens
//
// Providers and tokens are ordered lists. Each entry is either a mapping or a
// legacy pipe-separated line:
//
//	providers:
//	  - name: openai
//	    base_url: https://api.openai.com/v1
//	    api_key: sk-...
//	  - "local|http://127.0.0.1:11434/v1|unused"
//	tokens:
//	  - "ci|tok-ci"
//
// Lines that are blank or start with "#" are skipped. A line with the wrong
// number of fields is an error.
//
// # Environment Variable Overrides
//
// Environment variables use the NEXUS_ prefix:
//
//   - NEXUS_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - NEXUS_LOG_LEVEL and NEXUS_LOG_FORMAT override telemetry.logging
//   - NEXUS_PROVIDER_<NAME>_API_KEY overrides one provider's api_key
//
// Environment variables always take precedence over file-based configuration.
//
// # Hot Reload
//
// Watcher observes the configuration file and runs a callback after each
// burst of changes, debounced.
package config
