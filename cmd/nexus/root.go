package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"meridian-hq/nexus/pkg/cli"
	"meridian-hq/nexus/pkg/config"
)

// configEnv names the environment variable consulted when --config is not
// given.
const configEnv = "NEXUS_CONFIG"

var (
	// Global flags
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "nexus",
	Short: "Nexus - OpenAI-compatible LLM provider gateway",
	Long: `Nexus exposes a single OpenAI-compatible API in front of any number of
OpenAI-compatible backends.

Clients address models as "<provider>/<model>"; the gateway strips the
provider prefix, forwards the request to that provider and relays the
response, streaming or not. Model lists from every provider are merged
and filtered by the configured allow-list.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit status.
func Execute() int {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default $"+configEnv+" or config.yaml)")
}

// configPath resolves the configuration file: flag, then environment, then
// ./config.yaml.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if env := os.Getenv(configEnv); env != "" {
		return env
	}
	return "config.yaml"
}

// loadConfig loads and validates the configuration for commands that do
// not serve traffic.
func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx, configPath(), nil)
	if err != nil {
		return nil, cli.NewConfigError(configPath(), err.Error())
	}
	return cfg, nil
}

// addOutputFlag registers --output on cmd.
func addOutputFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "output", "o", string(cli.FormatText), "output format: text, json, csv")
}
