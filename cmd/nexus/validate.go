package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"meridian-hq/nexus/pkg/cli"
	"meridian-hq/nexus/pkg/config"
)

var validateFlags struct {
	output string
	strict bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load the configuration file with environment overrides and secret
references resolved, validate it, and print a summary.

Warnings (for example an empty token list, which leaves the gateway open, or
an unparseable supported_models pattern) are printed but do not fail
validation unless --strict is given.

Examples:
  # Validate ./config.yaml
  nexus validate

  # Validate a specific file and fail on warnings
  nexus validate --config /etc/nexus/config.yaml --strict

  # Machine-readable summary
  nexus validate --output json`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	addOutputFlag(validateCmd, &validateFlags.output)
	validateCmd.Flags().BoolVar(&validateFlags.strict, "strict", false, "treat warnings as errors")
}

// configSummary is the structured output of nexus validate.
type configSummary struct {
	Path            string   `json:"path"`
	ListenAddress   string   `json:"listen_address"`
	Providers       []string `json:"providers"`
	Tokens          int      `json:"tokens"`
	SupportedModels int      `json:"supported_models"`
	TLS             bool     `json:"tls"`
	Metrics         bool     `json:"metrics"`
	Tracing         bool     `json:"tracing"`
	Warnings        []string `json:"warnings"`
}

func summarize(path string, cfg *config.Config) configSummary {
	names := make([]string, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		names = append(names, p.Name)
	}
	warnings := cfg.Warnings()
	if warnings == nil {
		warnings = []string{}
	}
	return configSummary{
		Path:            path,
		ListenAddress:   cfg.Server.ListenAddress,
		Providers:       names,
		Tokens:          len(cfg.Tokens),
		SupportedModels: len(cfg.SupportedModels),
		TLS:             cfg.Security.TLS.Enabled,
		Metrics:         cfg.Telemetry.Metrics.Enabled,
		Tracing:         cfg.Telemetry.Tracing.Enabled,
		Warnings:        warnings,
	}
}

func validateConfig(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(validateFlags.output)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		return err
	}
	summary := summarize(configPath(), cfg)

	out := cmd.OutOrStdout()
	if format == cli.FormatText {
		fmt.Fprintf(out, "✓ Configuration valid: %s\n", summary.Path)
		fmt.Fprintf(out, "  Listen address:   %s\n", summary.ListenAddress)
		fmt.Fprintf(out, "  Providers:        %d %v\n", len(summary.Providers), summary.Providers)
		fmt.Fprintf(out, "  Tokens:           %d\n", summary.Tokens)
		fmt.Fprintf(out, "  Supported models: %d patterns\n", summary.SupportedModels)
		fmt.Fprintf(out, "  TLS:              %t\n", summary.TLS)
		for _, w := range summary.Warnings {
			fmt.Fprintf(out, "! %s\n", w)
		}
	} else {
		table := &cli.Table{Headers: []string{"FIELD", "VALUE"}}
		table.AddRow("path", summary.Path)
		table.AddRow("listen_address", summary.ListenAddress)
		table.AddRow("providers", strconv.Itoa(len(summary.Providers)))
		table.AddRow("tokens", strconv.Itoa(summary.Tokens))
		table.AddRow("supported_models", strconv.Itoa(summary.SupportedModels))
		table.AddRow("tls", strconv.FormatBool(summary.TLS))
		table.AddRow("warnings", strconv.Itoa(len(summary.Warnings)))
		if err := cli.Write(out, format, summary, table); err != nil {
			return err
		}
	}

	if validateFlags.strict && len(summary.Warnings) > 0 {
		return cli.NewConfigError(summary.Path, fmt.Sprintf("%d warning(s) with --strict", len(summary.Warnings)))
	}
	return nil
}
