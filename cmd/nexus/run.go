package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"meridian-hq/nexus/pkg/cli"
	"meridian-hq/nexus/pkg/config"
	"meridian-hq/nexus/pkg/server"
	"meridian-hq/nexus/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gateway server",
	Long: `Start the gateway with the specified configuration.

The server listens on the configured address and serves the OpenAI-compatible
API until it receives SIGINT or SIGTERM, then drains in-flight requests.
A second signal exits immediately.

Examples:
  # Start with ./config.yaml
  nexus run

  # Start with a custom config
  nexus run --config /etc/nexus/config.yaml

  # Override listen address
  nexus run --listen 0.0.0.0:8080

  # Validate config without starting server
  nexus run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	path := configPath()
	if err := config.Initialize(ctx, path); err != nil {
		return cli.NewConfigError(path, err.Error())
	}
	cfg := config.GetConfig()

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
		Redact:    cfg.Telemetry.Logging.RedactEnabled(),
		File:      cfg.Telemetry.Logging.File,
	})
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	if runFlags.dryRun {
		for _, w := range cfg.Warnings() {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	srv, err := server.New(cfg, server.Options{
		ConfigPath: path,
		Logger:     logger,
		Version:    versionInfo(),
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	logger.Slog().Info("nexus starting",
		"version", Version,
		"config", path,
		"listen_address", cfg.Server.ListenAddress,
		"providers", len(cfg.Providers),
	)

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	logger.Slog().Info("nexus stopped")
	return nil
}
