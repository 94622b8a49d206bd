package main

import (
	"io"
	"time"

	"github.com/spf13/cobra"

	"meridian-hq/nexus/pkg/cli"
	"meridian-hq/nexus/pkg/config"
	"meridian-hq/nexus/pkg/gateway"
	"meridian-hq/nexus/pkg/telemetry/logging"
)

// defaultProbeTimeout bounds nexus models and nexus health.
const defaultProbeTimeout = 30 * time.Second

// newGateway builds a standalone gateway for one-shot commands. Gateway
// logs go to w at warn level so they do not mix with command output.
func newGateway(cfg *config.Config, w io.Writer) (*gateway.Gateway, error) {
	endpoints, err := cfg.Endpoints()
	if err != nil {
		return nil, cli.NewConfigError("providers", err.Error())
	}

	logger, err := logging.New(logging.Config{
		Level:  "warn",
		Format: "text",
		Redact: true,
		Writer: w,
	})
	if err != nil {
		return nil, err
	}

	return gateway.New(endpoints, cfg.ClientConfig(), cfg.SupportedModels,
		gateway.WithLogger(logger.Slog()),
	)
}

func addTimeoutFlag(cmd *cobra.Command, target *time.Duration) {
	cmd.Flags().DurationVar(target, "timeout", defaultProbeTimeout, "overall deadline")
}
