package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"meridian-hq/nexus/pkg/cli"
)

var healthFlags struct {
	output  string
	timeout time.Duration
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe every configured provider",
	Long: `Send a model-list request to every configured provider and report which
ones answer with a 2xx status. Exits non-zero when any provider is
unhealthy.

Examples:
  nexus health
  nexus health --output json --timeout 5s`,
	RunE: checkHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)

	addOutputFlag(healthCmd, &healthFlags.output)
	addTimeoutFlag(healthCmd, &healthFlags.timeout)
}

func checkHealth(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(healthFlags.output)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		return err
	}

	gw, err := newGateway(cfg, cmd.ErrOrStderr())
	if err != nil {
		return cli.NewCommandError("health", err)
	}
	defer gw.CloseAll()

	ctx, cancel := context.WithTimeout(cmd.Context(), healthFlags.timeout)
	defer cancel()

	results := gw.HealthCheckAll(ctx)

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	unhealthy := 0
	table := &cli.Table{Headers: []string{"PROVIDER", "HEALTHY"}}
	for _, name := range names {
		if !results[name] {
			unhealthy++
		}
		table.AddRow(name, strconv.FormatBool(results[name]))
	}
	if err := cli.Write(cmd.OutOrStdout(), format, results, table); err != nil {
		return err
	}

	if unhealthy > 0 {
		return cli.NewCommandError("health", fmt.Errorf("%d of %d providers unhealthy", unhealthy, len(results)))
	}
	return nil
}
