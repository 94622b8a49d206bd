package main

import (
	"context"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"meridian-hq/nexus/pkg/cli"
	"meridian-hq/nexus/pkg/providers"
)

var modelsFlags struct {
	output   string
	provider string
	timeout  time.Duration
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models exposed by the configured providers",
	Long: `Query every configured provider, merge the results in provider order and
apply the supported_models allow-list, exactly as GET /v1/models does.

Providers that fail discovery are logged to stderr and contribute no models.

Examples:
  # List every model
  nexus models

  # Only one provider, as CSV
  nexus models --provider openai --output csv`,
	RunE: listModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)

	addOutputFlag(modelsCmd, &modelsFlags.output)
	addTimeoutFlag(modelsCmd, &modelsFlags.timeout)
	modelsCmd.Flags().StringVarP(&modelsFlags.provider, "provider", "p", "", "only list models of this provider")
}

func listModels(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(modelsFlags.output)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		return err
	}

	gw, err := newGateway(cfg, cmd.ErrOrStderr())
	if err != nil {
		return cli.NewCommandError("models", err)
	}
	defer gw.CloseAll()

	if modelsFlags.provider != "" {
		if _, ok := gw.Provider(modelsFlags.provider); !ok {
			return cli.NewConfigError("provider", "unknown provider "+strconv.Quote(modelsFlags.provider))
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), modelsFlags.timeout)
	defer cancel()

	models := selectModels(gw.ListAllModels(ctx, true), modelsFlags.provider)

	table := &cli.Table{Headers: []string{"ID", "OWNED BY", "CREATED"}}
	for _, m := range models {
		created := ""
		if m.Created != nil {
			created = time.Unix(*m.Created, 0).UTC().Format(time.DateOnly)
		}
		table.AddRow(m.ID, m.OwnedBy, created)
	}
	return cli.Write(cmd.OutOrStdout(), format, models, table)
}

// selectModels keeps models owned by provider; empty keeps all.
func selectModels(models []providers.ModelInfo, provider string) []providers.ModelInfo {
	out := make([]providers.ModelInfo, 0, len(models))
	for _, m := range models {
		if provider == "" || m.OwnedBy == provider {
			out = append(out, m)
		}
	}
	return out
}
