/*
Package cli provides helpers shared by the nexus commands.

Output Formatting:

Commands that print results accept --output text|json|csv. Text and CSV
render a Table; JSON renders the structured value:

	format, err := cli.ParseFormat(flagValue)
	if err != nil {
		return err
	}
	table := &cli.Table{Headers: []string{"ID", "OWNED BY"}}
	table.AddRow("openai/gpt-4o", "openai")
	return cli.Write(os.Stdout, format, models, table)

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

Errors:

ConfigError and CommandError carry enough context for a one-line message;
ExitCode maps them to the process exit status.
*/
package cli
