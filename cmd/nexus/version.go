package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"meridian-hq/nexus/pkg/cli"
	"meridian-hq/nexus/pkg/telemetry/health"
)

var (
	// Version is the semantic version (set by build flags)
	Version = "0.1.0"
	// GitCommit is the git commit hash (set by build flags)
	GitCommit = "unknown"
	// BuildDate is the build timestamp (set by build flags)
	BuildDate = "unknown"
)

var versionFlags struct {
	output string
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print detailed version information including Git commit and build date.`,
	RunE:  printVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	addOutputFlag(versionCmd, &versionFlags.output)
}

func versionInfo() health.VersionInfo {
	return health.NewVersionInfo(Version, GitCommit, BuildDate)
}

func printVersion(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(versionFlags.output)
	if err != nil {
		return err
	}

	info := versionInfo()
	out := cmd.OutOrStdout()
	if format != cli.FormatText {
		table := &cli.Table{Headers: []string{"VERSION", "COMMIT", "BUILD DATE", "GO"}}
		table.AddRow(info.Version, info.Commit, info.BuildTime, info.GoVersion)
		return cli.Write(out, format, info, table)
	}

	fmt.Fprintf(out, "Nexus %s\n", info.Version)
	fmt.Fprintf(out, "Git Commit: %s\n", info.Commit)
	fmt.Fprintf(out, "Build Date: %s\n", info.BuildTime)
	fmt.Fprintf(out, "Go Version: %s\n", info.GoVersion)
	fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	return nil
}
