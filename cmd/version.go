package cmd

import (
	"fmt"

	"github.com/metal-toolbox/inventory/internal/version"
	"github.com/spf13/cobra"
)

var cmdVersion = &cobra.Command{
	Use:   "version",
	Short: "Print inventory version along with dependency information.",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf(
			"commit: %s\nbranch: %s\ngit summary: %s\nbuildDate: %s\nversion: %s\nGo version: %s\nsqlite version: %s\n",
			version.GitCommit, version.GitBranch, version.GitSummary, version.BuildDate, version.AppVersion, version.GoVersion, version.SQLiteVersion)
	},
}

func init() {
	rootCmd.AddCommand(cmdVersion)
}
