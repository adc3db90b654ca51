package cmd

import (
	"fmt"
	"os"

	"github.com/metal-toolbox/inventory/internal/model"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel int

	logLevelName string
)

var rootCmd = &cobra.Command{
	Use:   model.AppName,
	Short: "Collect workstation inventory and serve the asset register",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		switch logLevelName {
		case "", "info":
			logLevel = model.LogLevelInfo
		case "debug":
			logLevel = model.LogLevelDebug
		case "trace":
			logLevel = model.LogLevelTrace
		default:
			return fmt.Errorf("unsupported --log-level %q, expected one of info, debug, trace", logLevelName)
		}

		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "configuration file (default is $HOME/.inventory.yml)")
	rootCmd.PersistentFlags().StringVar(&logLevelName, "log-level", "", "log level - info, debug, trace (default is log.level in the configuration)")
}
