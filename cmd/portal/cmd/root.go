package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "portal",
	Short: "FF Land login portal",
	Long: `portal serves the FF Land login card and session bootstrap.

Available commands:
  serve            Start the HTTP server
  check-profile    Report whether a calculator profile is complete
  version          Print the version

Use "portal [command] --help" for more information about a specific command.`,
	SilenceUsage: true,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
