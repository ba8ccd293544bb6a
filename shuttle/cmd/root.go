// Package cmd provides the command-line interface for Shuttle.
package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use: "shuttle",
	Short: "Shuttle analyzes the memory banking of accelerator kernels " +
		"and records every decision for inspection.",
	Long: `Shuttle analyzes the memory banking of accelerator kernels. It ` +
		`evaluates the duplicate configurations of each logical memory, ` +
		`schedules their buffer ports, and records every decision into a ` +
		`report database that can be browsed afterwards.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// Optional .env files provide defaults such as SHUTTLE_REPORT
		// and SHUTTLE_PORT.
		_ = godotenv.Load()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
