// Package cli implements the genforge command-line interface using Cobra.
// Each subcommand maps to one migration or generation operation.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "genforge",
	Short: "genforge — schema-driven code generation with progressive rollout",
	Long: `genforge generates data-access code from live database schemas.
Two generation backends exist side by side; the migration controller decides
per table which one runs, with canary sampling, circuit-breaker fallback,
and auto-rollback.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
