package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/genforge/genforge/internal/daemon"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset migration state to defaults",
	Long: `Reset the migration controller to its default configuration.

Counters, rollback history, and the circuit breaker are cleared, and a
fresh initial checkpoint is taken. The audit store is left untouched.`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	d.Ctrl.Reset()
	cfg := d.Ctrl.Config()
	fmt.Printf("Migration state reset: %d%% new pipeline, override %s\n",
		cfg.NewPipelinePercentage, cfg.ManualOverride)
	return nil
}
