package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/genforge/genforge/internal/daemon"
)

var rollbackReason string

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll back to the most recent configuration checkpoint",
	Long: `Roll back the migration configuration to the most recent checkpoint.

Each successful configuration change pushes a checkpoint; rollback pops
the newest one and restores it as the live configuration.`,
	RunE: runRollback,
}

func init() {
	rollbackCmd.Flags().StringVar(&rollbackReason, "reason", "", "Reason recorded in the rollback history")
	rootCmd.AddCommand(rollbackCmd)
}

func runRollback(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	restored, ok := d.Ctrl.RollbackNow(rollbackReason)
	if !ok {
		fmt.Println("Nothing to roll back.")
		return nil
	}

	fmt.Printf("Rolled back to %d%% new pipeline (checkpoint from %s)\n",
		restored.Config.NewPipelinePercentage, restored.TakenAt.Format(time.RFC3339))
	return nil
}
