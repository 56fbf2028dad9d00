package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/genforge/genforge/internal/daemon"
	"github.com/genforge/genforge/internal/migrate"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration rollout status and run statistics",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	h, err := d.Ctrl.HealthCheck()
	if err != nil {
		return fmt.Errorf("migration config is invalid: %w", err)
	}
	stats := d.Ctrl.Statistics()

	fmt.Printf("Migration %s — system %s\n\n", h.MigrationVersion, h.SystemHealth)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SETTING\tVALUE")
	fmt.Fprintf(w, "New pipeline\t%d%%\n", h.Config.NewPipelinePercentage)
	fmt.Fprintf(w, "Manual override\t%s\n", h.Config.ManualOverride)
	canary := "off"
	if h.Config.EnableCanaryTesting {
		canary = fmt.Sprintf("on (%d%% sample)", h.Config.CanarySampleRate)
	}
	fmt.Fprintf(w, "Canary testing\t%s\n", canary)
	fmt.Fprintf(w, "Circuit breaker\t%s\n", breakerLine(h.Breaker))
	fmt.Fprintf(w, "Rollbacks\t%d (%d checkpoints held)\n", h.Rollback.Rollbacks, h.Rollback.Checkpoints)
	if h.Rollback.LastReason != "" {
		fmt.Fprintf(w, "Last rollback\t%s (%s)\n", h.Rollback.LastReason, h.Rollback.LastAt.Format(time.RFC3339))
	}
	w.Flush()

	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROUTED\tLEGACY\tNEW\tCANARY\tADOPTION")
	fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%.1f%%\n",
		stats.TotalRouted, stats.RoutedLegacy, stats.RoutedNew,
		stats.CanaryRoutes, stats.AdoptionRate*100)
	w.Flush()

	if d.DB != nil {
		rows, err := d.DB.RunStats()
		if err != nil {
			return fmt.Errorf("read run stats: %w", err)
		}
		if len(rows) > 0 {
			fmt.Println()
			w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PIPELINE\tRUNS\tFAILURES\tAVG MS")
			for _, row := range rows {
				fmt.Fprintf(w, "%s\t%d\t%d\t%.0f\n", row.Pipeline, row.Runs, row.Failures, row.AvgMillis)
			}
			w.Flush()
		}
		if at, err := d.DB.GetInfo("last_serve_at"); err == nil && at != "" {
			fmt.Printf("\nDaemon last served at %s\n", at)
		}
	}
	return nil
}

func breakerLine(b migrate.BreakerSnapshot) string {
	if !b.Enabled {
		return "disabled"
	}
	if b.TotalTrips > 0 {
		return fmt.Sprintf("%s (%d trips)", b.State, b.TotalTrips)
	}
	return b.State
}
