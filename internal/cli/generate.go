package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/genforge/genforge/internal/daemon"
	"github.com/genforge/genforge/internal/gen"
	"github.com/genforge/genforge/internal/migrate"
)

func init() {
	generateCmd.Flags().StringVar(&genDSN, "dsn", "", "Database DSN to introspect (overrides config)")
	generateCmd.Flags().StringVar(&genDriver, "driver", "", "Database driver: sqlite, postgres, mysql (overrides config)")
	generateCmd.Flags().StringVar(&genOut, "out", "", "Output directory for generated files (overrides config)")
	generateCmd.Flags().StringVar(&genPackage, "package", "", "Package name for generated files (overrides config)")
	generateCmd.Flags().StringVar(&genPipeline, "pipeline", "", "Force one pipeline for this run: legacy or new")
	generateCmd.Flags().IntVar(&genPercentage, "percentage", -1, "New-pipeline rollout percentage for this run (0-100)")
	rootCmd.AddCommand(generateCmd)
}

var (
	genDSN        string
	genDriver     string
	genOut        string
	genPackage    string
	genPipeline   string
	genPercentage int
)

var generateCmd = &cobra.Command{
	Use:   "generate [tables...]",
	Short: "Generate data-access code for database tables",
	Long: `Introspect the configured database and generate one model per table.
With no arguments every table is generated; otherwise only the named ones.
Each table is routed through the migration controller, so the rollout
percentage, overrides, and circuit breaker all apply.`,
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}

	// Override config from flags
	if genDSN != "" {
		cfg.Database.DSN = genDSN
	}
	if genDriver != "" {
		cfg.Database.Driver = genDriver
	}
	if genOut != "" {
		cfg.Generate.OutDir = genOut
	}
	if genPackage != "" {
		cfg.Generate.Package = genPackage
	}
	if genPipeline != "" {
		if _, err := migrate.ParseOverride(genPipeline); err != nil {
			return err
		}
		cfg.Migration["manual_override"] = genPipeline
	}
	if genPercentage >= 0 {
		cfg.Migration["new_pipeline_percentage"] = genPercentage
	}

	// Invalid migration settings must fail before any file is written.
	d, err := daemon.NewWithConfig(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	if d.Source == nil {
		return fmt.Errorf("no database configured — pass --dsn or set [database] in genforge.toml")
	}

	ctx := context.Background()
	dialect := cfg.PlaceholderDialect()

	var report gen.Report
	if len(args) == 0 {
		report, err = d.Runner.GenerateAll(ctx, d.Source, cfg.Generate.Package, cfg.Generate.OutDir, dialect)
	} else {
		report, err = d.Runner.GenerateTables(ctx, d.Source, args, cfg.Generate.Package, cfg.Generate.OutDir, dialect)
	}
	if err != nil {
		return err
	}

	printReport(report)

	if len(report.Errors) > 0 {
		return fmt.Errorf("%d of %d tables failed", len(report.Errors), len(report.Results)+len(report.Errors))
	}
	return nil
}

func printReport(report gen.Report) {
	if len(report.Results) == 0 && len(report.Errors) == 0 {
		fmt.Println("No tables to generate.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tPIPELINE\tFILES\tSTATUS")
	for _, res := range report.Results {
		fmt.Fprintf(w, "%s\t%s\t%d\tok\n", res.Entity, res.Pipeline, len(res.Files))
	}
	for _, e := range report.Errors {
		fmt.Fprintf(w, "%s\t-\t-\t%v\n", e.Entity, e.Err)
	}
	w.Flush()
}
