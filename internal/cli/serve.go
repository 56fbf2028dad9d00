package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/genforge/genforge/internal/daemon"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the genforge daemon",
	Long: `Start the genforge daemon with the HTTP API.

The daemon serves the migration control API, runs generation requests
through the rollout controller, and records every run in the audit store.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to listen on (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}

	if serveHost != "" {
		d.Config.API.Host = serveHost
	}
	if servePort > 0 {
		d.Config.API.Port = servePort
	}

	d.SetVersion(rootCmd.Version)
	return d.Serve(context.Background())
}
