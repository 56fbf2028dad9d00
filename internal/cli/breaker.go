package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/genforge/genforge/internal/daemon"
)

var breakerCmd = &cobra.Command{
	Use:   "breaker",
	Short: "Control the circuit breaker",
}

var breakerTripCmd = &cobra.Command{
	Use:   "trip",
	Short: "Force the circuit breaker open",
	RunE:  runBreakerTrip,
}

var breakerResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Close the circuit breaker and clear its counters",
	RunE:  runBreakerReset,
}

func init() {
	breakerCmd.AddCommand(breakerTripCmd)
	breakerCmd.AddCommand(breakerResetCmd)
	rootCmd.AddCommand(breakerCmd)
}

func runBreakerTrip(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	d.Ctrl.TripBreaker()
	return printBreakerState(d)
}

func runBreakerReset(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	d.Ctrl.ResetBreaker()
	return printBreakerState(d)
}

func printBreakerState(d *daemon.Daemon) error {
	h, err := d.Ctrl.HealthCheck()
	if err != nil {
		return err
	}
	fmt.Printf("Circuit breaker is %s\n", h.Breaker.State)
	return nil
}
