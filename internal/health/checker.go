// Package health provides automated health checks with auto-recovery.
// Three checks run every 60 seconds.
package health

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/genforge/genforge/internal/infra/metrics"
	"github.com/genforge/genforge/internal/infra/sqlite"
	"github.com/genforge/genforge/internal/migrate"
)

// Check defines a single health check with optional recovery action.
type Check struct {
	Name      string
	CheckFn   func(ctx context.Context) error
	RecoverFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	Recovered bool      `json:"recovered,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker runs periodic health checks with auto-recovery.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
}

// NewChecker creates a health checker with the standard 3 checks: audit
// store reachability, output directory writability, and migration state.
func NewChecker(db *sqlite.DB, ctrl *migrate.Controller, outDir string) *Checker {
	return &Checker{
		interval: 60 * time.Second,
		checks: []Check{
			{
				Name: "audit_store",
				CheckFn: func(ctx context.Context) error {
					return db.Ping()
				},
				// SQLite recovers on its own via WAL replay.
			},
			{
				Name: "output_dir",
				CheckFn: func(ctx context.Context) error {
					return checkOutputDir(outDir)
				},
				RecoverFn: func(ctx context.Context) error {
					return os.MkdirAll(outDir, 0755)
				},
			},
			{
				Name: "migration",
				CheckFn: func(ctx context.Context) error {
					h, err := ctrl.HealthCheck()
					if err != nil {
						return err
					}
					if h.SystemHealth == migrate.HealthUnhealthy {
						return fmt.Errorf("circuit breaker is %s", h.Breaker.State)
					}
					return nil
				},
				// Closing the breaker again is an operator decision.
			},
		},
	}
}

// Run starts the health check loop. Call in a goroutine.
func (c *Checker) Run(ctx context.Context) {
	// Run immediately on start
	c.runAll(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runAll(ctx)
		}
	}
}

func (c *Checker) runAll(ctx context.Context) {
	statuses := make([]Status, len(c.checks))
	for i, check := range c.checks {
		s := Status{
			Name:      check.Name,
			CheckedAt: time.Now(),
		}
		err := check.CheckFn(ctx)
		if err != nil && check.RecoverFn != nil {
			// Attempt recovery, then verify it actually worked.
			if rerr := check.RecoverFn(ctx); rerr == nil {
				if err = check.CheckFn(ctx); err == nil {
					s.Recovered = true
					metrics.HealthRecoveries.WithLabelValues(check.Name).Inc()
				}
			}
		}
		if err != nil {
			s.Error = err.Error()
			metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(0)
		} else {
			s.Healthy = true
			metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(1)
		}
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}

// ─── Check Implementations ──────────────────────────────────────────────────

func checkOutputDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("check output dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output path %s is not a directory", dir)
	}
	probe, err := os.CreateTemp(dir, ".genforge-probe-*")
	if err != nil {
		return fmt.Errorf("output dir not writable: %w", err)
	}
	probe.Close()
	os.Remove(probe.Name())
	return nil
}
