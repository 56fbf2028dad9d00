package daemon

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/genforge/genforge/internal/api"
	"github.com/genforge/genforge/internal/domain"
	"github.com/genforge/genforge/internal/gen"
	"github.com/genforge/genforge/internal/health"
	"github.com/genforge/genforge/internal/infra/introspect"
	_ "github.com/genforge/genforge/internal/infra/metrics" // Register Prometheus metrics
	"github.com/genforge/genforge/internal/infra/sqlite"
	"github.com/genforge/genforge/internal/migrate"
)

// Daemon is the core genforge runtime. It wires together all services.
type Daemon struct {
	Config Config
	DB     *sqlite.DB // nil when auditing is disabled
	Ctrl   *migrate.Controller
	Runner *gen.Runner
	Source domain.SchemaSource // nil without a configured DSN
	Server *api.Server
	Health *health.Checker // nil when auditing is disabled
	cancel context.CancelFunc
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration. Invalid
// [migration] settings fail construction; nothing starts half-configured.
func NewWithConfig(cfg Config) (*Daemon, error) {
	mcfg, err := cfg.MigrationConfig()
	if err != nil {
		return nil, fmt.Errorf("migration settings: %w", err)
	}

	ctrl, err := migrate.New(mcfg)
	if err != nil {
		return nil, fmt.Errorf("migration controller: %w", err)
	}

	// Audit store (additive: the controller works without one)
	var db *sqlite.DB
	if cfg.Audit.Enabled {
		dir := cfg.Audit.Dir
		if dir == "" {
			dir = genforgeHome()
		}
		db, err = sqlite.Open(dir)
		if err != nil {
			return nil, fmt.Errorf("open audit store: %w", err)
		}
		ctrl.SetAuditSink(db)
	}

	runner := gen.NewRunner(ctrl, gen.NewLegacyExecutor(), gen.NewStagedExecutor())
	if db != nil {
		runner.SetRecorder(db)
	}

	// Schema source (optional: generate endpoints refuse without one)
	var source domain.SchemaSource
	if cfg.Database.DSN != "" {
		src, err := introspect.Open(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			if db != nil {
				db.Close()
			}
			return nil, fmt.Errorf("open schema source: %w", err)
		}
		source = src
	}

	// API server
	srv := api.NewServer(ctrl, runner)
	srv.SetGenerateDefaults(cfg.Generate.Package, cfg.Generate.OutDir, cfg.PlaceholderDialect())
	if source != nil {
		srv.SetSchemaSource(source)
	}
	if db != nil {
		srv.SetStore(db)
	}
	if cfg.API.Metrics {
		srv.EnableMetrics()
	}

	d := &Daemon{
		Config: cfg,
		DB:     db,
		Ctrl:   ctrl,
		Runner: runner,
		Source: source,
		Server: srv,
	}

	// Health checker needs the audit store for its reachability check
	if db != nil {
		d.Health = health.NewChecker(db, ctrl, cfg.Generate.OutDir)
		srv.SetHealthChecker(d.Health)
	}

	return d, nil
}

// SetVersion sets the version string reported by the API.
func (d *Daemon) SetVersion(v string) { d.Server.SetVersion(v) }

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	// Health checker runs whenever auditing gave it a store
	if d.Health != nil {
		go d.Health.Run(ctx)
	}

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // Long for full-schema sweeps
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		_ = httpServer.Shutdown(shutdownCtx)
		if d.Source != nil {
			if err := d.Source.Close(); err != nil {
				log.Printf("[daemon] schema source close error: %v", err)
			}
		}
		if d.DB != nil {
			_ = d.DB.Close()
		}
	}()

	mcfg := d.Ctrl.Config()
	fmt.Printf("genforge serving on http://%s\n", addr)
	fmt.Printf("  Migration: %d%% new pipeline (override %s)\n",
		mcfg.NewPipelinePercentage, mcfg.ManualOverride)
	if d.Config.Audit.Enabled {
		fmt.Printf("  Audit: %s\n", d.Config.Audit.Dir)
	}
	if d.Config.API.Metrics {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}

	if d.DB != nil {
		// Marker lets `genforge status` report when a daemon last served.
		if err := d.DB.SetInfo("last_serve_at", time.Now().UTC().Format(time.RFC3339)); err != nil {
			log.Printf("[daemon] store info write failed: %v", err)
		}
	}

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Source != nil {
		_ = d.Source.Close()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}
