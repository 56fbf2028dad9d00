package daemon

import (
	"errors"
	"testing"

	"github.com/genforge/genforge/internal/migrate"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8344 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8344)
	}
	if !cfg.API.Metrics {
		t.Error("API.Metrics should default to true")
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Generate.Package != "models" {
		t.Errorf("Generate.Package = %q, want models", cfg.Generate.Package)
	}
	if !cfg.Audit.Enabled {
		t.Error("Audit.Enabled should default to true")
	}

	// The empty [migration] table must parse to the documented defaults.
	mcfg, err := cfg.MigrationConfig()
	if err != nil {
		t.Fatalf("MigrationConfig() error: %v", err)
	}
	if mcfg != migrate.DefaultConfig() {
		t.Errorf("MigrationConfig() = %+v, want defaults", mcfg)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("GENFORGE_HOME", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Port != 8344 {
		t.Errorf("API.Port = %d, want default 8344", cfg.API.Port)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	t.Setenv("GENFORGE_HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.API.Port = 9000
	cfg.Database.Driver = "postgres"
	cfg.Database.DSN = "postgres://localhost/app"
	cfg.Migration = map[string]any{
		"new_pipeline_percentage": 25,
		"circuit_breaker_enabled": true,
	}

	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if loaded.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", loaded.API.Port)
	}
	if loaded.Database.DSN != "postgres://localhost/app" {
		t.Errorf("Database.DSN = %q, unexpected", loaded.Database.DSN)
	}

	mcfg, err := loaded.MigrationConfig()
	if err != nil {
		t.Fatalf("MigrationConfig() error: %v", err)
	}
	if mcfg.NewPipelinePercentage != 25 {
		t.Errorf("NewPipelinePercentage = %d, want 25", mcfg.NewPipelinePercentage)
	}
	if !mcfg.CircuitBreakerEnabled {
		t.Error("CircuitBreakerEnabled should survive the round trip")
	}
}

func TestMigrationConfig_Invalid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Migration = map[string]any{"new_pipeline_percentage": 150}

	_, err := cfg.MigrationConfig()
	if err == nil {
		t.Fatal("MigrationConfig() should reject out-of-range percentage")
	}
	var cfgErr *migrate.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error = %v, want *migrate.ConfigError", err)
	}
	if cfgErr.Setting != "new_pipeline_percentage" {
		t.Errorf("Setting = %q, want new_pipeline_percentage", cfgErr.Setting)
	}
}

func TestPlaceholderDialect(t *testing.T) {
	tests := []struct {
		name    string
		driver  string
		dialect string
		want    string
	}{
		{"explicit wins", "sqlite", "postgres", "postgres"},
		{"postgres driver", "postgres", "", "postgres"},
		{"sqlite driver", "sqlite", "", ""},
		{"mysql driver", "mysql", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Database.Driver = tt.driver
			cfg.Generate.Dialect = tt.dialect
			if got := cfg.PlaceholderDialect(); got != tt.want {
				t.Errorf("PlaceholderDialect() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewWithConfig_InvalidMigrationFailsFast(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Audit.Enabled = false
	cfg.Migration = map[string]any{"manual_override": "blue"}

	if _, err := NewWithConfig(cfg); err == nil {
		t.Fatal("NewWithConfig() should refuse invalid migration settings")
	}
}

func TestNewWithConfig_WiresServices(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Audit.Dir = t.TempDir()
	cfg.Generate.OutDir = t.TempDir()

	d, err := NewWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewWithConfig() error: %v", err)
	}
	defer d.Close()

	if d.Ctrl == nil || d.Runner == nil || d.Server == nil {
		t.Error("controller, runner, and server should all be wired")
	}
	if d.DB == nil {
		t.Error("audit store should be open when auditing is enabled")
	}
	if d.Health == nil {
		t.Error("health checker should be wired alongside the audit store")
	}
	if d.Source != nil {
		t.Error("schema source should be nil without a configured DSN")
	}
}

func TestNewWithConfig_AuditDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Audit.Enabled = false
	cfg.Generate.OutDir = t.TempDir()

	d, err := NewWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewWithConfig() error: %v", err)
	}
	defer d.Close()

	if d.DB != nil {
		t.Error("audit store should be nil when auditing is disabled")
	}
	if d.Health != nil {
		t.Error("health checker should be nil without an audit store")
	}
}
