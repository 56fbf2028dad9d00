// Package daemon manages the genforge daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/genforge/genforge/internal/migrate"
)

// Config holds all daemon configuration, loaded from genforge.toml.
type Config struct {
	API      APIConfig      `toml:"api"`
	Database DatabaseConfig `toml:"database"`
	Generate GenerateConfig `toml:"generate"`
	Audit    AuditConfig    `toml:"audit"`

	// Migration is the flat [migration] table, handed to
	// migrate.ParseSettings so TOML and API accept identical keys.
	Migration map[string]any `toml:"migration"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Metrics bool   `toml:"metrics"`
}

// DatabaseConfig names the database whose schema is generated against.
type DatabaseConfig struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// GenerateConfig controls where generated files land.
type GenerateConfig struct {
	Package string `toml:"package"`
	OutDir  string `toml:"out_dir"`
	Dialect string `toml:"dialect"`
}

// AuditConfig controls the persistent audit store.
type AuditConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	homeDir := genforgeHome()
	return Config{
		API: APIConfig{
			Host:    "127.0.0.1",
			Port:    8344,
			Metrics: true,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
		},
		Generate: GenerateConfig{
			Package: "models",
			OutDir:  filepath.Join(homeDir, "generated"),
		},
		Audit: AuditConfig{
			Enabled: true,
			Dir:     homeDir,
		},
		Migration: map[string]any{},
	}
}

// MigrationConfig parses the [migration] table. Invalid settings surface as
// *migrate.ConfigError so startup can refuse them before any work runs.
func (c Config) MigrationConfig() (migrate.Config, error) {
	return migrate.ParseSettings(c.Migration)
}

// PlaceholderDialect derives the SQL placeholder style for generated store
// code: explicit setting first, otherwise the introspection driver.
func (c Config) PlaceholderDialect() string {
	if c.Generate.Dialect != "" {
		return c.Generate.Dialect
	}
	if c.Database.Driver == "postgres" {
		return "postgres"
	}
	return ""
}

// LoadConfig reads config from ~/.genforge/genforge.toml, falling back to
// defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(genforgeHome(), "genforge.toml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // No config file yet — use defaults
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the config to ~/.genforge/genforge.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(genforgeHome(), "genforge.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// genforgeHome returns the genforge data directory.
func genforgeHome() string {
	if env := os.Getenv("GENFORGE_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".genforge")
}

// GenforgeHome is exported for use by other packages.
func GenforgeHome() string {
	return genforgeHome()
}
