// Package sqlite provides SQLite-based persistent audit storage for genforge.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/genforge/genforge/internal/domain"
	"github.com/genforge/genforge/internal/migrate"
)

// DB wraps a SQLite connection with WAL mode and migrations. It implements
// migrate.AuditSink so rollbacks survive process restarts.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/audit.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "audit.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Connection pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// Rollback audit trail. previous_state is the JSON-encoded snapshot
		// that was live when the rollback fired.
		`CREATE TABLE IF NOT EXISTS rollback_events (
			id             TEXT PRIMARY KEY,
			at             INTEGER NOT NULL,
			reason         TEXT NOT NULL,
			previous_state TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rollback_at ON rollback_events(at)`,

		// One row per routed generation execution.
		`CREATE TABLE IF NOT EXISTS generation_runs (
			id          TEXT PRIMARY KEY,
			entity      TEXT NOT NULL,
			pipeline    TEXT NOT NULL,
			canary      BOOLEAN DEFAULT 0,
			success     BOOLEAN NOT NULL,
			duration_ms INTEGER NOT NULL,
			at          INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_at ON generation_runs(at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_entity ON generation_runs(entity)`,

		// Key-value store for daemon state (last applied settings, markers).
		`CREATE TABLE IF NOT EXISTS store_info (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Rollback Audit ─────────────────────────────────────────────────────────

// RecordRollback persists one rollback entry. Satisfies migrate.AuditSink.
func (d *DB) RecordRollback(e migrate.RollbackEntry) error {
	previous, err := json.Marshal(e.Previous)
	if err != nil {
		return fmt.Errorf("encode previous state: %w", err)
	}
	_, err = d.db.Exec(
		`INSERT INTO rollback_events (id, at, reason, previous_state)
		 VALUES (?, ?, ?, ?)`,
		e.ID, e.At.Unix(), e.Reason, string(previous),
	)
	return err
}

// ListRollbacks returns the most recent rollback entries, newest first.
// A non-positive limit defaults to 50.
func (d *DB) ListRollbacks(limit int) ([]migrate.RollbackEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.db.Query(
		`SELECT id, at, reason, previous_state
		 FROM rollback_events ORDER BY at DESC, id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []migrate.RollbackEntry
	for rows.Next() {
		var e migrate.RollbackEntry
		var at int64
		var previous string
		if err := rows.Scan(&e.ID, &at, &e.Reason, &previous); err != nil {
			return nil, err
		}
		e.At = time.Unix(at, 0)
		if err := json.Unmarshal([]byte(previous), &e.Previous); err != nil {
			return nil, fmt.Errorf("decode previous state for %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ─── Generation Runs ────────────────────────────────────────────────────────

// RecordRun persists one routed generation execution.
func (d *DB) RecordRun(run domain.GenerationRun) error {
	_, err := d.db.Exec(
		`INSERT INTO generation_runs (id, entity, pipeline, canary, success, duration_ms, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Entity, run.Pipeline, run.Canary, run.Success,
		run.Duration.Milliseconds(), run.At.Unix(),
	)
	return err
}

// ListRuns returns the most recent generation runs, newest first.
// A non-positive limit defaults to 50.
func (d *DB) ListRuns(limit int) ([]domain.GenerationRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.db.Query(
		`SELECT id, entity, pipeline, canary, success, duration_ms, at
		 FROM generation_runs ORDER BY at DESC, id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.GenerationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// RunsForEntity returns the recorded runs for one entity, newest first.
func (d *DB) RunsForEntity(entity string, limit int) ([]domain.GenerationRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.db.Query(
		`SELECT id, entity, pipeline, canary, success, duration_ms, at
		 FROM generation_runs WHERE entity = ? ORDER BY at DESC, id LIMIT ?`,
		entity, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.GenerationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// PipelineStats is the per-pipeline aggregate over recorded runs.
type PipelineStats struct {
	Pipeline  string  `json:"pipeline"`
	Runs      int64   `json:"runs"`
	Failures  int64   `json:"failures"`
	AvgMillis float64 `json:"avg_duration_ms"`
}

// RunStats aggregates recorded runs grouped by pipeline.
func (d *DB) RunStats() ([]PipelineStats, error) {
	rows, err := d.db.Query(
		`SELECT pipeline,
		        COUNT(*),
		        SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END),
		        COALESCE(AVG(duration_ms), 0)
		 FROM generation_runs GROUP BY pipeline ORDER BY pipeline`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []PipelineStats
	for rows.Next() {
		var s PipelineStats
		if err := rows.Scan(&s.Pipeline, &s.Runs, &s.Failures, &s.AvgMillis); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// ─── Store Info ─────────────────────────────────────────────────────────────

// SetInfo stores a key-value pair in store_info.
func (d *DB) SetInfo(key, value string) error {
	_, err := d.db.Exec(
		`INSERT INTO store_info (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, value,
	)
	return err
}

// GetInfo retrieves a value from store_info.
func (d *DB) GetInfo(key string) (string, error) {
	var value string
	err := d.db.QueryRow(`SELECT value FROM store_info WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*domain.GenerationRun, error) {
	var run domain.GenerationRun
	var durationMS, at int64

	err := s.Scan(&run.ID, &run.Entity, &run.Pipeline, &run.Canary,
		&run.Success, &durationMS, &at)
	if err == sql.ErrNoRows {
		return nil, nil // Not found, no error
	}
	if err != nil {
		return nil, err
	}

	run.Duration = time.Duration(durationMS) * time.Millisecond
	run.At = time.Unix(at, 0)
	return &run, nil
}
