package domain

import "time"

// ─── Generation Work Units ──────────────────────────────────────────────────

// GenerationRequest is one unit of work: generate source files for a single
// entity (table). Both pipelines consume the same request shape.
type GenerationRequest struct {
	Entity  string // entity name, also the routing identifier
	Schema  Schema
	Package string // package name for the generated files
	OutDir  string // directory the files are written into
	Dialect string // SQL placeholder dialect, "postgres" or default ?-style
}

// GenerationResult reports what a pipeline produced for one request.
type GenerationResult struct {
	Entity   string        `json:"entity"`
	Pipeline Pipeline      `json:"-"`
	Files    []string      `json:"files"`
	Duration time.Duration `json:"duration"`
}

// GenerationRun is the audit record of one routed execution, persisted by
// the audit store when one is configured.
type GenerationRun struct {
	ID       string        `json:"id"`
	Entity   string        `json:"entity"`
	Pipeline string        `json:"pipeline"`
	Canary   bool          `json:"canary"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`
	At       time.Time     `json:"at"`
}
