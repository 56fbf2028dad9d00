package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Schema source errors
	ErrTableNotFound     = errors.New("table not found in source schema")
	ErrNoColumns         = errors.New("table has no columns")
	ErrUnsupportedDriver = errors.New("unsupported schema source driver")

	// Pipeline errors
	ErrPipelineUnknown = errors.New("unknown pipeline")
	ErrNoSchema        = errors.New("generation request carries no schema")
	ErrRenderFailed    = errors.New("template rendering failed")
	ErrFormatFailed    = errors.New("generated source failed formatting")

	// Migration controller errors
	ErrOverrideUnknown   = errors.New("unknown manual override")
	ErrOutcomeUnrouted   = errors.New("outcome reported for an entity that was never routed")
	ErrNothingToRollBack = errors.New("nothing to roll back")
)
