package domain

import "context"

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// PipelineExecutor abstracts one generation backend. The migration
// controller never calls this directly — it only decides which executor
// the caller should invoke and records the reported outcome.
type PipelineExecutor interface {
	// Execute generates source files for a single entity.
	Execute(ctx context.Context, req GenerationRequest) (GenerationResult, error)

	// Pipeline identifies which backend this executor implements.
	Pipeline() Pipeline
}

// SchemaSource abstracts schema/column introspection over a live database.
// Implemented by infra/introspect for sqlite, postgres, and mysql.
type SchemaSource interface {
	// Tables lists the table names available for generation.
	Tables(ctx context.Context) ([]string, error)

	// Describe returns the normalized schema for one table.
	Describe(ctx context.Context, table string) (Schema, error)

	// Close releases the underlying database handle.
	Close() error
}
