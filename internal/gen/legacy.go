// Package gen holds the two code generation pipelines the migration
// controller routes between. The legacy pipeline is the pre-existing
// single-file generator; the staged pipeline is its replacement, emitting
// formatted model and store files with atomic writes. Both consume the same
// domain.GenerationRequest and satisfy domain.PipelineExecutor.
package gen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/genforge/genforge/internal/domain"
)

// LegacyExecutor renders one model file per entity, written as the template
// produced it. Known limitations it is being migrated away from: no store
// layer, no formatting pass, ?-only placeholders, and non-atomic writes.
type LegacyExecutor struct{}

func NewLegacyExecutor() *LegacyExecutor { return &LegacyExecutor{} }

// Pipeline identifies this executor to the router.
func (e *LegacyExecutor) Pipeline() domain.Pipeline { return domain.PipelineLegacy }

// Execute renders and writes <table>.go into the request's output directory.
func (e *LegacyExecutor) Execute(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return domain.GenerationResult{}, err
	}
	if err := checkRequest(&req); err != nil {
		return domain.GenerationResult{}, err
	}

	src, err := render(legacyTemplate, legacyContext(req))
	if err != nil {
		return domain.GenerationResult{}, err
	}

	if err := os.MkdirAll(req.OutDir, 0755); err != nil {
		return domain.GenerationResult{}, fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(req.OutDir, req.Schema.Table+".go")
	if err := os.WriteFile(path, src, 0644); err != nil {
		return domain.GenerationResult{}, fmt.Errorf("write %s: %w", path, err)
	}

	return domain.GenerationResult{
		Entity:   req.Entity,
		Pipeline: domain.PipelineLegacy,
		Files:    []string{path},
		Duration: time.Since(start),
	}, nil
}

// checkRequest validates a request and fills the defaults both pipelines
// share. Mutates req in place.
func checkRequest(req *domain.GenerationRequest) error {
	if req.Schema.Table == "" {
		return fmt.Errorf("%w: entity %q", domain.ErrNoSchema, req.Entity)
	}
	if len(req.Schema.Columns) == 0 {
		return fmt.Errorf("%w: table %q", domain.ErrNoColumns, req.Schema.Table)
	}
	if req.Entity == "" {
		req.Entity = req.Schema.Table
	}
	if req.Package == "" {
		req.Package = "models"
	}
	if req.OutDir == "" {
		req.OutDir = "."
	}
	return nil
}
