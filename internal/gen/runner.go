package gen

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/genforge/genforge/internal/domain"
	"github.com/genforge/genforge/internal/infra/metrics"
	"github.com/genforge/genforge/internal/migrate"
)

// RunRecorder persists per-run audit records. Optional — a nil recorder
// disables persistence without affecting generation.
type RunRecorder interface {
	RecordRun(run domain.GenerationRun) error
}

// Runner drives generation through the migration controller: route the
// entity, execute on the routed pipeline, report the outcome back exactly
// once.
type Runner struct {
	ctrl     *migrate.Controller
	legacy   domain.PipelineExecutor
	staged   domain.PipelineExecutor
	recorder RunRecorder
	now      func() time.Time // injectable clock for testing
}

func NewRunner(ctrl *migrate.Controller, legacy, staged domain.PipelineExecutor) *Runner {
	return &Runner{ctrl: ctrl, legacy: legacy, staged: staged, now: time.Now}
}

// SetRecorder attaches a durable run recorder.
func (r *Runner) SetRecorder(rec RunRecorder) { r.recorder = rec }

// GenerateOne routes and executes a single request.
func (r *Runner) GenerateOne(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	if req.Entity == "" {
		req.Entity = req.Schema.Table
	}

	decision := r.ctrl.Route(req.Entity)
	exec := r.legacy
	if decision.Pipeline == domain.PipelineNew {
		exec = r.staged
	}

	start := r.now()
	res, err := exec.Execute(ctx, req)
	elapsed := r.now().Sub(start)
	r.ctrl.ReportOutcome(req.Entity, err == nil, elapsed)

	if err == nil {
		metrics.FilesWritten.Add(float64(len(res.Files)))
	}
	r.record(domain.GenerationRun{
		ID:       uuid.New().String(),
		Entity:   req.Entity,
		Pipeline: decision.Pipeline.String(),
		Canary:   decision.Canary,
		Success:  err == nil,
		Duration: elapsed,
		At:       start,
	})

	res.Entity = req.Entity
	res.Pipeline = decision.Pipeline
	return res, err
}

// EntityError ties a failed entity to its error in a sweep report.
type EntityError struct {
	Entity string `json:"entity"`
	Err    error  `json:"-"`
}

// Report aggregates a multi-entity generation sweep.
type Report struct {
	Results []domain.GenerationResult
	Errors  []EntityError
}

// GenerateAll introspects every table of the source and generates each one,
// continuing past per-entity failures. The error return is reserved for
// schema source failures and context cancellation.
func (r *Runner) GenerateAll(ctx context.Context, src domain.SchemaSource, pkg, outDir, dialect string) (Report, error) {
	tables, err := src.Tables(ctx)
	if err != nil {
		return Report{}, err
	}
	return r.GenerateTables(ctx, src, tables, pkg, outDir, dialect)
}

// GenerateTables generates the named tables only, with the same
// continue-past-failures contract as GenerateAll.
func (r *Runner) GenerateTables(ctx context.Context, src domain.SchemaSource, tables []string, pkg, outDir, dialect string) (Report, error) {
	var report Report
	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		schema, err := src.Describe(ctx, table)
		if err != nil {
			// Never routed, so no outcome to report.
			report.Errors = append(report.Errors, EntityError{Entity: table, Err: err})
			continue
		}
		res, err := r.GenerateOne(ctx, domain.GenerationRequest{
			Entity:  table,
			Schema:  schema,
			Package: pkg,
			OutDir:  outDir,
			Dialect: dialect,
		})
		if err != nil {
			report.Errors = append(report.Errors, EntityError{Entity: table, Err: err})
			continue
		}
		report.Results = append(report.Results, res)
	}
	return report, nil
}

func (r *Runner) record(run domain.GenerationRun) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.RecordRun(run); err != nil {
		log.Printf("[gen] run audit record failed: %v", err)
	}
}
