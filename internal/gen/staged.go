package gen

import (
	"context"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/genforge/genforge/internal/domain"
)

// StagedExecutor is the replacement pipeline: it emits a model file and a
// store file per entity, runs both through go/format, and writes them
// atomically (temp file + rename) so a crash never leaves a half-written
// source file behind.
type StagedExecutor struct{}

func NewStagedExecutor() *StagedExecutor { return &StagedExecutor{} }

// Pipeline identifies this executor to the router.
func (e *StagedExecutor) Pipeline() domain.Pipeline { return domain.PipelineNew }

// Execute renders, formats, and writes <table>_model.go and <table>_store.go
// into the request's output directory.
func (e *StagedExecutor) Execute(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return domain.GenerationResult{}, err
	}
	if err := checkRequest(&req); err != nil {
		return domain.GenerationResult{}, err
	}

	model, err := renderFormatted(stagedModelTemplate, stagedModelContext(req))
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("model for %s: %w", req.Schema.Table, err)
	}
	store, err := renderFormatted(stagedStoreTemplate, stagedStoreContext(req))
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("store for %s: %w", req.Schema.Table, err)
	}

	if err := os.MkdirAll(req.OutDir, 0755); err != nil {
		return domain.GenerationResult{}, fmt.Errorf("create output dir: %w", err)
	}

	modelPath := filepath.Join(req.OutDir, req.Schema.Table+"_model.go")
	if err := writeFileAtomic(modelPath, model); err != nil {
		return domain.GenerationResult{}, fmt.Errorf("write %s: %w", modelPath, err)
	}
	storePath := filepath.Join(req.OutDir, req.Schema.Table+"_store.go")
	if err := writeFileAtomic(storePath, store); err != nil {
		return domain.GenerationResult{}, fmt.Errorf("write %s: %w", storePath, err)
	}
	files := []string{modelPath, storePath}

	return domain.GenerationResult{
		Entity:   req.Entity,
		Pipeline: domain.PipelineNew,
		Files:    files,
		Duration: time.Since(start),
	}, nil
}

// renderFormatted renders a template and runs the output through go/format,
// so generated files match what gofmt would produce.
func renderFormatted(tmpl *template.Template, ctx fileContext) ([]byte, error) {
	src, err := render(tmpl, ctx)
	if err != nil {
		return nil, err
	}
	formatted, err := format.Source(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFormatFailed, err)
	}
	return formatted, nil
}

// writeFileAtomic writes data to path via a temp file in the same directory,
// renamed into place once fully written.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
