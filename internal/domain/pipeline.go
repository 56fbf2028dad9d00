// Package domain holds the core types shared across genforge layers:
// pipelines, schemas, generation requests/results, and sentinel errors.
// It has no dependencies outside the standard library.
package domain

import "fmt"

// ─── Pipeline ───────────────────────────────────────────────────────────────

// Pipeline identifies one of the two generation backends.
type Pipeline int

const (
	PipelineLegacy Pipeline = iota // pre-existing backend, safety fallback
	PipelineNew                    // candidate backend being rolled out
)

// String returns the wire/CLI name of the pipeline.
func (p Pipeline) String() string {
	switch p {
	case PipelineLegacy:
		return "legacy"
	case PipelineNew:
		return "new"
	default:
		return "unknown"
	}
}

// ParsePipeline converts a wire/CLI name into a Pipeline.
func ParsePipeline(s string) (Pipeline, error) {
	switch s {
	case "legacy":
		return PipelineLegacy, nil
	case "new":
		return PipelineNew, nil
	default:
		return PipelineLegacy, fmt.Errorf("%w: %q", ErrPipelineUnknown, s)
	}
}
