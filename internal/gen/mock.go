package gen

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/genforge/genforge/internal/domain"
)

// ─── Mock Executor (for testing without touching the filesystem) ────────────

// MockExecutor implements domain.PipelineExecutor for tests. It records the
// entities it ran and can be told to fail specific ones.
type MockExecutor struct {
	pipeline domain.Pipeline
	Delay    time.Duration   // simulated execution time
	FailFor  map[string]bool // entities whose runs fail

	mu       sync.Mutex
	executed []string
}

func NewMockExecutor(p domain.Pipeline) *MockExecutor {
	return &MockExecutor{pipeline: p, FailFor: make(map[string]bool)}
}

func (m *MockExecutor) Pipeline() domain.Pipeline { return m.pipeline }

func (m *MockExecutor) Execute(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return domain.GenerationResult{}, ctx.Err()
		case <-time.After(m.Delay):
		}
	}

	m.mu.Lock()
	m.executed = append(m.executed, req.Entity)
	m.mu.Unlock()

	if m.FailFor[req.Entity] {
		return domain.GenerationResult{}, fmt.Errorf("mock failure for %q", req.Entity)
	}
	return domain.GenerationResult{
		Entity:   req.Entity,
		Pipeline: m.pipeline,
		Files:    []string{req.Schema.Table + ".go"},
		Duration: m.Delay,
	}, nil
}

// Executed returns the entities run so far, in order.
func (m *MockExecutor) Executed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.executed))
	copy(out, m.executed)
	return out
}
