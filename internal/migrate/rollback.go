package migrate

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ─── Rollback Manager ───────────────────────────────────────────────────────

// Snapshot captures the live migration state at a point in time: the config
// plus the breaker view. Checkpoints and rollback history entries are built
// from these.
type Snapshot struct {
	Config  Config          `json:"config"`
	Breaker BreakerSnapshot `json:"breaker"`
	TakenAt time.Time       `json:"taken_at"`
}

// RollbackEntry is one record in the append-only rollback history. Previous
// holds the state that was live when the rollback fired, for audit.
type RollbackEntry struct {
	ID       string    `json:"id"`
	At       time.Time `json:"at"`
	Reason   string    `json:"reason"`
	Previous Snapshot  `json:"previous"`
}

// RollbackSummary is the condensed view reported by health checks.
type RollbackSummary struct {
	Rollbacks   int       `json:"rollbacks"`
	Checkpoints int       `json:"checkpoints"`
	LastReason  string    `json:"last_reason,omitempty"`
	LastAt      time.Time `json:"last_at,omitempty"`
}

// RollbackManager stores state checkpoints and restores the most recent one
// on rollback. History is append-only; each checkpoint can be consumed by
// exactly one rollback.
type RollbackManager struct {
	mu          sync.Mutex
	checkpoints []Snapshot
	current     Snapshot
	hasCurrent  bool
	history     []RollbackEntry
	now         func() time.Time // injectable clock for testing
}

// NewRollbackManager creates an empty rollback manager.
func NewRollbackManager() *RollbackManager {
	return &RollbackManager{now: time.Now}
}

// Checkpoint stores a known-good state snapshot and makes it the current
// state.
func (rm *RollbackManager) Checkpoint(s Snapshot) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if s.TakenAt.IsZero() {
		s.TakenAt = rm.now()
	}
	rm.checkpoints = append(rm.checkpoints, s)
	rm.current = s
	rm.hasCurrent = true
}

// Rollback restores the most recent checkpoint and appends an audit entry
// recording the state that was live when the rollback fired. With no
// checkpoint left to restore it is a no-op: it logs "nothing to roll back"
// and reports ok=false rather than failing.
func (rm *RollbackManager) Rollback(reason string, live Snapshot) (Snapshot, RollbackEntry, bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if len(rm.checkpoints) == 0 {
		log.Printf("[migrate] rollback requested (%s): nothing to roll back", reason)
		return Snapshot{}, RollbackEntry{}, false
	}

	restored := rm.checkpoints[len(rm.checkpoints)-1]
	rm.checkpoints = rm.checkpoints[:len(rm.checkpoints)-1]
	rm.current = restored
	rm.hasCurrent = true

	entry := RollbackEntry{
		ID:       uuid.New().String(),
		At:       rm.now(),
		Reason:   reason,
		Previous: live,
	}
	rm.history = append(rm.history, entry)
	log.Printf("[migrate] rolled back (%s) to checkpoint taken %s", reason, restored.TakenAt.Format(time.RFC3339))
	return restored, entry, true
}

// CurrentState returns the live snapshot, if one has been recorded.
func (rm *RollbackManager) CurrentState() (Snapshot, bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.current, rm.hasCurrent
}

// History returns a copy of the rollback history, oldest first.
func (rm *RollbackManager) History() []RollbackEntry {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	out := make([]RollbackEntry, len(rm.history))
	copy(out, rm.history)
	return out
}

// Summary returns the condensed rollback view for health reporting.
func (rm *RollbackManager) Summary() RollbackSummary {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	s := RollbackSummary{
		Rollbacks:   len(rm.history),
		Checkpoints: len(rm.checkpoints),
	}
	if n := len(rm.history); n > 0 {
		s.LastReason = rm.history[n-1].Reason
		s.LastAt = rm.history[n-1].At
	}
	return s
}
