// Package migrate implements the progressive migration controller that
// shifts generation traffic between the legacy and new pipelines without a
// hard cutover.
//
// Routing priority:
//  1. Open circuit breaker → legacy (safety fallback always wins)
//  2. Manual override
//  3. Canary sampling band (salted hash, additive to the rollout band)
//  4. Percentage rollout band (stable xxHash64 bucketing)
//
// Circuit breaker states:
//   - CLOSED    (normal) → consecutive failures reach threshold → OPEN
//   - OPEN      (force-legacy) → after cooldown → HALF_OPEN
//   - HALF_OPEN (probing) → success → CLOSED, failure → OPEN
//
// All state is in-memory and process-lifetime. The audit store is strictly
// additive: the controller is fully functional without one, and store
// failures never fail a caller.
package migrate

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/genforge/genforge/internal/domain"
	"github.com/genforge/genforge/internal/infra/metrics"
)

// Version is the migration mechanism revision reported by health checks.
const Version = "2"

// System health levels derived by HealthCheck.
const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// Degraded-health thresholds: the observed failure rate above which the
// system reports degraded, applied once at least minHealthSamples outcomes
// have been recorded.
const (
	warningFailureRate = 0.05
	minHealthSamples   = 20
)

// AuditSink receives rollback entries for durable audit. Optional — a nil
// sink disables persistence without affecting controller behavior.
type AuditSink interface {
	RecordRollback(e RollbackEntry) error
}

// inflightEntry tracks outstanding route calls for one entity, so outcome
// reports can be matched back to the routed pipeline.
type inflightEntry struct {
	count    int
	pipeline domain.Pipeline
	canary   bool
}

// ─── Controller ─────────────────────────────────────────────────────────────

// Controller owns the live migration config, the circuit breaker, rollback
// bookkeeping, and cumulative statistics. It is safe for concurrent use by
// any number of callers. Construct one per process (or per test) — there is
// no package-level instance.
type Controller struct {
	mu  sync.RWMutex // guards cfg
	cfg Config

	breaker  *CircuitBreaker
	rollback *RollbackManager

	inflightMu sync.Mutex
	inflight   map[string]*inflightEntry

	// Cumulative counters. Atomic so totals are exact under concurrency.
	routedLegacy      atomic.Int64
	routedNew         atomic.Int64
	canaryRoutes      atomic.Int64
	successTotal      atomic.Int64
	failureTotal      atomic.Int64
	unmatchedOutcomes atomic.Int64

	perf perfStats

	audit AuditSink
	now   func() time.Time // injectable clock for testing
}

// New creates a controller with the given config. The config is validated;
// an invalid one fails construction with *ConfigError. The initial config
// is checkpointed so a later rollback can restore it.
func New(cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		cfg:      cfg,
		breaker:  NewCircuitBreaker(DefaultBreakerSettings(), cfg.CircuitBreakerEnabled),
		rollback: NewRollbackManager(),
		inflight: make(map[string]*inflightEntry),
		now:      time.Now,
	}
	c.rollback.Checkpoint(c.liveSnapshot())
	return c, nil
}

// SetAuditSink attaches a durable sink for rollback entries.
func (c *Controller) SetAuditSink(sink AuditSink) {
	c.audit = sink
}

// liveSnapshot captures the current config and breaker view.
func (c *Controller) liveSnapshot() Snapshot {
	c.mu.RLock()
	cfg := c.cfg
	c.mu.RUnlock()
	return Snapshot{
		Config:  cfg,
		Breaker: c.breaker.Snapshot(),
		TakenAt: c.now(),
	}
}

// ─── Configuration ──────────────────────────────────────────────────────────

// Configure atomically replaces the live config. An invalid replacement is
// rejected with *ConfigError and nothing is applied. Applying a config does
// not reset the breaker, statistics, or rollback history; it does record a
// new checkpoint.
func (c *Controller) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()

	c.breaker.SetEnabled(cfg.CircuitBreakerEnabled)
	c.rollback.Checkpoint(c.liveSnapshot())
	log.Printf("[migrate] configuration applied: percentage=%d override=%s canary=%v/%d breaker=%v auto_rollback=%v",
		cfg.NewPipelinePercentage, cfg.ManualOverride, cfg.EnableCanaryTesting,
		cfg.CanarySampleRate, cfg.CircuitBreakerEnabled, cfg.AutoRollbackEnabled)
	return nil
}

// Config returns a copy of the live config.
func (c *Controller) Config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// ─── Routing ────────────────────────────────────────────────────────────────

// Route decides which pipeline runs the given entity and updates the
// routing counters. Callers must report the outcome of the executed run via
// ReportOutcome exactly once.
func (c *Controller) Route(entityID string) Decision {
	c.mu.RLock()
	cfg := c.cfg
	c.mu.RUnlock()

	d := Decide(entityID, cfg, c.breaker.State())

	switch d.Pipeline {
	case domain.PipelineNew:
		c.routedNew.Add(1)
	default:
		c.routedLegacy.Add(1)
	}
	if d.Canary {
		c.canaryRoutes.Add(1)
		metrics.CanaryRoutes.Inc()
	}
	metrics.RoutingDecisions.WithLabelValues(d.Pipeline.String()).Inc()

	c.inflightMu.Lock()
	e := c.inflight[entityID]
	if e == nil {
		e = &inflightEntry{}
		c.inflight[entityID] = e
	}
	e.count++
	e.pipeline = d.Pipeline
	e.canary = d.Canary
	c.inflightMu.Unlock()

	return d
}

// ReportOutcome records the result of one routed execution. An outcome for
// an entity that was never routed (or whose routes have all been drained)
// is logged and ignored — a lost statistics update must not abort a
// generation run.
func (c *Controller) ReportOutcome(entityID string, success bool, duration time.Duration) {
	c.inflightMu.Lock()
	e, ok := c.inflight[entityID]
	if !ok || e.count == 0 {
		c.inflightMu.Unlock()
		c.unmatchedOutcomes.Add(1)
		metrics.UnmatchedOutcomes.Inc()
		log.Printf("[migrate] %v: %q", domain.ErrOutcomeUnrouted, entityID)
		return
	}
	e.count--
	pipeline := e.pipeline
	if e.count == 0 {
		delete(c.inflight, entityID)
	}
	c.inflightMu.Unlock()

	c.mu.RLock()
	cfg := c.cfg
	c.mu.RUnlock()

	if success {
		c.successTotal.Add(1)
		c.breaker.RecordSuccess()
	} else {
		c.failureTotal.Add(1)
		metrics.GenerationFailures.WithLabelValues(pipeline.String()).Inc()
		if tripped := c.breaker.RecordFailure(); tripped {
			c.onBreakerTrip(cfg)
		}
	}

	metrics.GenerationDuration.WithLabelValues(pipeline.String()).Observe(duration.Seconds())
	if cfg.TrackPerformanceMetrics {
		c.perf.observe(duration)
	}
}

// onBreakerTrip handles a transition into OPEN: logging, metrics, and the
// automatic rollback when enabled. cfg is the config that was live when the
// trip was detected.
func (c *Controller) onBreakerTrip(cfg Config) {
	log.Printf("[migrate] circuit breaker tripped — all traffic forced to legacy pipeline")
	metrics.BreakerTrips.Inc()
	metrics.BreakerState.Set(float64(StateOpen))

	if !cfg.AutoRollbackEnabled {
		return
	}
	c.applyRollback("circuit breaker tripped")
}

// applyRollback restores the most recent checkpoint and re-applies its
// config as the live config. The breaker is left as-is: an open breaker
// stays open until cooldown or an explicit reset.
func (c *Controller) applyRollback(reason string) (Snapshot, bool) {
	restored, entry, ok := c.rollback.Rollback(reason, c.liveSnapshot())
	if !ok {
		return Snapshot{}, false
	}

	c.mu.Lock()
	c.cfg = restored.Config
	c.mu.Unlock()

	metrics.Rollbacks.Inc()
	if c.audit != nil {
		if err := c.audit.RecordRollback(entry); err != nil {
			log.Printf("[migrate] audit rollback record failed: %v", err)
		}
	}
	return restored, true
}

// ─── Manual Operations ──────────────────────────────────────────────────────

// TripBreaker forces the breaker open, as an operator action. Auto-rollback
// fires the same way it does for a failure-triggered trip.
func (c *Controller) TripBreaker() {
	c.mu.RLock()
	cfg := c.cfg
	c.mu.RUnlock()

	if tripped := c.breaker.Trip(); tripped {
		c.onBreakerTrip(cfg)
	}
}

// ResetBreaker forces the breaker closed and clears its counters.
func (c *Controller) ResetBreaker() {
	c.breaker.Reset()
	metrics.BreakerState.Set(float64(StateClosed))
	log.Printf("[migrate] circuit breaker reset to CLOSED")
}

// RollbackNow performs an operator-requested rollback to the most recent
// checkpoint. Reports ok=false when there is nothing to roll back.
func (c *Controller) RollbackNow(reason string) (Snapshot, bool) {
	if reason == "" {
		reason = "manual rollback"
	}
	return c.applyRollback(reason)
}

// ─── Health & Statistics ────────────────────────────────────────────────────

// Health is the status snapshot returned by HealthCheck.
type Health struct {
	MigrationVersion string          `json:"migration_version"`
	SystemHealth     string          `json:"system_health"`
	Config           Config          `json:"config"`
	Breaker          BreakerSnapshot `json:"circuit_breaker"`
	Rollback         RollbackSummary `json:"rollback"`
}

// HealthCheck validates the live config and derives the system health. It
// never mutates state: repeated calls without intervening operations return
// identical snapshots. An invalid live config is reported as *ConfigError,
// never silently corrected.
func (c *Controller) HealthCheck() (Health, error) {
	c.mu.RLock()
	cfg := c.cfg
	c.mu.RUnlock()

	if err := cfg.Validate(); err != nil {
		return Health{}, err
	}

	st := c.breaker.State()
	h := Health{
		MigrationVersion: Version,
		SystemHealth:     HealthHealthy,
		Config:           cfg,
		Breaker:          c.breaker.Snapshot(),
		Rollback:         c.rollback.Summary(),
	}

	failures := c.failureTotal.Load()
	outcomes := failures + c.successTotal.Load()
	switch {
	case st == StateOpen:
		h.SystemHealth = HealthUnhealthy
	case st == StateHalfOpen:
		h.SystemHealth = HealthDegraded
	case outcomes >= minHealthSamples && float64(failures)/float64(outcomes) > warningFailureRate:
		h.SystemHealth = HealthDegraded
	}
	return h, nil
}

// PerformanceMetrics aggregates execution timing when
// track_performance_metrics is enabled.
type PerformanceMetrics struct {
	Completed       int64         `json:"completed"`
	AverageDuration time.Duration `json:"average_duration"`
	MinDuration     time.Duration `json:"min_duration"`
	MaxDuration     time.Duration `json:"max_duration"`
}

// Statistics is the cumulative counter snapshot with derived rates.
type Statistics struct {
	RoutedLegacy      int64               `json:"routed_legacy_count"`
	RoutedNew         int64               `json:"routed_new_count"`
	CanaryRoutes      int64               `json:"canary_count"`
	TotalRouted       int64               `json:"total_routed"`
	SuccessTotal      int64               `json:"success_count_total"`
	FailureTotal      int64               `json:"failure_count_total"`
	UnmatchedOutcomes int64               `json:"unmatched_outcome_count"`
	AdoptionRate      float64             `json:"new_pipeline_adoption_rate"`
	CanaryHitRate     float64             `json:"canary_hit_rate"`
	Performance       *PerformanceMetrics `json:"performance_metrics,omitempty"`
}

// Statistics returns the cumulative counters and derived rates. Read-only
// and idempotent.
func (c *Controller) Statistics() Statistics {
	s := Statistics{
		RoutedLegacy:      c.routedLegacy.Load(),
		RoutedNew:         c.routedNew.Load(),
		CanaryRoutes:      c.canaryRoutes.Load(),
		SuccessTotal:      c.successTotal.Load(),
		FailureTotal:      c.failureTotal.Load(),
		UnmatchedOutcomes: c.unmatchedOutcomes.Load(),
	}
	s.TotalRouted = s.RoutedLegacy + s.RoutedNew
	if s.TotalRouted > 0 {
		s.AdoptionRate = float64(s.RoutedNew) / float64(s.TotalRouted)
		s.CanaryHitRate = float64(s.CanaryRoutes) / float64(s.TotalRouted)
	}
	if c.Config().TrackPerformanceMetrics {
		s.Performance = c.perf.snapshot()
	}
	return s
}

// RollbackHistory returns a copy of the rollback audit trail.
func (c *Controller) RollbackHistory() []RollbackEntry {
	return c.rollback.History()
}

// CurrentState returns the rollback manager's live snapshot.
func (c *Controller) CurrentState() (Snapshot, bool) {
	return c.rollback.CurrentState()
}

// Reset restores the controller to defaults: default config, closed breaker,
// empty rollback history, zeroed statistics. Intended for test isolation and
// operator tooling between scenarios.
func (c *Controller) Reset() {
	cfg := DefaultConfig()

	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()

	c.breaker.Reset()
	c.breaker.SetEnabled(cfg.CircuitBreakerEnabled)
	c.rollback = NewRollbackManager()

	c.inflightMu.Lock()
	c.inflight = make(map[string]*inflightEntry)
	c.inflightMu.Unlock()

	c.routedLegacy.Store(0)
	c.routedNew.Store(0)
	c.canaryRoutes.Store(0)
	c.successTotal.Store(0)
	c.failureTotal.Store(0)
	c.unmatchedOutcomes.Store(0)
	c.perf.reset()

	c.rollback.Checkpoint(c.liveSnapshot())
	metrics.BreakerState.Set(float64(StateClosed))
	log.Printf("[migrate] controller state reset to defaults")
}

// ─── Performance Aggregates ─────────────────────────────────────────────────

type perfStats struct {
	mu        sync.Mutex
	completed int64
	total     time.Duration
	min       time.Duration
	max       time.Duration
}

func (p *perfStats) observe(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed++
	p.total += d
	if p.min == 0 || d < p.min {
		p.min = d
	}
	if d > p.max {
		p.max = d
	}
}

func (p *perfStats) snapshot() *PerformanceMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := &PerformanceMetrics{Completed: p.completed}
	if p.completed > 0 {
		out.AverageDuration = p.total / time.Duration(p.completed)
		out.MinDuration = p.min
		out.MaxDuration = p.max
	}
	return out
}

func (p *perfStats) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = 0
	p.total = 0
	p.min = 0
	p.max = 0
}
