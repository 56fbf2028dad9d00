package migrate

import (
	"sync"
	"time"
)

// ─── Circuit Breaker ────────────────────────────────────────────────────────

// BreakerState represents the circuit breaker state.
type BreakerState int

const (
	StateClosed   BreakerState = iota // Normal operation — routing follows config
	StateOpen                         // Tripped — all traffic forced to legacy
	StateHalfOpen                     // Cooldown elapsed — next outcome decides
)

// String returns a human-readable circuit breaker state.
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerSettings configures the circuit breaker thresholds.
type BreakerSettings struct {
	FailureThreshold int           // consecutive failures to trip (default 5)
	Cooldown         time.Duration // time in OPEN before probing (default 30s)
}

// DefaultBreakerSettings returns production defaults.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	}
}

// CircuitBreaker tracks consecutive failures and forces legacy routing once
// they reach the threshold. Thread-safe for concurrent use.
//
// Reads never write: the OPEN → HALF_OPEN edge is computed from the clock,
// so State and Snapshot are side-effect free and health checks cannot move
// the breaker.
type CircuitBreaker struct {
	mu        sync.Mutex
	settings  BreakerSettings
	enabled   bool
	state     BreakerState
	failures  int // consecutive failures since last transition
	successes int // successes since last transition
	lastFail  time.Time
	trippedAt time.Time
	trips     int
	now       func() time.Time // injectable clock for testing
}

// NewCircuitBreaker creates a circuit breaker. A disabled breaker reports
// CLOSED and ignores outcomes and trips until re-enabled.
func NewCircuitBreaker(settings BreakerSettings, enabled bool) *CircuitBreaker {
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		settings: settings,
		enabled:  enabled,
		state:    StateClosed,
		now:      time.Now,
	}
}

// effectiveLocked returns the state the breaker is in right now, accounting
// for the enabled flag and an elapsed cooldown. Callers must hold cb.mu.
func (cb *CircuitBreaker) effectiveLocked() BreakerState {
	if !cb.enabled {
		return StateClosed
	}
	if cb.state == StateOpen && cb.now().Sub(cb.trippedAt) >= cb.settings.Cooldown {
		return StateHalfOpen
	}
	return cb.state
}

// transitionLocked moves to the next state and clears the per-state
// counters. Callers must hold cb.mu.
func (cb *CircuitBreaker) transitionLocked(next BreakerState) {
	cb.state = next
	cb.failures = 0
	cb.successes = 0
}

// tripLocked performs the transition into OPEN. Callers must hold cb.mu.
func (cb *CircuitBreaker) tripLocked() {
	cb.transitionLocked(StateOpen)
	cb.trippedAt = cb.now()
	cb.trips++
}

// RecordSuccess records a successful execution. In HALF_OPEN a success
// closes the breaker; in CLOSED it breaks the failure streak.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.enabled {
		return
	}
	switch cb.effectiveLocked() {
	case StateClosed:
		cb.successes++
		cb.failures = 0
	case StateHalfOpen:
		// Probe succeeded — close the circuit.
		cb.transitionLocked(StateClosed)
	case StateOpen:
		// Still cooling down; late reports do not move the breaker.
	}
}

// RecordFailure records a failed execution. Returns true exactly when this
// call performed a transition into OPEN, so two concurrent callers can never
// both observe the trip.
func (cb *CircuitBreaker) RecordFailure() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.enabled {
		return false
	}
	cb.lastFail = cb.now()

	switch cb.effectiveLocked() {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.settings.FailureThreshold {
			cb.tripLocked()
			return true
		}
	case StateHalfOpen:
		// Probe failed — back to OPEN, cooldown restarts.
		cb.tripLocked()
		return true
	case StateOpen:
	}
	return false
}

// Trip forces the breaker OPEN. Returns true when this call performed the
// transition; false when the breaker is disabled or already open.
func (cb *CircuitBreaker) Trip() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.enabled || cb.effectiveLocked() == StateOpen {
		return false
	}
	cb.tripLocked()
	return true
}

// Reset forces the breaker back to CLOSED and clears the counters and
// cooldown timer. The cumulative trip count is retained.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionLocked(StateClosed)
	cb.trippedAt = time.Time{}
}

// SetEnabled arms or disarms the breaker. Disabling does not clear internal
// state; a disabled breaker reports CLOSED and ignores outcomes.
func (cb *CircuitBreaker) SetEnabled(enabled bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.enabled = enabled
}

// State returns the current effective state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.effectiveLocked()
}

// BreakerSnapshot is a point-in-time view of the circuit breaker.
type BreakerSnapshot struct {
	Enabled    bool      `json:"enabled"`
	State      string    `json:"state"`
	Failures   int       `json:"failures"`
	Successes  int       `json:"successes"`
	TotalTrips int       `json:"total_trips"`
	TrippedAt  time.Time `json:"tripped_at,omitempty"`
}

// Snapshot returns the current breaker snapshot.
func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerSnapshot{
		Enabled:    cb.enabled,
		State:      cb.effectiveLocked().String(),
		Failures:   cb.failures,
		Successes:  cb.successes,
		TotalTrips: cb.trips,
		TrippedAt:  cb.trippedAt,
	}
}
