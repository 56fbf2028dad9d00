package migrate

import (
	"github.com/cespare/xxhash/v2"

	"github.com/genforge/genforge/internal/domain"
)

// ─── Routing Policy ─────────────────────────────────────────────────────────

// Decision is the outcome of routing one entity.
type Decision struct {
	Pipeline domain.Pipeline
	Canary   bool   // routed to new via the canary band
	Reason   string // which rule matched
}

// Routing decision reasons.
const (
	ReasonBreakerOpen    = "breaker-open"
	ReasonManualOverride = "manual-override"
	ReasonCanarySample   = "canary-sample"
	ReasonRollout        = "rollout-percentage"
)

// canarySalt separates the canary hash space from the rollout hash space.
// An entity's canary bucket is unrelated to its rollout bucket, so the
// canary band is additive to the rollout percentage rather than a subset
// of its low end.
const canarySalt = "canary\n"

// rolloutBucket places an entity in [0,100). xxHash64 is fixed here so the
// same entity maps to the same bucket across processes and releases — the
// partitioning must never depend on randomness or process-local hashing.
func rolloutBucket(entityID string) int {
	return int(xxhash.Sum64String(entityID) % 100)
}

func canaryBucket(entityID string) int {
	return int(xxhash.Sum64String(canarySalt+entityID) % 100)
}

// Decide maps an entity to a pipeline. Pure function of its inputs: the
// same entity under an unchanged config and breaker state always yields
// the same decision.
//
// Rule order (first match wins):
//  1. Open breaker → legacy (safety fallback always wins).
//  2. Manual override → the override's pipeline.
//  3. Canary band: salted bucket within canary_sample_rate → new.
//  4. Rollout band: bucket within new_pipeline_percentage → new, else legacy.
func Decide(entityID string, cfg Config, breaker BreakerState) Decision {
	// Rule 1: open breaker forces legacy regardless of config.
	if breaker == StateOpen {
		return Decision{Pipeline: domain.PipelineLegacy, Reason: ReasonBreakerOpen}
	}

	// Rule 2: manual override.
	if p, ok := cfg.ManualOverride.Pipeline(); ok {
		return Decision{Pipeline: p, Reason: ReasonManualOverride}
	}

	// Rule 3: canary sampling band.
	if cfg.EnableCanaryTesting && canaryBucket(entityID) < cfg.CanarySampleRate {
		return Decision{Pipeline: domain.PipelineNew, Canary: true, Reason: ReasonCanarySample}
	}

	// Rule 4: percentage rollout band.
	if rolloutBucket(entityID) < cfg.NewPipelinePercentage {
		return Decision{Pipeline: domain.PipelineNew, Reason: ReasonRollout}
	}
	return Decision{Pipeline: domain.PipelineLegacy, Reason: ReasonRollout}
}
