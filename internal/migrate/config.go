package migrate

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/genforge/genforge/internal/domain"
)

// ─── Migration Settings ─────────────────────────────────────────────────────

// Override forces all traffic to one pipeline regardless of percentage and
// canary settings.
type Override string

const (
	OverrideNone   Override = "none"
	OverrideLegacy Override = "legacy"
	OverrideNew    Override = "new"
)

// ParseOverride converts a settings/CLI value into an Override.
func ParseOverride(s string) (Override, error) {
	switch o := Override(strings.ToLower(strings.TrimSpace(s))); o {
	case OverrideNone, OverrideLegacy, OverrideNew:
		return o, nil
	case "":
		return OverrideNone, nil
	default:
		return OverrideNone, fmt.Errorf("%w: %q", domain.ErrOverrideUnknown, s)
	}
}

// Pipeline returns the forced pipeline, if the override is active.
func (o Override) Pipeline() (domain.Pipeline, bool) {
	switch o {
	case OverrideLegacy:
		return domain.PipelineLegacy, true
	case OverrideNew:
		return domain.PipelineNew, true
	default:
		return domain.PipelineLegacy, false
	}
}

// Config is the immutable snapshot of all migration tunables. Values are
// validated at construction; a Config held by the controller is always in
// range.
type Config struct {
	NewPipelinePercentage   int      `json:"new_pipeline_percentage"`
	ManualOverride          Override `json:"manual_override"`
	EnableCanaryTesting     bool     `json:"enable_canary_testing"`
	CanarySampleRate        int      `json:"canary_sample_rate"`
	CircuitBreakerEnabled   bool     `json:"circuit_breaker_enabled"`
	TrackPerformanceMetrics bool     `json:"track_performance_metrics"`
	AutoRollbackEnabled     bool     `json:"auto_rollback_enabled"`
}

// DefaultConfig returns the documented defaults: everything routed to the
// legacy pipeline, breaker armed, all optional behavior off.
func DefaultConfig() Config {
	return Config{
		NewPipelinePercentage:   0,
		ManualOverride:          OverrideNone,
		EnableCanaryTesting:     false,
		CanarySampleRate:        0,
		CircuitBreakerEnabled:   true,
		TrackPerformanceMetrics: false,
		AutoRollbackEnabled:     false,
	}
}

// ConfigError reports a setting that failed conversion or validation.
type ConfigError struct {
	Setting string
	Value   any
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("migration setting %q: %s (got %v)", e.Setting, e.Reason, e.Value)
}

// ParseSettings builds a Config from a flat name → value mapping, as decoded
// from the [migration] table of genforge.toml or assembled by a caller.
// Missing keys take defaults; unknown keys are ignored. Numeric settings
// accept integer, whole float, and numeric string forms; boolean settings
// accept bool and "true"/"false". Any out-of-range or unconvertible value
// fails with *ConfigError and no Config is produced.
func ParseSettings(raw map[string]any) (Config, error) {
	cfg := DefaultConfig()

	for key, value := range raw {
		var err error
		switch key {
		case "new_pipeline_percentage":
			cfg.NewPipelinePercentage, err = settingInt(key, value)
		case "manual_override":
			cfg.ManualOverride, err = settingOverride(key, value)
		case "enable_canary_testing":
			cfg.EnableCanaryTesting, err = settingBool(key, value)
		case "canary_sample_rate":
			cfg.CanarySampleRate, err = settingInt(key, value)
		case "circuit_breaker_enabled":
			cfg.CircuitBreakerEnabled, err = settingBool(key, value)
		case "track_performance_metrics":
			cfg.TrackPerformanceMetrics, err = settingBool(key, value)
		case "auto_rollback_enabled":
			cfg.AutoRollbackEnabled, err = settingBool(key, value)
		default:
			// Unknown settings are ignored.
		}
		if err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate re-checks the range invariants. Used by ParseSettings, by
// Configure before applying a replacement config, and by HealthCheck.
func (c Config) Validate() error {
	if c.NewPipelinePercentage < 0 || c.NewPipelinePercentage > 100 {
		return &ConfigError{
			Setting: "new_pipeline_percentage",
			Value:   c.NewPipelinePercentage,
			Reason:  "must be between 0 and 100",
		}
	}
	if c.CanarySampleRate < 0 || c.CanarySampleRate > 100 {
		return &ConfigError{
			Setting: "canary_sample_rate",
			Value:   c.CanarySampleRate,
			Reason:  "must be between 0 and 100",
		}
	}
	switch c.ManualOverride {
	case OverrideNone, OverrideLegacy, OverrideNew:
	default:
		return &ConfigError{
			Setting: "manual_override",
			Value:   string(c.ManualOverride),
			Reason:  "must be one of none, legacy, new",
		}
	}
	return nil
}

// Settings returns the flat mapping form of the config, the inverse of
// ParseSettings. Used when writing the default config file and by the
// status API.
func (c Config) Settings() map[string]any {
	return map[string]any{
		"new_pipeline_percentage":   c.NewPipelinePercentage,
		"manual_override":           string(c.ManualOverride),
		"enable_canary_testing":     c.EnableCanaryTesting,
		"canary_sample_rate":        c.CanarySampleRate,
		"circuit_breaker_enabled":   c.CircuitBreakerEnabled,
		"track_performance_metrics": c.TrackPerformanceMetrics,
		"auto_rollback_enabled":     c.AutoRollbackEnabled,
	}
}

// ─── Setting Conversion ─────────────────────────────────────────────────────

func settingInt(key string, v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, &ConfigError{Setting: key, Value: v, Reason: "must be a whole number"}
		}
		return int(n), nil
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, &ConfigError{Setting: key, Value: v, Reason: "must be an integer"}
		}
		return parsed, nil
	default:
		return 0, &ConfigError{Setting: key, Value: v, Reason: "must be an integer"}
	}
}

func settingBool(key string, v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, &ConfigError{Setting: key, Value: v, Reason: "must be a boolean"}
		}
		return parsed, nil
	default:
		return false, &ConfigError{Setting: key, Value: v, Reason: "must be a boolean"}
	}
}

func settingOverride(key string, v any) (Override, error) {
	s, ok := v.(string)
	if !ok {
		return OverrideNone, &ConfigError{Setting: key, Value: v, Reason: "must be one of none, legacy, new"}
	}
	o, err := ParseOverride(s)
	if err != nil {
		return OverrideNone, &ConfigError{Setting: key, Value: v, Reason: "must be one of none, legacy, new"}
	}
	return o, nil
}
