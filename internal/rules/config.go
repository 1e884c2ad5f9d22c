package rules

import (
	"encoding/json"

	"veedor/internal/domain"
)

// Toggle enables or disables a rule that needs no thresholds.
type Toggle struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// ArithmeticConfig tunes the candidate-sum check. Tolerance is the absolute
// vote delta allowed between sum(candidates) and valid_votes before an alert
// fires; 0 demands exact agreement.
type ArithmeticConfig struct {
	Enabled   bool `yaml:"enabled" json:"enabled"`
	Tolerance int  `yaml:"tolerance" json:"tolerance"`
}

// AtypicalConfig tunes the z-score outlier check. The rule is skipped until
// MinHistory prior snapshots exist for the source.
type AtypicalConfig struct {
	Enabled         bool    `yaml:"enabled" json:"enabled"`
	ZScoreThreshold float64 `yaml:"zscore_threshold" json:"zscore_threshold"`
	MinHistory      int     `yaml:"min_history" json:"min_history"`
}

// RelativeConfig tunes the vote-share shift check, in percentage points.
type RelativeConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	ThresholdPct float64 `yaml:"threshold_pct" json:"threshold_pct"`
}

// ScrutinyConfig tunes the completion-percentage jump check, in percentage
// points between consecutive observations.
type ScrutinyConfig struct {
	Enabled     bool    `yaml:"enabled" json:"enabled"`
	MaxDeltaPct float64 `yaml:"max_delta_pct" json:"max_delta_pct"`
}

// Config holds every rule's thresholds and enabled flags. No rule hardcodes
// a threshold: defaults live here and operators override them in the config
// file.
type Config struct {
	// Enabled is the global switch; when false no rule runs regardless of
	// its own flag.
	Enabled bool `yaml:"enabled" json:"enabled"`

	AccumulatedCount      Toggle           `yaml:"accumulated_count" json:"accumulated_count"`
	TemporalMonotonicity  Toggle           `yaml:"temporal_monotonicity" json:"temporal_monotonicity"`
	ArithmeticConsistency ArithmeticConfig `yaml:"arithmetic_consistency" json:"arithmetic_consistency"`
	AtypicalVariation     AtypicalConfig   `yaml:"atypical_variation" json:"atypical_variation"`
	ImplicitRewrite       Toggle           `yaml:"implicit_rewrite" json:"implicit_rewrite"`
	RelativeVariation     RelativeConfig   `yaml:"relative_variation" json:"relative_variation"`
	ScrutinyJump          ScrutinyConfig   `yaml:"scrutiny_jump" json:"scrutiny_jump"`
	TotalsDiscrepancy     Toggle           `yaml:"totals_discrepancy" json:"totals_discrepancy"`
	TurnoutImpossible     Toggle           `yaml:"turnout_impossible" json:"turnout_impossible"`
}

// DefaultConfig returns the documented defaults: everything enabled, exact
// arithmetic agreement, 3-sigma outliers after 5 observations, 10pp share
// shifts, 5pp scrutiny jumps.
func DefaultConfig() Config {
	return Config{
		Enabled:               true,
		AccumulatedCount:      Toggle{Enabled: true},
		TemporalMonotonicity:  Toggle{Enabled: true},
		ArithmeticConsistency: ArithmeticConfig{Enabled: true, Tolerance: 0},
		AtypicalVariation:     AtypicalConfig{Enabled: true, ZScoreThreshold: 3.0, MinHistory: 5},
		ImplicitRewrite:       Toggle{Enabled: true},
		RelativeVariation:     RelativeConfig{Enabled: true, ThresholdPct: 10.0},
		ScrutinyJump:          ScrutinyConfig{Enabled: true, MaxDeltaPct: 5.0},
		TotalsDiscrepancy:     Toggle{Enabled: true},
		TurnoutImpossible:     Toggle{Enabled: true},
	}
}

// Hash digests the canonical JSON form of the config so reports can state
// exactly which thresholds produced them.
func (c Config) Hash() string {
	canonical, err := json.Marshal(c)
	if err != nil {
		// Config contains only scalars; marshal cannot fail in practice.
		return ""
	}
	return domain.ComputeContentHash(canonical)
}
