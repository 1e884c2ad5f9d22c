package rules

import (
	"fmt"
	"math"

	"veedor/internal/domain"
)

// ScrutinyJump flags completion percentages that moved more than the allowed
// delta between consecutive observations, in either direction. The
// percentage is recomputed from the integer progress counters, never taken
// from the source.
type ScrutinyJump struct{}

func (ScrutinyJump) ID() string { return "scrutiny_jump" }

func (ScrutinyJump) Enabled(cfg Config) bool {
	return cfg.Enabled && cfg.ScrutinyJump.Enabled
}

func (ScrutinyJump) Apply(in Input) []domain.Alert {
	if in.Previous == nil {
		return nil
	}
	if in.Current.Progress.TotalUnits <= 0 || in.Previous.Progress.TotalUnits <= 0 {
		return nil
	}

	currentPct := in.Current.CompletionPct()
	previousPct := in.Previous.CompletionPct()
	delta := math.Abs(currentPct - previousPct)
	maxDelta := in.Config.ScrutinyJump.MaxDeltaPct
	if delta <= maxDelta {
		return nil
	}
	return []domain.Alert{{
		Type:     "Scrutiny Percentage Jump",
		Severity: domain.SeverityMedium,
		Justification: fmt.Sprintf(
			"completion percentage jumped: previous=%.2f%% (%d/%d) current=%.2f%% (%d/%d) delta=%.2fpp max=%.2fpp",
			previousPct, in.Previous.Progress.ProcessedUnits, in.Previous.Progress.TotalUnits,
			currentPct, in.Current.Progress.ProcessedUnits, in.Current.Progress.TotalUnits,
			delta, maxDelta,
		),
		Department:  in.Current.Geography.Name,
		RuleID:      ScrutinyJump{}.ID(),
		SnapshotRef: in.Current.Ref,
	}}
}
