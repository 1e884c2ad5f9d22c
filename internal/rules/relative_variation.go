package rules

import (
	"fmt"
	"math"

	"veedor/internal/domain"
)

// RelativeVariation flags candidates whose share of the valid vote shifted by
// more than the configured percentage points between consecutive snapshots.
// Shares are always recomputed from integer counts.
type RelativeVariation struct{}

func (RelativeVariation) ID() string { return "relative_variation" }

func (RelativeVariation) Enabled(cfg Config) bool {
	return cfg.Enabled && cfg.RelativeVariation.Enabled
}

func (RelativeVariation) Apply(in Input) []domain.Alert {
	if in.Previous == nil {
		return nil
	}
	currentSum := in.Current.CandidateVoteSum()
	previousSum := in.Previous.CandidateVoteSum()
	if currentSum <= 0 || previousSum <= 0 {
		return nil
	}

	threshold := in.Config.RelativeVariation.ThresholdPct
	var alerts []domain.Alert
	for _, current := range in.Current.Candidates {
		previous, ok := in.Previous.CandidateBySlot(current.Slot)
		if !ok {
			continue
		}
		currentShare := float64(current.Votes) / float64(currentSum) * 100
		previousShare := float64(previous.Votes) / float64(previousSum) * 100
		shift := math.Abs(currentShare - previousShare)
		if shift <= threshold {
			continue
		}
		label := current.Name
		if label == "" {
			label = fmt.Sprintf("slot %d", current.Slot)
		}
		alerts = append(alerts, domain.Alert{
			Type:     "Vote Share Shift",
			Severity: domain.SeverityMedium,
			Justification: fmt.Sprintf(
				"vote share shifted beyond threshold for %s: previous_share=%.2f%% current_share=%.2f%% shift=%.2fpp threshold=%.2fpp",
				label, previousShare, currentShare, shift, threshold,
			),
			Department:  in.Current.Geography.Name,
			RuleID:      RelativeVariation{}.ID(),
			SnapshotRef: in.Current.Ref,
		})
	}
	return alerts
}
