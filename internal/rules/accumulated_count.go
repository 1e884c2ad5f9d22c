package rules

import (
	"fmt"

	"veedor/internal/domain"
)

// AccumulatedCount flags candidate vote counts that decreased between
// consecutive snapshots. Accumulated counts are monotonically non-decreasing
// within an election cycle, so any regression is a High-severity finding.
type AccumulatedCount struct{}

func (AccumulatedCount) ID() string { return "accumulated_count" }

func (AccumulatedCount) Enabled(cfg Config) bool {
	return cfg.Enabled && cfg.AccumulatedCount.Enabled
}

func (AccumulatedCount) Apply(in Input) []domain.Alert {
	if in.Previous == nil {
		return nil
	}

	var alerts []domain.Alert
	for _, current := range in.Current.Candidates {
		previous, ok := in.Previous.CandidateBySlot(current.Slot)
		if !ok {
			continue
		}
		if current.Votes >= previous.Votes {
			continue
		}
		label := current.Name
		if label == "" {
			label = fmt.Sprintf("slot %d", current.Slot)
		}
		alerts = append(alerts, domain.Alert{
			Type:     "Vote Count Decrease",
			Severity: domain.SeverityHigh,
			Justification: fmt.Sprintf(
				"accumulated votes decreased for %s: slot=%d previous=%d current=%d delta=%d",
				label, current.Slot, previous.Votes, current.Votes, current.Votes-previous.Votes,
			),
			Department:  in.Current.Geography.Name,
			RuleID:      AccumulatedCount{}.ID(),
			SnapshotRef: in.Current.Ref,
		})
	}
	return alerts
}
