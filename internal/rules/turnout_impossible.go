package rules

import (
	"fmt"

	"veedor/internal/domain"
)

// TurnoutImpossible flags snapshots reporting more total votes than there are
// registered voters. Skipped when the source does not publish a register.
type TurnoutImpossible struct{}

func (TurnoutImpossible) ID() string { return "turnout_impossible" }

func (TurnoutImpossible) Enabled(cfg Config) bool {
	return cfg.Enabled && cfg.TurnoutImpossible.Enabled
}

func (TurnoutImpossible) Apply(in Input) []domain.Alert {
	totals := in.Current.Totals
	if totals.RegisteredVoters <= 0 {
		return nil
	}
	if totals.TotalVotes <= totals.RegisteredVoters {
		return nil
	}
	turnout := float64(totals.TotalVotes) / float64(totals.RegisteredVoters) * 100
	return []domain.Alert{{
		Type:     "Impossible Turnout",
		Severity: domain.SeverityHigh,
		Justification: fmt.Sprintf(
			"total votes exceed registered voters: total_votes=%d registered_voters=%d turnout=%.2f%%",
			totals.TotalVotes, totals.RegisteredVoters, turnout,
		),
		Department:  in.Current.Geography.Name,
		RuleID:      TurnoutImpossible{}.ID(),
		SnapshotRef: in.Current.Ref,
	}}
}
