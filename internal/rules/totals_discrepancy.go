package rules

import (
	"fmt"

	"veedor/internal/domain"
)

// TotalsDiscrepancy flags snapshots whose valid+null+blank breakdown does not
// add up to the reported total.
type TotalsDiscrepancy struct{}

func (TotalsDiscrepancy) ID() string { return "totals_discrepancy" }

func (TotalsDiscrepancy) Enabled(cfg Config) bool {
	return cfg.Enabled && cfg.TotalsDiscrepancy.Enabled
}

func (TotalsDiscrepancy) Apply(in Input) []domain.Alert {
	totals := in.Current.Totals
	if totals.TotalVotes == 0 && totals.ValidVotes == 0 && totals.NullVotes == 0 && totals.BlankVotes == 0 {
		return nil
	}
	sum := totals.ValidVotes + totals.NullVotes + totals.BlankVotes
	if sum == totals.TotalVotes {
		return nil
	}
	return []domain.Alert{{
		Type:     "Vote Breakdown Discrepancy",
		Severity: domain.SeverityHigh,
		Justification: fmt.Sprintf(
			"breakdown does not match total: valid=%d null=%d blank=%d sum=%d total_reported=%d delta=%d",
			totals.ValidVotes, totals.NullVotes, totals.BlankVotes, sum, totals.TotalVotes, totals.TotalVotes-sum,
		),
		Department:  in.Current.Geography.Name,
		RuleID:      TotalsDiscrepancy{}.ID(),
		SnapshotRef: in.Current.Ref,
	}}
}
