package rules

import (
	"fmt"

	"veedor/internal/domain"
)

// ArithmeticConsistency flags snapshots where the candidate vote sum does not
// match the reported valid-vote total beyond the configured tolerance. The
// sum is order-independent, so candidate ordering never affects the outcome.
type ArithmeticConsistency struct{}

func (ArithmeticConsistency) ID() string { return "arithmetic_consistency" }

func (ArithmeticConsistency) Enabled(cfg Config) bool {
	return cfg.Enabled && cfg.ArithmeticConsistency.Enabled
}

func (ArithmeticConsistency) Apply(in Input) []domain.Alert {
	if len(in.Current.Candidates) == 0 {
		return nil
	}

	sum := in.Current.CandidateVoteSum()
	valid := in.Current.Totals.ValidVotes
	delta := sum - valid
	if delta < 0 {
		delta = -delta
	}
	if delta <= in.Config.ArithmeticConsistency.Tolerance {
		return nil
	}
	return []domain.Alert{{
		Type:     "Arithmetic Mismatch",
		Severity: domain.SeverityHigh,
		Justification: fmt.Sprintf(
			"candidate vote sum disagrees with valid votes: sum_candidates=%d valid_votes=%d delta=%d tolerance=%d",
			sum, valid, delta, in.Config.ArithmeticConsistency.Tolerance,
		),
		Department:  in.Current.Geography.Name,
		RuleID:      ArithmeticConsistency{}.ID(),
		SnapshotRef: in.Current.Ref,
	}}
}
