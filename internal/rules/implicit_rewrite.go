package rules

import (
	"fmt"

	"veedor/internal/domain"
)

// ImplicitRewrite flags snapshots whose candidate votes changed while the
// processed tally-sheet counter did not advance. New votes are supposed to
// enter only through newly processed sheets; movement without progress means
// already-counted results were rewritten.
type ImplicitRewrite struct{}

func (ImplicitRewrite) ID() string { return "implicit_rewrite" }

func (ImplicitRewrite) Enabled(cfg Config) bool {
	return cfg.Enabled && cfg.ImplicitRewrite.Enabled
}

func (ImplicitRewrite) Apply(in Input) []domain.Alert {
	if in.Previous == nil {
		return nil
	}
	// Sources that never report progress cannot be held to it.
	if in.Current.Progress.ProcessedUnits == 0 && in.Previous.Progress.ProcessedUnits == 0 {
		return nil
	}
	deltaUnits := in.Current.Progress.ProcessedUnits - in.Previous.Progress.ProcessedUnits
	if deltaUnits > 0 {
		return nil
	}

	changed := 0
	deltaVotes := 0
	for _, current := range in.Current.Candidates {
		previous, ok := in.Previous.CandidateBySlot(current.Slot)
		if !ok {
			continue
		}
		if current.Votes != previous.Votes {
			changed++
			deltaVotes += current.Votes - previous.Votes
		}
	}
	if changed == 0 {
		return nil
	}
	return []domain.Alert{{
		Type:     "Votes Without Tally Progress",
		Severity: domain.SeverityHigh,
		Justification: fmt.Sprintf(
			"candidate votes changed while processed units did not advance: changed_slots=%d delta_votes=%d processed_previous=%d processed_current=%d",
			changed, deltaVotes, in.Previous.Progress.ProcessedUnits, in.Current.Progress.ProcessedUnits,
		),
		Department:  in.Current.Geography.Name,
		RuleID:      ImplicitRewrite{}.ID(),
		SnapshotRef: in.Current.Ref,
	}}
}
