package rules

import (
	"fmt"

	"veedor/internal/domain"
)

// TemporalMonotonicity flags source-reported timestamps that move backwards
// between consecutive observations. Unparsable timestamps skip the check
// rather than failing: the timestamp field is unvalidated source data.
type TemporalMonotonicity struct{}

func (TemporalMonotonicity) ID() string { return "temporal_monotonicity" }

func (TemporalMonotonicity) Enabled(cfg Config) bool {
	return cfg.Enabled && cfg.TemporalMonotonicity.Enabled
}

func (TemporalMonotonicity) Apply(in Input) []domain.Alert {
	if in.Previous == nil {
		return nil
	}
	currentTS, ok := parseSourceTimestamp(in.Current.TimestampSource)
	if !ok {
		return nil
	}
	previousTS, ok := parseSourceTimestamp(in.Previous.TimestampSource)
	if !ok {
		return nil
	}
	if !currentTS.Before(previousTS) {
		return nil
	}
	return []domain.Alert{{
		Type:     "Timestamp Regression",
		Severity: domain.SeverityMedium,
		Justification: fmt.Sprintf(
			"source timestamp moved backwards: previous=%q current=%q",
			in.Previous.TimestampSource, in.Current.TimestampSource,
		),
		Department:  in.Current.Geography.Name,
		RuleID:      TemporalMonotonicity{}.ID(),
		SnapshotRef: in.Current.Ref,
	}}
}
