package rules

import (
	"fmt"
	"math"

	"veedor/internal/domain"
)

// AtypicalVariation flags total-vote deltas that are statistical outliers
// against the source's own history. The delta between the current and
// previous snapshot is normalized by the standard deviation of historical
// deltas; the rule is skipped until enough history exists for the deviation
// to mean anything.
type AtypicalVariation struct{}

func (AtypicalVariation) ID() string { return "atypical_variation" }

func (AtypicalVariation) Enabled(cfg Config) bool {
	return cfg.Enabled && cfg.AtypicalVariation.Enabled
}

func (AtypicalVariation) Apply(in Input) []domain.Alert {
	if in.Previous == nil {
		return nil
	}
	minHistory := in.Config.AtypicalVariation.MinHistory
	if len(in.History) < minHistory || minHistory < 2 {
		return nil
	}

	deltas := historicalDeltas(in.History)
	if len(deltas) < 2 {
		return nil
	}
	mean, stddev := meanStddev(deltas)
	if stddev == 0 {
		return nil
	}

	currentDelta := float64(in.Current.Totals.TotalVotes - in.Previous.Totals.TotalVotes)
	zscore := (currentDelta - mean) / stddev
	threshold := in.Config.AtypicalVariation.ZScoreThreshold
	if math.Abs(zscore) <= threshold {
		return nil
	}
	return []domain.Alert{{
		Type:     "Atypical Vote Variation",
		Severity: domain.SeverityMedium,
		Justification: fmt.Sprintf(
			"total-vote delta is a statistical outlier: delta=%.0f mean=%.2f stddev=%.2f zscore=%.2f threshold=%.2f history=%d",
			currentDelta, mean, stddev, zscore, threshold, len(in.History),
		),
		Department:  in.Current.Geography.Name,
		RuleID:      AtypicalVariation{}.ID(),
		SnapshotRef: in.Current.Ref,
	}}
}

// historicalDeltas computes consecutive total-vote deltas over the prior
// series, oldest first.
func historicalDeltas(history []domain.Snapshot) []float64 {
	if len(history) < 2 {
		return nil
	}
	deltas := make([]float64, 0, len(history)-1)
	for i := 1; i < len(history); i++ {
		deltas = append(deltas, float64(history[i].Totals.TotalVotes-history[i-1].Totals.TotalVotes))
	}
	return deltas
}

func meanStddev(values []float64) (float64, float64) {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}
