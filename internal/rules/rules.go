// Package rules holds the comparison rules the audit runs over consecutive
// snapshots. Every rule is a pure function of its input: no I/O, no clock,
// no shared state. Rules never return errors — a rule that cannot evaluate
// (missing baseline, unparsable timestamp, division by zero) produces no
// alerts rather than aborting the batch.
package rules

import (
	"time"

	"veedor/internal/domain"
)

// Input carries everything one rule invocation may consult. Previous is nil
// for the first-ever snapshot of a source. History holds the prior snapshots
// for the same source, oldest first, excluding Current; only rules that need
// a statistical baseline read it.
type Input struct {
	Current  domain.Snapshot
	Previous *domain.Snapshot
	History  []domain.Snapshot
	Config   Config
}

// Rule is one independent comparison over a snapshot pair.
type Rule interface {
	ID() string
	Enabled(cfg Config) bool
	Apply(in Input) []domain.Alert
}

// Registry returns the rules in their fixed evaluation order. The order is
// part of the reproducibility contract: same inputs, same rule set, same
// output.
func Registry() []Rule {
	return []Rule{
		AccumulatedCount{},
		TemporalMonotonicity{},
		ArithmeticConsistency{},
		AtypicalVariation{},
		ImplicitRewrite{},
		RelativeVariation{},
		ScrutinyJump{},
		TotalsDiscrepancy{},
		TurnoutImpossible{},
	}
}

// EnabledIDs lists the rule IDs that would run under cfg, in registry order.
func EnabledIDs(cfg Config) []string {
	var ids []string
	for _, rule := range Registry() {
		if rule.Enabled(cfg) {
			ids = append(ids, rule.ID())
		}
	}
	return ids
}

// timestampLayouts covers the formats the electoral authority has published.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseSourceTimestamp parses a source-reported timestamp. The boolean is
// false when no known layout matches; callers skip their check in that case.
func parseSourceTimestamp(value string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
