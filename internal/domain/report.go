package domain

import "time"

// NormalizationFailure records a document that could not be normalized. The
// audit continues past these; absence from the snapshot series must stay
// explainable.
type NormalizationFailure struct {
	SourceID string `json:"source_id"`
	Reason   string `json:"reason"`
}

// RuleDiagnostic records a rule invocation that failed internally. Never an
// alert: it reports engine health, not source behavior.
type RuleDiagnostic struct {
	RuleID      string `json:"rule_id"`
	SnapshotRef string `json:"snapshot_ref"`
	Detail      string `json:"detail"`
}

// TimeRange covers the observed timestamps included in a run.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// AuditReport is the single artifact of one audit run. It is always produced,
// even when zero alerts fired: "no findings" is itself a recorded outcome.
type AuditReport struct {
	RunID                 string                 `json:"run_id"`
	CreatedAt             time.Time              `json:"created_at"`
	ConfigHash            string                 `json:"config_hash"`
	RuleIDs               []string               `json:"rule_ids"`
	SnapshotCount         int                    `json:"snapshot_count"`
	TimeRange             TimeRange              `json:"time_range"`
	Alerts                []Alert                `json:"alerts"`
	SeverityCounts        map[Severity]int       `json:"severity_counts"`
	NormalizationFailures []NormalizationFailure `json:"normalization_failures,omitempty"`
	Diagnostics           []RuleDiagnostic       `json:"diagnostics,omitempty"`
	// ChainFailures holds integrity breaks only, never store outages.
	ChainFailures []string   `json:"chain_failures,omitempty"`
	ChainTips     []ChainTip `json:"chain_tips"`
}
