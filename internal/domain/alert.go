package domain

// Severity grades how serious a finding is.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Alert is a typed finding produced by exactly one rule evaluation over a
// snapshot pair. Alerts are immutable; the justification always carries the
// concrete numeric values that triggered the rule so a third party can
// reproduce the finding from the same two snapshots.
type Alert struct {
	Type          string   `json:"type"`
	Severity      Severity `json:"severity"`
	Justification string   `json:"justification"`
	Department    string   `json:"department,omitempty"`
	RuleID        string   `json:"rule_id"`
	SnapshotRef   string   `json:"snapshot_ref"`
}

// Key identifies an alert for deduplication across an audit run.
func (a Alert) Key() string {
	return a.RuleID + "|" + a.Type + "|" + a.SnapshotRef + "|" + a.Department + "|" + a.Justification
}
