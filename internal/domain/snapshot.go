package domain

import (
	"encoding/json"
	"time"
)

// ElectionLevel tags the scope a snapshot was published at.
type ElectionLevel string

const (
	LevelNational   ElectionLevel = "national"
	LevelDepartment ElectionLevel = "department"
)

// RawDocument is the unmodified payload retrieved from a source at a point in
// time. The fetch collaborator produces these; the core never mutates them.
type RawDocument struct {
	SourceID    string    `json:"source_id"`
	Body        []byte    `json:"body"`
	ContentType string    `json:"content_type"`
	StatusCode  int       `json:"status_code"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

// Geography identifies the country subdivision a snapshot covers.
type Geography struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Totals holds the integer vote counts reported by the source. Percentages
// are never stored; they are recomputed from these counts when needed.
type Totals struct {
	RegisteredVoters int `json:"registered_voters"`
	ValidVotes       int `json:"valid_votes"`
	NullVotes        int `json:"null_votes"`
	BlankVotes       int `json:"blank_votes"`
	TotalVotes       int `json:"total_votes"`
}

// Progress tracks how many tally sheets (actas) the source reports as
// processed. Completion percentages are derived from these two integers.
type Progress struct {
	ProcessedUnits int `json:"processed_units"`
	TotalUnits     int `json:"total_units"`
}

// Candidate is one position in the published results. Slot uniquely
// identifies the position and is not necessarily contiguous.
type Candidate struct {
	Slot        int    `json:"slot"`
	Votes       int    `json:"votes"`
	CandidateID string `json:"candidate_id,omitempty"`
	Name        string `json:"name,omitempty"`
	Party       string `json:"party,omitempty"`
}

// Snapshot is the canonical representation derived from exactly one
// RawDocument. Instances are never updated in place: each new observation
// appends a new snapshot to history.
type Snapshot struct {
	Ref               string            `json:"ref"`
	SourceID          string            `json:"source_id"`
	ElectionLevel     ElectionLevel     `json:"election_level"`
	Geography         Geography         `json:"geography"`
	TimestampSource   string            `json:"timestamp_source"`
	TimestampObserved time.Time         `json:"timestamp_observed"`
	Totals            Totals            `json:"totals"`
	Progress          Progress          `json:"progress"`
	Candidates        []Candidate       `json:"candidates"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// CanonicalJSON serializes the snapshot with a stable field order and sorted
// map keys so identical snapshots always produce identical bytes. The hash
// chain depends on this.
func (s Snapshot) CanonicalJSON() ([]byte, error) {
	return json.Marshal(s)
}

// CandidateBySlot returns the candidate occupying a slot, if present.
func (s Snapshot) CandidateBySlot(slot int) (Candidate, bool) {
	for _, c := range s.Candidates {
		if c.Slot == slot {
			return c, true
		}
	}
	return Candidate{}, false
}

// CompletionPct recomputes the scrutiny completion percentage from the
// integer progress counters. Returns 0 when the total is unknown.
func (s Snapshot) CompletionPct() float64 {
	if s.Progress.TotalUnits <= 0 {
		return 0
	}
	return float64(s.Progress.ProcessedUnits) / float64(s.Progress.TotalUnits) * 100
}

// CandidateVoteSum adds up every candidate's votes. Order of candidates does
// not affect the result.
func (s Snapshot) CandidateVoteSum() int {
	sum := 0
	for _, c := range s.Candidates {
		sum += c.Votes
	}
	return sum
}
