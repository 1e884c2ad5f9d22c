package normalizer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"veedor/internal/domain"
)

// Normalizer maps arbitrary source JSON into the canonical snapshot schema
// using a configured field map. Given identical raw bytes and an identical
// field map it always produces a byte-identical canonical serialization; the
// hash chain's reproducibility guarantee rests on that.
type Normalizer struct {
	fm     FieldMap
	logger *slog.Logger
}

type Option func(*Normalizer)

func WithLogger(logger *slog.Logger) Option {
	return func(n *Normalizer) {
		n.logger = logger
	}
}

func New(fm FieldMap, opts ...Option) *Normalizer {
	n := &Normalizer{fm: fm}
	for _, opt := range opts {
		opt(n)
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}
	return n
}

// refNamespace scopes the deterministic snapshot refs produced below.
var refNamespace = uuid.MustParse("9c7f1c3a-52ae-4f42-9d3e-0d1f6a1e8b77")

// snapshotRef derives a stable identifier from the document identity so a
// re-run over the same raw document yields the same ref.
func snapshotRef(raw domain.RawDocument) string {
	seed := append([]byte(raw.SourceID+"|"+raw.RetrievedAt.UTC().Format(time.RFC3339Nano)+"|"), raw.Body...)
	return uuid.NewSHA1(refNamespace, seed).String()
}

// Ref returns the snapshot ref a document would normalize to, without
// normalizing it. Callers use it to recognize documents that already produced
// a chained snapshot.
func (n *Normalizer) Ref(raw domain.RawDocument) string {
	return snapshotRef(raw)
}

// Normalize converts one raw document into exactly one canonical snapshot.
// A single malformed candidate or uncoercible numeric never discards an
// otherwise valid snapshot; such values default to 0 and are recorded in
// snapshot metadata so downstream rules can explain discrepancies.
func (n *Normalizer) Normalize(raw domain.RawDocument) (domain.Snapshot, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw.Body, &payload); err != nil {
		return domain.Snapshot{}, &domain.NormalizationError{
			SourceID: raw.SourceID,
			Err:      fmt.Errorf("%w: %v", domain.ErrUnparsableDocument, err),
		}
	}

	for _, key := range n.fm.RequiredKeys {
		if _, ok := lookupPath(payload, key); !ok {
			return domain.Snapshot{}, &domain.NormalizationError{
				SourceID: raw.SourceID,
				Path:     key,
				Err:      domain.ErrMissingRequiredKey,
			}
		}
	}

	metadata := map[string]string{}

	totals := domain.Totals{
		RegisteredVoters: n.intField(payload, n.fm.RegisteredVoters, "totals.registered_voters", metadata),
		ValidVotes:       n.intField(payload, n.fm.ValidVotes, "totals.valid_votes", metadata),
		NullVotes:        n.intField(payload, n.fm.NullVotes, "totals.null_votes", metadata),
		BlankVotes:       n.intField(payload, n.fm.BlankVotes, "totals.blank_votes", metadata),
		TotalVotes:       n.intField(payload, n.fm.TotalVotes, "totals.total_votes", metadata),
	}
	if totals.TotalVotes == 0 && (totals.ValidVotes != 0 || totals.NullVotes != 0 || totals.BlankVotes != 0) {
		totals.TotalVotes = totals.ValidVotes + totals.NullVotes + totals.BlankVotes
		metadata["derived_total"] = "valid+null+blank"
	}

	progress := domain.Progress{
		ProcessedUnits: n.intField(payload, n.fm.ProcessedUnits, "progress.processed_units", metadata),
		TotalUnits:     n.intField(payload, n.fm.TotalUnits, "progress.total_units", metadata),
	}

	candidates, err := n.extractCandidates(payload, metadata)
	if err != nil {
		return domain.Snapshot{}, &domain.NormalizationError{SourceID: raw.SourceID, Err: err}
	}
	if n.fm.CandidateCount > 0 && len(candidates) != n.fm.CandidateCount {
		metadata["candidate_count_mismatch"] = fmt.Sprintf("expected=%d got=%d", n.fm.CandidateCount, len(candidates))
	}

	department := n.fm.DefaultDepartment
	if value, ok := firstValue(payload, n.fm.Department); ok {
		department = coerceString(value)
	}

	timestampSource := ""
	if value, ok := firstValue(payload, n.fm.TimestampSource); ok {
		timestampSource = coerceString(value)
	}

	level := domain.ElectionLevel(n.fm.ElectionLevel)
	if level == "" {
		level = domain.LevelNational
	}

	if len(metadata) == 0 {
		metadata = nil
	}

	return domain.Snapshot{
		Ref:             snapshotRef(raw),
		SourceID:        raw.SourceID,
		ElectionLevel:   level,
		Geography:       domain.Geography{Code: DepartmentCode(department), Name: department},
		TimestampSource: timestampSource,
		// Observed time comes from the document's retrieval instant, not the
		// wall clock, so re-normalizing the same document is reproducible.
		TimestampObserved: raw.RetrievedAt.UTC(),
		Totals:            totals,
		Progress:          progress,
		Candidates:        candidates,
		Metadata:          metadata,
	}, nil
}

// intField resolves one totals-style field, recording a coercion warning when
// a present value cannot become an integer.
func (n *Normalizer) intField(payload map[string]any, paths []string, field string, metadata map[string]string) int {
	value, ok := firstValue(payload, paths)
	if !ok {
		return 0
	}
	number, ok := coerceInt(value)
	if !ok {
		n.logger.Debug("numeric coercion failed", "field", field, "value", coerceString(value))
		metadata["coercion_warning."+field] = fmt.Sprintf("cannot coerce %q", coerceString(value))
		return 0
	}
	return number
}

// extractCandidates walks the configured roots, taking the first that yields
// a usable collection. List roots keep source order; slot-keyed object roots
// are ordered by numeric key for determinism.
func (n *Normalizer) extractCandidates(payload map[string]any, metadata map[string]string) ([]domain.Candidate, error) {
	root, ok := n.candidateRoot(payload)
	if !ok {
		return nil, domain.ErrCandidateRootNotFound
	}

	switch typed := root.(type) {
	case []any:
		candidates := make([]domain.Candidate, 0, len(typed))
		for idx, item := range typed {
			candidates = append(candidates, n.buildCandidate(item, idx, metadata))
		}
		return candidates, nil
	case map[string]any:
		keys := make([]int, 0, len(typed))
		bySlot := make(map[int]any, len(typed))
		for key, item := range typed {
			slot, err := strconv.Atoi(key)
			if err != nil {
				continue
			}
			keys = append(keys, slot)
			bySlot[slot] = item
		}
		sort.Ints(keys)
		candidates := make([]domain.Candidate, 0, len(keys))
		for _, slot := range keys {
			candidate := n.buildCandidate(bySlot[slot], slot, metadata)
			candidate.Slot = slot
			candidates = append(candidates, candidate)
		}
		return candidates, nil
	default:
		return nil, domain.ErrCandidateRootNotFound
	}
}

func (n *Normalizer) candidateRoot(payload map[string]any) (any, bool) {
	for _, path := range n.fm.CandidateRoots {
		value, ok := lookupPath(payload, path)
		if !ok {
			continue
		}
		// Some shapes nest the collection one level deeper inside a wrapper
		// object; the field map names the keys to unwrap.
		if obj, isMap := value.(map[string]any); isMap {
			for _, key := range n.fm.NestedCandidateKeys {
				if nested, hasNested := obj[key]; hasNested {
					return nested, true
				}
			}
		}
		switch value.(type) {
		case []any, map[string]any:
			return value, true
		}
	}
	return nil, false
}

// buildCandidate never fails: missing or non-numeric votes become 0 with a
// warning, and the slot falls back to the element's position.
func (n *Normalizer) buildCandidate(item any, position int, metadata map[string]string) domain.Candidate {
	candidate := domain.Candidate{Slot: position}

	obj, ok := item.(map[string]any)
	if !ok {
		// Bare scalar entries carry only a vote count.
		if votes, coerced := coerceInt(item); coerced {
			candidate.Votes = votes
		} else {
			metadata[fmt.Sprintf("coercion_warning.candidates.%d.votes", position)] = fmt.Sprintf("cannot coerce %q", coerceString(item))
		}
		return candidate
	}

	if value, present := firstValue(obj, n.fm.CandidateVotes); present {
		if votes, coerced := coerceInt(value); coerced {
			candidate.Votes = votes
		} else {
			metadata[fmt.Sprintf("coercion_warning.candidates.%d.votes", position)] = fmt.Sprintf("cannot coerce %q", coerceString(value))
		}
	}
	if value, present := firstValue(obj, n.fm.CandidateSlot); present {
		if slot, coerced := coerceInt(value); coerced {
			candidate.Slot = slot
		}
	}
	if value, present := firstValue(obj, n.fm.CandidateID); present {
		candidate.CandidateID = coerceString(value)
	}
	if value, present := firstValue(obj, n.fm.CandidateName); present {
		candidate.Name = coerceString(value)
	}
	if value, present := firstValue(obj, n.fm.CandidateParty); present {
		candidate.Party = coerceString(value)
	}
	return candidate
}
