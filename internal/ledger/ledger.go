// Package ledger owns the per-source hash chain. Records are append-only:
// any edit, delete, or reorder after the fact is visible from the point of
// alteration onward when the chain is verified.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"veedor/internal/domain"
)

// ChainStore persists hash records sequentially per source. Implementations
// must never mutate or delete existing records.
type ChainStore interface {
	AppendRecord(ctx context.Context, record domain.HashRecord) error
	Records(ctx context.Context, sourceID string) ([]domain.HashRecord, error)
	Tip(ctx context.Context, sourceID string) (domain.HashRecord, error)
}

// Ledger computes content and chain hashes for snapshots and appends them to
// the store. It only ever sees normalized snapshots, never raw documents, so
// integrity verification stays decoupled from source formats.
type Ledger struct {
	store ChainStore
}

func New(store ChainStore) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("chain store is required")
	}
	return &Ledger{store: store}, nil
}

// Append hashes the snapshot, links it to the current tip, and persists the
// record as a single atomic unit: both hashes are computed before anything is
// written, so the store never holds a dangling unlinked record.
func (l *Ledger) Append(ctx context.Context, snapshot domain.Snapshot, now time.Time) (domain.HashRecord, error) {
	canonical, err := snapshot.CanonicalJSON()
	if err != nil {
		return domain.HashRecord{}, fmt.Errorf("serialize snapshot %s: %w", snapshot.Ref, err)
	}

	previousHash := domain.GenesisHash
	sequenceIndex := 0
	tip, err := l.store.Tip(ctx, snapshot.SourceID)
	switch {
	case err == nil:
		previousHash = tip.ContentHash
		sequenceIndex = tip.SequenceIndex + 1
	case errors.Is(err, domain.ErrNotFound):
		// First record for this source.
	default:
		return domain.HashRecord{}, fmt.Errorf("read chain tip for %s: %w", snapshot.SourceID, err)
	}

	contentHash := domain.ComputeContentHash(canonical)
	record := domain.HashRecord{
		SequenceIndex: sequenceIndex,
		SourceID:      snapshot.SourceID,
		ContentHash:   contentHash,
		PreviousHash:  previousHash,
		ChainHash:     domain.ComputeChainHash(previousHash, contentHash),
		SnapshotRef:   snapshot.Ref,
		CreatedAt:     now.UTC(),
	}

	if err := l.store.AppendRecord(ctx, record); err != nil {
		return domain.HashRecord{}, fmt.Errorf("append hash record %d for %s: %w", sequenceIndex, snapshot.SourceID, err)
	}
	return record, nil
}

// Verify walks a source's full chain and recomputes every link.
func (l *Ledger) Verify(ctx context.Context, sourceID string) (domain.VerificationResult, error) {
	records, err := l.store.Records(ctx, sourceID)
	if err != nil {
		return domain.VerificationResult{}, fmt.Errorf("read chain for %s: %w", sourceID, err)
	}
	return VerifyRecords(records), nil
}

// VerifyRecords recomputes each link in an ordered record sequence. A single
// broken link invalidates every record after it: FirstBreakIndex marks where
// trust ends. -1 means the chain is intact.
func VerifyRecords(records []domain.HashRecord) domain.VerificationResult {
	for i, record := range records {
		if i == 0 {
			if record.PreviousHash != domain.GenesisHash {
				return domain.VerificationResult{Valid: false, FirstBreakIndex: 0}
			}
		} else if record.PreviousHash != records[i-1].ContentHash {
			return domain.VerificationResult{Valid: false, FirstBreakIndex: i}
		}
		if record.ChainHash != domain.ComputeChainHash(record.PreviousHash, record.ContentHash) {
			return domain.VerificationResult{Valid: false, FirstBreakIndex: i}
		}
	}
	return domain.VerificationResult{Valid: true, FirstBreakIndex: -1}
}
