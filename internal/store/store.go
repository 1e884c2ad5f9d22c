// Package store persists the pipeline's entities. Stores are interface-driven
// to keep the engine testable and to allow swapping in-memory, filesystem, or
// Postgres persistence without rewiring audit logic. Every entity is
// append-only: new observations produce new rows/files, nothing is updated in
// place.
package store

import (
	"context"

	"veedor/internal/domain"
)

// RawDocumentStore holds unmodified source documents as handed over by the
// fetch collaborator.
type RawDocumentStore interface {
	SaveRaw(ctx context.Context, doc domain.RawDocument) error
	// ListRaw returns every stored document ordered by source, then retrieval
	// time. The audit consumes them in this order.
	ListRaw(ctx context.Context) ([]domain.RawDocument, error)
}

// SnapshotStore holds canonical normalized snapshots.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snapshot domain.Snapshot) error
	// SnapshotsBySource returns a source's snapshots ordered by observation
	// time, oldest first.
	SnapshotsBySource(ctx context.Context, sourceID string) ([]domain.Snapshot, error)
}

// ChainStore holds hash records sequentially per source. AppendRecord must be
// atomic: a record is either fully persisted or absent, never dangling.
type ChainStore interface {
	AppendRecord(ctx context.Context, record domain.HashRecord) error
	Records(ctx context.Context, sourceID string) ([]domain.HashRecord, error)
	// Tip returns the latest record or domain.ErrNotFound for an empty chain.
	Tip(ctx context.Context, sourceID string) (domain.HashRecord, error)
}

// ReportStore holds one artifact per audit run.
type ReportStore interface {
	SaveReport(ctx context.Context, report domain.AuditReport) error
}

// Store bundles the four persistence concerns a full audit run touches.
type Store interface {
	RawDocumentStore
	SnapshotStore
	ChainStore
	ReportStore
}
