package store

import (
	"context"
	"sort"
	"sync"

	"veedor/internal/domain"
)

// Memory keeps everything in process. It favors clarity over performance and
// backs the unit tests as well as dry runs without persistence configured.
type Memory struct {
	mu        sync.RWMutex
	raw       []domain.RawDocument
	snapshots map[string][]domain.Snapshot
	chains    map[string][]domain.HashRecord
	reports   []domain.AuditReport
}

func NewMemory() *Memory {
	return &Memory{
		snapshots: make(map[string][]domain.Snapshot),
		chains:    make(map[string][]domain.HashRecord),
	}
}

func (m *Memory) SaveRaw(_ context.Context, doc domain.RawDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw = append(m.raw, doc)
	return nil
}

func (m *Memory) ListRaw(_ context.Context) ([]domain.RawDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs := append([]domain.RawDocument{}, m.raw...)
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].SourceID != docs[j].SourceID {
			return docs[i].SourceID < docs[j].SourceID
		}
		return docs[i].RetrievedAt.Before(docs[j].RetrievedAt)
	})
	return docs, nil
}

func (m *Memory) SaveSnapshot(_ context.Context, snapshot domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snapshot.SourceID] = append(m.snapshots[snapshot.SourceID], snapshot)
	return nil
}

func (m *Memory) SnapshotsBySource(_ context.Context, sourceID string) ([]domain.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snapshots := append([]domain.Snapshot{}, m.snapshots[sourceID]...)
	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].TimestampObserved.Before(snapshots[j].TimestampObserved)
	})
	return snapshots, nil
}

func (m *Memory) AppendRecord(_ context.Context, record domain.HashRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chains[record.SourceID] = append(m.chains[record.SourceID], record)
	return nil
}

func (m *Memory) Records(_ context.Context, sourceID string) ([]domain.HashRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.HashRecord{}, m.chains[sourceID]...), nil
}

func (m *Memory) Tip(_ context.Context, sourceID string) (domain.HashRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chain := m.chains[sourceID]
	if len(chain) == 0 {
		return domain.HashRecord{}, domain.ErrNotFound
	}
	return chain[len(chain)-1], nil
}

func (m *Memory) SaveReport(_ context.Context, report domain.AuditReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, report)
	return nil
}

// Reports exposes saved reports for tests.
func (m *Memory) Reports() []domain.AuditReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.AuditReport{}, m.reports...)
}
