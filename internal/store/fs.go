package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"veedor/internal/domain"
)

// FS persists the pipeline layout on disk:
//
//	<root>/raw/<source_id>/<timestamp>.json
//	<root>/normalized/<source_id>/<timestamp>_<ref>.json
//	<root>/chain/<source_id>.jsonl
//	<root>/reports/<run_id>.json
//
// File names embed the observation timestamp so lexical order equals
// chronological order. Chain files are strictly append-only.
type FS struct {
	root string
}

func NewFS(root string) (*FS, error) {
	for _, dir := range []string{"raw", "normalized", "chain", "reports"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", dir, err)
		}
	}
	return &FS{root: root}, nil
}

const fsTimeLayout = "20060102T150405.000000000Z"

func sanitizeSourceID(sourceID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, sourceID)
}

func (f *FS) SaveRaw(_ context.Context, doc domain.RawDocument) error {
	dir := filepath.Join(f.root, "raw", sanitizeSourceID(doc.SourceID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create raw dir: %w", err)
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal raw document: %w", err)
	}
	name := doc.RetrievedAt.UTC().Format(fsTimeLayout) + ".json"
	return writeFileAtomic(filepath.Join(dir, name), payload)
}

func (f *FS) ListRaw(_ context.Context) ([]domain.RawDocument, error) {
	rawRoot := filepath.Join(f.root, "raw")
	sources, err := os.ReadDir(rawRoot)
	if err != nil {
		return nil, fmt.Errorf("read raw root: %w", err)
	}

	var docs []domain.RawDocument
	for _, source := range sources {
		if !source.IsDir() {
			continue
		}
		dir := filepath.Join(rawRoot, source.Name())
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read raw dir %s: %w", source.Name(), err)
		}
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
				names = append(names, entry.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			payload, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				return nil, fmt.Errorf("read raw document %s: %w", name, err)
			}
			var doc domain.RawDocument
			if err := json.Unmarshal(payload, &doc); err != nil {
				return nil, fmt.Errorf("decode raw document %s: %w", name, err)
			}
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (f *FS) SaveSnapshot(_ context.Context, snapshot domain.Snapshot) error {
	dir := filepath.Join(f.root, "normalized", sanitizeSourceID(snapshot.SourceID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create normalized dir: %w", err)
	}
	canonical, err := snapshot.CanonicalJSON()
	if err != nil {
		return fmt.Errorf("serialize snapshot %s: %w", snapshot.Ref, err)
	}
	name := snapshot.TimestampObserved.UTC().Format(fsTimeLayout) + "_" + snapshot.Ref + ".json"
	return writeFileAtomic(filepath.Join(dir, name), canonical)
}

func (f *FS) SnapshotsBySource(_ context.Context, sourceID string) ([]domain.Snapshot, error) {
	dir := filepath.Join(f.root, "normalized", sanitizeSourceID(sourceID))
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read normalized dir %s: %w", sourceID, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	snapshots := make([]domain.Snapshot, 0, len(names))
	for _, name := range names {
		payload, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read snapshot %s: %w", name, err)
		}
		var snapshot domain.Snapshot
		if err := json.Unmarshal(payload, &snapshot); err != nil {
			return nil, fmt.Errorf("decode snapshot %s: %w", name, err)
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

func (f *FS) AppendRecord(_ context.Context, record domain.HashRecord) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal hash record: %w", err)
	}
	path := filepath.Join(f.root, "chain", sanitizeSourceID(record.SourceID)+".jsonl")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open chain file: %w", err)
	}
	defer file.Close()
	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append chain record: %w", err)
	}
	return file.Sync()
}

func (f *FS) Records(_ context.Context, sourceID string) ([]domain.HashRecord, error) {
	path := filepath.Join(f.root, "chain", sanitizeSourceID(sourceID)+".jsonl")
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open chain file: %w", err)
	}
	defer file.Close()

	var records []domain.HashRecord
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record domain.HashRecord
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return nil, fmt.Errorf("decode chain record: %w", err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan chain file: %w", err)
	}
	return records, nil
}

func (f *FS) Tip(ctx context.Context, sourceID string) (domain.HashRecord, error) {
	records, err := f.Records(ctx, sourceID)
	if err != nil {
		return domain.HashRecord{}, err
	}
	if len(records) == 0 {
		return domain.HashRecord{}, domain.ErrNotFound
	}
	return records[len(records)-1], nil
}

func (f *FS) SaveReport(_ context.Context, report domain.AuditReport) error {
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal audit report: %w", err)
	}
	path := filepath.Join(f.root, "reports", report.RunID+".json")
	return writeFileAtomic(path, payload)
}

// writeFileAtomic writes via a temp file and rename so readers never observe
// a partially written entity.
func writeFileAtomic(path string, payload []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
