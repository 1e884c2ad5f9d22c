package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"veedor/internal/domain"
)

// Postgres persists the pipeline in four append-only tables. Inserts are
// idempotent via ON CONFLICT DO NOTHING so a retried run never duplicates
// history; hash records are additionally guarded by their (source, sequence)
// primary key, which makes an out-of-order append fail loudly instead of
// silently forking the chain.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// OpenPostgres connects and verifies the database is reachable.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (s *Postgres) Close() error { return s.db.Close() }

const schema = `
CREATE TABLE IF NOT EXISTS raw_documents (
	source_id    TEXT        NOT NULL,
	retrieved_at TIMESTAMPTZ NOT NULL,
	content_type TEXT        NOT NULL DEFAULT '',
	status_code  INTEGER     NOT NULL DEFAULT 0,
	body         BYTEA       NOT NULL,
	PRIMARY KEY (source_id, retrieved_at)
);

CREATE TABLE IF NOT EXISTS snapshots (
	ref                TEXT        PRIMARY KEY,
	source_id          TEXT        NOT NULL,
	timestamp_observed TIMESTAMPTZ NOT NULL,
	canonical          JSONB       NOT NULL
);
CREATE INDEX IF NOT EXISTS snapshots_source_observed
	ON snapshots (source_id, timestamp_observed);

CREATE TABLE IF NOT EXISTS hash_records (
	source_id      TEXT        NOT NULL,
	sequence_index INTEGER     NOT NULL,
	content_hash   TEXT        NOT NULL,
	previous_hash  TEXT        NOT NULL,
	chain_hash     TEXT        NOT NULL,
	snapshot_ref   TEXT        NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (source_id, sequence_index)
);

CREATE TABLE IF NOT EXISTS audit_reports (
	run_id     TEXT        PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	report     JSONB       NOT NULL
);
`

// EnsureSchema creates the tables when they do not exist yet.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Postgres) SaveRaw(ctx context.Context, doc domain.RawDocument) error {
	query := `
		INSERT INTO raw_documents (source_id, retrieved_at, content_type, status_code, body)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (source_id, retrieved_at) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		doc.SourceID, doc.RetrievedAt, doc.ContentType, doc.StatusCode, doc.Body)
	if err != nil {
		return fmt.Errorf("insert raw document: %w", err)
	}
	return nil
}

func (s *Postgres) ListRaw(ctx context.Context) ([]domain.RawDocument, error) {
	query := `
		SELECT source_id, retrieved_at, content_type, status_code, body
		FROM raw_documents
		ORDER BY source_id, retrieved_at
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query raw documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.RawDocument
	for rows.Next() {
		var doc domain.RawDocument
		if err := rows.Scan(&doc.SourceID, &doc.RetrievedAt, &doc.ContentType, &doc.StatusCode, &doc.Body); err != nil {
			return nil, fmt.Errorf("scan raw document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw documents: %w", err)
	}
	return docs, nil
}

func (s *Postgres) SaveSnapshot(ctx context.Context, snapshot domain.Snapshot) error {
	canonical, err := snapshot.CanonicalJSON()
	if err != nil {
		return fmt.Errorf("serialize snapshot %s: %w", snapshot.Ref, err)
	}
	query := `
		INSERT INTO snapshots (ref, source_id, timestamp_observed, canonical)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ref) DO NOTHING
	`
	_, err = s.db.ExecContext(ctx, query,
		snapshot.Ref, snapshot.SourceID, snapshot.TimestampObserved, canonical)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (s *Postgres) SnapshotsBySource(ctx context.Context, sourceID string) ([]domain.Snapshot, error) {
	query := `
		SELECT canonical
		FROM snapshots
		WHERE source_id = $1
		ORDER BY timestamp_observed
	`
	rows, err := s.db.QueryContext(ctx, query, sourceID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []domain.Snapshot
	for rows.Next() {
		var canonical []byte
		if err := rows.Scan(&canonical); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		var snapshot domain.Snapshot
		if err := json.Unmarshal(canonical, &snapshot); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snapshots, nil
}

func (s *Postgres) AppendRecord(ctx context.Context, record domain.HashRecord) error {
	query := `
		INSERT INTO hash_records (
			source_id, sequence_index, content_hash, previous_hash,
			chain_hash, snapshot_ref, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		record.SourceID, record.SequenceIndex, record.ContentHash,
		record.PreviousHash, record.ChainHash, record.SnapshotRef, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert hash record: %w", err)
	}
	return nil
}

func (s *Postgres) Records(ctx context.Context, sourceID string) ([]domain.HashRecord, error) {
	query := `
		SELECT source_id, sequence_index, content_hash, previous_hash,
		       chain_hash, snapshot_ref, created_at
		FROM hash_records
		WHERE source_id = $1
		ORDER BY sequence_index
	`
	rows, err := s.db.QueryContext(ctx, query, sourceID)
	if err != nil {
		return nil, fmt.Errorf("query hash records: %w", err)
	}
	defer rows.Close()

	var records []domain.HashRecord
	for rows.Next() {
		var record domain.HashRecord
		if err := rows.Scan(&record.SourceID, &record.SequenceIndex, &record.ContentHash,
			&record.PreviousHash, &record.ChainHash, &record.SnapshotRef, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan hash record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hash records: %w", err)
	}
	return records, nil
}

func (s *Postgres) Tip(ctx context.Context, sourceID string) (domain.HashRecord, error) {
	query := `
		SELECT source_id, sequence_index, content_hash, previous_hash,
		       chain_hash, snapshot_ref, created_at
		FROM hash_records
		WHERE source_id = $1
		ORDER BY sequence_index DESC
		LIMIT 1
	`
	var record domain.HashRecord
	err := s.db.QueryRowContext(ctx, query, sourceID).Scan(
		&record.SourceID, &record.SequenceIndex, &record.ContentHash,
		&record.PreviousHash, &record.ChainHash, &record.SnapshotRef, &record.CreatedAt)
	if err == sql.ErrNoRows {
		return domain.HashRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.HashRecord{}, fmt.Errorf("query chain tip: %w", err)
	}
	return record, nil
}

func (s *Postgres) SaveReport(ctx context.Context, report domain.AuditReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal audit report: %w", err)
	}
	query := `
		INSERT INTO audit_reports (run_id, created_at, report)
		VALUES ($1, $2, $3)
		ON CONFLICT (run_id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, report.RunID, report.CreatedAt, payload); err != nil {
		return fmt.Errorf("insert audit report: %w", err)
	}
	return nil
}
