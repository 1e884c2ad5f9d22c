package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veedor/internal/domain"
)

type FSStoreSuite struct {
	suite.Suite
	store *FS
	root  string
	ctx   context.Context
}

func (s *FSStoreSuite) SetupTest() {
	s.root = s.T().TempDir()
	var err error
	s.store, err = NewFS(s.root)
	s.Require().NoError(err)
	s.ctx = context.Background()
}

func TestFSStoreSuite(t *testing.T) {
	suite.Run(t, new(FSStoreSuite))
}

func (s *FSStoreSuite) TestLayout() {
	base := time.Date(2025, 11, 30, 19, 0, 0, 0, time.UTC)

	s.Require().NoError(s.store.SaveRaw(s.ctx, domain.RawDocument{
		SourceID: "cne-nacional", Body: []byte(`{}`), RetrievedAt: base,
	}))
	s.Require().NoError(s.store.SaveSnapshot(s.ctx, domain.Snapshot{
		Ref: "ref-1", SourceID: "cne-nacional", TimestampObserved: base,
	}))
	s.Require().NoError(s.store.AppendRecord(s.ctx, domain.HashRecord{
		SourceID: "cne-nacional", SequenceIndex: 0,
	}))
	s.Require().NoError(s.store.SaveReport(s.ctx, domain.AuditReport{RunID: "run-1"}))

	s.FileExists(filepath.Join(s.root, "raw", "cne-nacional", "20251130T190000.000000000Z.json"))
	s.FileExists(filepath.Join(s.root, "normalized", "cne-nacional", "20251130T190000.000000000Z_ref-1.json"))
	s.FileExists(filepath.Join(s.root, "chain", "cne-nacional.jsonl"))
	s.FileExists(filepath.Join(s.root, "reports", "run-1.json"))
}

func (s *FSStoreSuite) TestRawRoundTrip() {
	base := time.Date(2025, 11, 30, 19, 0, 0, 0, time.UTC)
	doc := domain.RawDocument{
		SourceID:    "src",
		Body:        []byte(`{"candidatos":[]}`),
		ContentType: "application/json",
		StatusCode:  200,
		RetrievedAt: base,
	}
	s.Require().NoError(s.store.SaveRaw(s.ctx, doc))
	s.Require().NoError(s.store.SaveRaw(s.ctx, domain.RawDocument{
		SourceID: "src", Body: []byte(`{}`), RetrievedAt: base.Add(time.Minute),
	}))

	docs, err := s.store.ListRaw(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(docs, 2)
	s.Equal(doc.Body, docs[0].Body)
	s.Equal(doc.RetrievedAt, docs[0].RetrievedAt.UTC())
	s.True(docs[0].RetrievedAt.Before(docs[1].RetrievedAt))
}

func (s *FSStoreSuite) TestSnapshotOrdering() {
	base := time.Date(2025, 11, 30, 19, 0, 0, 0, time.UTC)
	for i, ref := range []string{"r-late", "r-early"} {
		ts := base.Add(time.Duration(1-i) * time.Hour)
		s.Require().NoError(s.store.SaveSnapshot(s.ctx, domain.Snapshot{
			Ref: ref, SourceID: "src", TimestampObserved: ts,
		}))
	}

	snaps, err := s.store.SnapshotsBySource(s.ctx, "src")
	s.Require().NoError(err)
	s.Require().Len(snaps, 2)
	s.Equal("r-early", snaps[0].Ref)
	s.Equal("r-late", snaps[1].Ref)
}

func (s *FSStoreSuite) TestSnapshotsUnknownSource() {
	snaps, err := s.store.SnapshotsBySource(s.ctx, "missing")
	s.Require().NoError(err)
	s.Empty(snaps)
}

func (s *FSStoreSuite) TestChainAppendOnly() {
	s.Run("tip of absent chain returns ErrNotFound", func() {
		_, err := s.store.Tip(s.ctx, "src")
		s.Require().ErrorIs(err, domain.ErrNotFound)
	})

	s.Run("records survive a reopen in order", func() {
		for i := 0; i < 3; i++ {
			s.Require().NoError(s.store.AppendRecord(s.ctx, domain.HashRecord{
				SourceID: "src", SequenceIndex: i, ContentHash: domain.ComputeContentHash([]byte{byte(i)}),
			}))
		}

		reopened, err := NewFS(s.root)
		s.Require().NoError(err)
		records, err := reopened.Records(s.ctx, "src")
		s.Require().NoError(err)
		s.Require().Len(records, 3)
		for i, record := range records {
			s.Equal(i, record.SequenceIndex)
		}

		tip, err := reopened.Tip(s.ctx, "src")
		s.Require().NoError(err)
		s.Equal(2, tip.SequenceIndex)
	})
}

func (s *FSStoreSuite) TestSourceIDSanitization() {
	s.Require().NoError(s.store.SaveRaw(s.ctx, domain.RawDocument{
		SourceID:    "../escape/attempt",
		Body:        []byte(`{}`),
		RetrievedAt: time.Date(2025, 11, 30, 19, 0, 0, 0, time.UTC),
	}))

	entries, err := os.ReadDir(filepath.Join(s.root, "raw"))
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal("___escape_attempt", entries[0].Name())
}
