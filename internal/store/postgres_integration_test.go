//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veedor/internal/domain"
	"veedor/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Postgres
	ctx   context.Context
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = NewPostgres(s.pg.DB)
	s.Require().NoError(s.store.EnsureSchema(s.ctx))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateAll(s.ctx))
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) TestRawDocuments() {
	base := time.Date(2025, 11, 30, 19, 0, 0, 0, time.UTC)
	doc := domain.RawDocument{
		SourceID:    "src",
		Body:        []byte(`{"candidatos":[]}`),
		ContentType: "application/json",
		StatusCode:  200,
		RetrievedAt: base,
	}

	s.Run("save and list round-trips", func() {
		s.Require().NoError(s.store.SaveRaw(s.ctx, doc))
		docs, err := s.store.ListRaw(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(docs, 1)
		s.Equal(doc.Body, docs[0].Body)
		s.True(doc.RetrievedAt.Equal(docs[0].RetrievedAt))
	})

	s.Run("duplicate save is idempotent", func() {
		s.Require().NoError(s.store.SaveRaw(s.ctx, doc))
		s.Require().NoError(s.store.SaveRaw(s.ctx, doc))
		docs, err := s.store.ListRaw(s.ctx)
		s.Require().NoError(err)
		s.Len(docs, 1)
	})
}

func (s *PostgresStoreSuite) TestSnapshots() {
	base := time.Date(2025, 11, 30, 19, 0, 0, 0, time.UTC)
	first := domain.Snapshot{
		Ref:               "ref-1",
		SourceID:          "src",
		ElectionLevel:     domain.LevelNational,
		TimestampObserved: base,
		Totals:            domain.Totals{ValidVotes: 150, TotalVotes: 150},
		Candidates:        []domain.Candidate{{Slot: 0, Votes: 100}, {Slot: 1, Votes: 50}},
	}
	second := first
	second.Ref = "ref-2"
	second.TimestampObserved = base.Add(time.Minute)

	s.Require().NoError(s.store.SaveSnapshot(s.ctx, second))
	s.Require().NoError(s.store.SaveSnapshot(s.ctx, first))

	snaps, err := s.store.SnapshotsBySource(s.ctx, "src")
	s.Require().NoError(err)
	s.Require().Len(snaps, 2)
	s.Equal("ref-1", snaps[0].Ref)
	s.Equal("ref-2", snaps[1].Ref)
	s.Equal(first.Candidates, snaps[0].Candidates)
}

func (s *PostgresStoreSuite) TestChain() {
	s.Run("tip of empty chain returns ErrNotFound", func() {
		_, err := s.store.Tip(s.ctx, "src")
		s.Require().ErrorIs(err, domain.ErrNotFound)
	})

	s.Run("append and read back preserves order", func() {
		now := time.Now().UTC().Truncate(time.Microsecond)
		for i := 0; i < 3; i++ {
			s.Require().NoError(s.store.AppendRecord(s.ctx, domain.HashRecord{
				SourceID:      "src",
				SequenceIndex: i,
				ContentHash:   domain.ComputeContentHash([]byte{byte(i)}),
				PreviousHash:  domain.GenesisHash,
				ChainHash:     domain.ComputeChainHash(domain.GenesisHash, domain.ComputeContentHash([]byte{byte(i)})),
				SnapshotRef:   "ref",
				CreatedAt:     now,
			}))
		}

		records, err := s.store.Records(s.ctx, "src")
		s.Require().NoError(err)
		s.Require().Len(records, 3)
		for i, record := range records {
			s.Equal(i, record.SequenceIndex)
		}

		tip, err := s.store.Tip(s.ctx, "src")
		s.Require().NoError(err)
		s.Equal(2, tip.SequenceIndex)
	})

	s.Run("conflicting sequence index fails loudly", func() {
		record := domain.HashRecord{SourceID: "dup", SequenceIndex: 0, ContentHash: "c", PreviousHash: domain.GenesisHash, ChainHash: "h", SnapshotRef: "r", CreatedAt: time.Now().UTC()}
		s.Require().NoError(s.store.AppendRecord(s.ctx, record))
		s.Error(s.store.AppendRecord(s.ctx, record))
	})
}

func (s *PostgresStoreSuite) TestReports() {
	report := domain.AuditReport{
		RunID:      "run-1",
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
		ConfigHash: "abc",
		RuleIDs:    []string{"accumulated_count"},
	}
	s.Require().NoError(s.store.SaveReport(s.ctx, report))
	s.Require().NoError(s.store.SaveReport(s.ctx, report))
}
