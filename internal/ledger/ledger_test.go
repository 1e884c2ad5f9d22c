package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veedor/internal/domain"
	"veedor/internal/store"
)

type LedgerSuite struct {
	suite.Suite
	store  *store.Memory
	ledger *Ledger
	ctx    context.Context
}

func (s *LedgerSuite) SetupTest() {
	s.store = store.NewMemory()
	var err error
	s.ledger, err = New(s.store)
	s.Require().NoError(err)
	s.ctx = context.Background()
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) snapshot(source string, totalVotes int) domain.Snapshot {
	return domain.Snapshot{
		Ref:      fmt.Sprintf("%s-%d", source, totalVotes),
		SourceID: source,
		Totals:   domain.Totals{TotalVotes: totalVotes, ValidVotes: totalVotes},
	}
}

func (s *LedgerSuite) appendN(source string, n int) []domain.HashRecord {
	records := make([]domain.HashRecord, 0, n)
	now := time.Date(2025, 11, 30, 20, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		record, err := s.ledger.Append(s.ctx, s.snapshot(source, 100+i), now.Add(time.Duration(i)*time.Minute))
		s.Require().NoError(err)
		records = append(records, record)
	}
	return records
}

func (s *LedgerSuite) TestAppend() {
	s.Run("first record links to genesis", func() {
		record, err := s.ledger.Append(s.ctx, s.snapshot("src", 100), time.Now())
		s.Require().NoError(err)
		s.Equal(0, record.SequenceIndex)
		s.Equal(domain.GenesisHash, record.PreviousHash)
		s.Equal(domain.ComputeChainHash(record.PreviousHash, record.ContentHash), record.ChainHash)
	})

	s.Run("subsequent records link to the previous content hash", func() {
		records := s.appendN("src2", 3)
		s.Equal(records[0].ContentHash, records[1].PreviousHash)
		s.Equal(records[1].ContentHash, records[2].PreviousHash)
		s.Equal(2, records[2].SequenceIndex)
	})

	s.Run("chains are independent per source", func() {
		s.appendN("src-a", 2)
		record, err := s.ledger.Append(s.ctx, s.snapshot("src-b", 100), time.Now())
		s.Require().NoError(err)
		s.Equal(0, record.SequenceIndex)
		s.Equal(domain.GenesisHash, record.PreviousHash)
	})

	s.Run("identical snapshots produce identical content hashes", func() {
		first, err := s.ledger.Append(s.ctx, s.snapshot("src3", 100), time.Now())
		s.Require().NoError(err)
		// Same snapshot appended again: content hash repeats, chain hash moves.
		second, err := s.ledger.Append(s.ctx, s.snapshot("src3", 100), time.Now())
		s.Require().NoError(err)
		s.Equal(first.ContentHash, second.ContentHash)
		s.NotEqual(first.ChainHash, second.ChainHash)
	})
}

func (s *LedgerSuite) TestVerify() {
	s.Run("intact chain is valid", func() {
		s.appendN("intact", 5)
		result, err := s.ledger.Verify(s.ctx, "intact")
		s.Require().NoError(err)
		s.True(result.Valid)
		s.Equal(-1, result.FirstBreakIndex)
	})

	s.Run("empty chain is valid", func() {
		result, err := s.ledger.Verify(s.ctx, "never-seen")
		s.Require().NoError(err)
		s.True(result.Valid)
		s.Equal(-1, result.FirstBreakIndex)
	})
}

func (s *LedgerSuite) TestVerifyRecordsDetectsTampering() {
	s.Run("altered content at index k breaks at k", func() {
		records := s.appendN("tampered", 5)
		records[2].ContentHash = domain.ComputeContentHash([]byte("rewritten"))

		result := VerifyRecords(records)

		s.False(result.Valid)
		s.Equal(2, result.FirstBreakIndex)
	})

	s.Run("altered previous hash breaks at the altered record", func() {
		records := s.appendN("tampered-prev", 4)
		records[3].PreviousHash = domain.ComputeContentHash([]byte("forged"))

		result := VerifyRecords(records)

		s.False(result.Valid)
		s.Equal(3, result.FirstBreakIndex)
	})

	s.Run("deleted record breaks at the gap", func() {
		records := s.appendN("tampered-del", 4)
		spliced := append(records[:1:1], records[2:]...)

		result := VerifyRecords(spliced)

		s.False(result.Valid)
		s.Equal(1, result.FirstBreakIndex)
	})

	s.Run("wrong genesis breaks at index zero", func() {
		records := s.appendN("tampered-gen", 2)
		records[0].PreviousHash = domain.ComputeContentHash([]byte("not genesis"))

		result := VerifyRecords(records)

		s.False(result.Valid)
		s.Equal(0, result.FirstBreakIndex)
	})

	s.Run("recomputed chain hash cannot hide a rewrite", func() {
		records := s.appendN("tampered-full", 3)
		// Attacker rewrites record 1's content and fixes its chain hash, but
		// cannot fix record 2's previous-hash link.
		records[1].ContentHash = domain.ComputeContentHash([]byte("rewrite"))
		records[1].ChainHash = domain.ComputeChainHash(records[1].PreviousHash, records[1].ContentHash)

		result := VerifyRecords(records)

		s.False(result.Valid)
		s.Equal(2, result.FirstBreakIndex)
	})
}
