package normalizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veedor/internal/domain"
)

type NormalizerSuite struct {
	suite.Suite
	norm *Normalizer
}

func (s *NormalizerSuite) SetupTest() {
	s.norm = New(DefaultFieldMap())
}

func TestNormalizerSuite(t *testing.T) {
	suite.Run(t, new(NormalizerSuite))
}

func (s *NormalizerSuite) rawDoc(body string) domain.RawDocument {
	return domain.RawDocument{
		SourceID:    "cne-nacional",
		Body:        []byte(body),
		ContentType: "application/json",
		StatusCode:  200,
		RetrievedAt: time.Date(2025, 11, 30, 20, 15, 0, 0, time.UTC),
	}
}

func (s *NormalizerSuite) TestDeterminism() {
	doc := s.rawDoc(`{"candidatos":[{"nombre":"A","votos":100},{"nombre":"B","votos":50}],"votos_validos":150}`)

	first, err := s.norm.Normalize(doc)
	s.Require().NoError(err)
	second, err := s.norm.Normalize(doc)
	s.Require().NoError(err)

	s.Equal(first.Ref, second.Ref)

	firstJSON, err := first.CanonicalJSON()
	s.Require().NoError(err)
	secondJSON, err := second.CanonicalJSON()
	s.Require().NoError(err)
	s.Equal(firstJSON, secondJSON)
}

func (s *NormalizerSuite) TestRefChangesWithBody() {
	first, err := s.norm.Normalize(s.rawDoc(`{"candidatos":[{"votos":1}]}`))
	s.Require().NoError(err)
	second, err := s.norm.Normalize(s.rawDoc(`{"candidatos":[{"votos":2}]}`))
	s.Require().NoError(err)
	s.NotEqual(first.Ref, second.Ref)
}

func (s *NormalizerSuite) TestNestedStatisticsShape() {
	doc := s.rawDoc(`{
		"estadisticas": {
			"distribucion_votos": {"validos": 900, "nulos": 60, "blancos": 40, "total": 1000},
			"totalizacion_actas": {"actas_divulgadas": 120, "actas_totales": 300}
		},
		"candidatos": [
			{"candidato": "Alpha", "partido": "P1", "votos": 500},
			{"candidato": "Beta", "partido": "P2", "votos": 400}
		],
		"ultima_actualizacion": "2025-11-30T20:00:00Z",
		"departamento": "Cortés"
	}`)

	snap, err := s.norm.Normalize(doc)
	s.Require().NoError(err)

	s.Equal(900, snap.Totals.ValidVotes)
	s.Equal(60, snap.Totals.NullVotes)
	s.Equal(40, snap.Totals.BlankVotes)
	s.Equal(1000, snap.Totals.TotalVotes)
	s.Equal(120, snap.Progress.ProcessedUnits)
	s.Equal(300, snap.Progress.TotalUnits)
	s.Equal("2025-11-30T20:00:00Z", snap.TimestampSource)
	s.Equal("Cortés", snap.Geography.Name)
	s.Equal("06", snap.Geography.Code)

	s.Require().Len(snap.Candidates, 2)
	s.Equal(0, snap.Candidates[0].Slot)
	s.Equal("Alpha", snap.Candidates[0].Name)
	s.Equal(500, snap.Candidates[0].Votes)
	s.Equal(1, snap.Candidates[1].Slot)
}

func (s *NormalizerSuite) TestResultadosShape() {
	doc := s.rawDoc(`{
		"estadisticas": {"distribucion_votos": {"validos": 950, "nulos": 30, "blancos": 20, "total": 1000}},
		"resultados": [{"votos": 500}, {"votos": 450}]
	}`)

	snap, err := s.norm.Normalize(doc)
	s.Require().NoError(err)

	s.Equal(domain.Totals{ValidVotes: 950, NullVotes: 30, BlankVotes: 20, TotalVotes: 1000}, snap.Totals)
	s.Require().Len(snap.Candidates, 2)
	s.Equal(domain.Candidate{Slot: 0, Votes: 500}, snap.Candidates[0])
	s.Equal(domain.Candidate{Slot: 1, Votes: 450}, snap.Candidates[1])

	// Consistent by construction: candidate sum equals valid votes and the
	// breakdown equals the reported total.
	s.Equal(snap.Totals.ValidVotes, snap.CandidateVoteSum())
	s.Equal(snap.Totals.TotalVotes, snap.Totals.ValidVotes+snap.Totals.NullVotes+snap.Totals.BlankVotes)
}

func (s *NormalizerSuite) TestSlotKeyedCandidateMap() {
	doc := s.rawDoc(`{"candidatos":{"2":{"votos":25},"0":{"votos":100},"1":{"votos":50}}}`)

	snap, err := s.norm.Normalize(doc)
	s.Require().NoError(err)

	s.Require().Len(snap.Candidates, 3)
	s.Equal(0, snap.Candidates[0].Slot)
	s.Equal(100, snap.Candidates[0].Votes)
	s.Equal(2, snap.Candidates[2].Slot)
	s.Equal(25, snap.Candidates[2].Votes)
}

func (s *NormalizerSuite) TestCoercion() {
	s.Run("comma-grouped string becomes integer", func() {
		snap, err := s.norm.Normalize(s.rawDoc(`{"votos_validos":"1,234","candidatos":[{"votos":"1,234"}]}`))
		s.Require().NoError(err)
		s.Equal(1234, snap.Totals.ValidVotes)
		s.Equal(1234, snap.Candidates[0].Votes)
	})

	s.Run("decimal string truncates", func() {
		snap, err := s.norm.Normalize(s.rawDoc(`{"votos_validos":"950.0","candidatos":[]}`))
		s.Require().NoError(err)
		s.Equal(950, snap.Totals.ValidVotes)
	})

	s.Run("uncoercible value defaults to zero with a warning", func() {
		snap, err := s.norm.Normalize(s.rawDoc(`{"votos_validos":"muchos","candidatos":[{"votos":10}]}`))
		s.Require().NoError(err)
		s.Equal(0, snap.Totals.ValidVotes)
		s.Contains(snap.Metadata, "coercion_warning.totals.valid_votes")
	})

	s.Run("uncoercible candidate votes default to zero without discarding snapshot", func() {
		snap, err := s.norm.Normalize(s.rawDoc(`{"candidatos":[{"votos":"n/a"},{"votos":10}]}`))
		s.Require().NoError(err)
		s.Require().Len(snap.Candidates, 2)
		s.Equal(0, snap.Candidates[0].Votes)
		s.Equal(10, snap.Candidates[1].Votes)
		s.Contains(snap.Metadata, "coercion_warning.candidates.0.votes")
	})
}

func (s *NormalizerSuite) TestDerivedTotal() {
	snap, err := s.norm.Normalize(s.rawDoc(`{"votos_validos":900,"votos_nulos":60,"votos_blancos":40,"candidatos":[]}`))
	s.Require().NoError(err)
	s.Equal(1000, snap.Totals.TotalVotes)
	s.Equal("valid+null+blank", snap.Metadata["derived_total"])
}

func (s *NormalizerSuite) TestUnparsableDocument() {
	_, err := s.norm.Normalize(s.rawDoc(`<html>mantenimiento</html>`))
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrUnparsableDocument)

	var normErr *domain.NormalizationError
	s.ErrorAs(err, &normErr)
	s.Equal("cne-nacional", normErr.SourceID)
}

func (s *NormalizerSuite) TestRequiredKeys() {
	fm := DefaultFieldMap()
	fm.RequiredKeys = []string{"estadisticas.distribucion_votos"}
	norm := New(fm)

	s.Run("missing required key fails normalization", func() {
		_, err := norm.Normalize(s.rawDoc(`{"candidatos":[]}`))
		s.Require().Error(err)
		s.ErrorIs(err, domain.ErrMissingRequiredKey)
	})

	s.Run("present required key passes", func() {
		_, err := norm.Normalize(s.rawDoc(`{"estadisticas":{"distribucion_votos":{"validos":1}},"candidatos":[]}`))
		s.NoError(err)
	})
}

func (s *NormalizerSuite) TestMissingCandidateRoot() {
	_, err := s.norm.Normalize(s.rawDoc(`{"votos_validos":100}`))
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrCandidateRootNotFound)
}

func (s *NormalizerSuite) TestNestedCandidateKeyIsConfigurable() {
	fm := DefaultFieldMap()
	fm.CandidateRoots = []string{"resultados"}
	fm.NestedCandidateKeys = []string{"lista"}
	norm := New(fm)

	snap, err := norm.Normalize(s.rawDoc(`{"resultados":{"lista":[{"votos":80},{"votos":20}]}}`))
	s.Require().NoError(err)
	s.Require().Len(snap.Candidates, 2)
	s.Equal(80, snap.Candidates[0].Votes)

	// The default map still unwraps the shapes published so far.
	snap, err = s.norm.Normalize(s.rawDoc(`{"resultados":{"candidatos":[{"votos":70}]}}`))
	s.Require().NoError(err)
	s.Require().Len(snap.Candidates, 1)
	s.Equal(70, snap.Candidates[0].Votes)
}

func (s *NormalizerSuite) TestCandidateCountMismatch() {
	fm := DefaultFieldMap()
	fm.CandidateCount = 3
	norm := New(fm)

	snap, err := norm.Normalize(s.rawDoc(`{"candidatos":[{"votos":1},{"votos":2}]}`))
	s.Require().NoError(err)
	s.Require().Len(snap.Candidates, 2)
	s.Equal("expected=3 got=2", snap.Metadata["candidate_count_mismatch"])
}

func (s *NormalizerSuite) TestExplicitSlotOverridesPosition() {
	doc := s.rawDoc(`{"candidatos":[{"posicion":5,"votos":10},{"votos":20}]}`)
	snap, err := s.norm.Normalize(doc)
	s.Require().NoError(err)
	s.Equal(5, snap.Candidates[0].Slot)
	s.Equal(1, snap.Candidates[1].Slot)
}

// TestRoundTrip feeds a snapshot's own canonical serialization back through
// a field map that names the canonical paths; the result must carry the same
// figures.
func (s *NormalizerSuite) TestRoundTrip() {
	original, err := s.norm.Normalize(s.rawDoc(`{
		"votos_validos": 150, "votos_nulos": 10, "votos_blancos": 5, "total_votos": 165,
		"candidatos": [{"nombre":"A","votos":100},{"nombre":"B","votos":50}]
	}`))
	s.Require().NoError(err)

	canonical, err := original.CanonicalJSON()
	s.Require().NoError(err)

	identity := FieldMap{
		RegisteredVoters: []string{"totals.registered_voters"},
		ValidVotes:       []string{"totals.valid_votes"},
		NullVotes:        []string{"totals.null_votes"},
		BlankVotes:       []string{"totals.blank_votes"},
		TotalVotes:       []string{"totals.total_votes"},
		ProcessedUnits:   []string{"progress.processed_units"},
		TotalUnits:       []string{"progress.total_units"},
		TimestampSource:  []string{"timestamp_source"},
		Department:       []string{"geography.name"},
		CandidateRoots:   []string{"candidates"},
		CandidateVotes:   []string{"votes"},
		CandidateSlot:    []string{"slot"},
		CandidateName:    []string{"name"},
		CandidateParty:   []string{"party"},
	}
	redone, err := New(identity).Normalize(domain.RawDocument{
		SourceID:    original.SourceID,
		Body:        canonical,
		RetrievedAt: original.TimestampObserved,
	})
	s.Require().NoError(err)

	s.Equal(original.Totals, redone.Totals)
	s.Equal(original.Progress, redone.Progress)
	s.Require().Len(redone.Candidates, len(original.Candidates))
	for i := range original.Candidates {
		s.Equal(original.Candidates[i].Slot, redone.Candidates[i].Slot)
		s.Equal(original.Candidates[i].Votes, redone.Candidates[i].Votes)
		s.Equal(original.Candidates[i].Name, redone.Candidates[i].Name)
	}
}

func (s *NormalizerSuite) TestObservedTimestampComesFromRetrieval() {
	doc := s.rawDoc(`{"candidatos":[]}`)
	snap, err := s.norm.Normalize(doc)
	s.Require().NoError(err)
	s.Equal(doc.RetrievedAt.UTC(), snap.TimestampObserved)
}

func (s *NormalizerSuite) TestDefaultDepartmentFallback() {
	fm := DefaultFieldMap()
	fm.DefaultDepartment = "Nacional"
	norm := New(fm)

	snap, err := norm.Normalize(s.rawDoc(`{"candidatos":[]}`))
	s.Require().NoError(err)
	s.Equal("Nacional", snap.Geography.Name)
	s.Equal("00", snap.Geography.Code)
}
