package normalizer

// FieldMap declares, per canonical field, an ordered list of candidate source
// paths (dot-delimited). The normalizer tries each path in order and takes
// the first present value. Defaults cover the shapes the electoral authority
// has published so far; operators extend the lists in config as shapes drift.
type FieldMap struct {
	RegisteredVoters []string `yaml:"registered_voters"`
	ValidVotes       []string `yaml:"valid_votes"`
	NullVotes        []string `yaml:"null_votes"`
	BlankVotes       []string `yaml:"blank_votes"`
	TotalVotes       []string `yaml:"total_votes"`

	ProcessedUnits []string `yaml:"processed_units"`
	TotalUnits     []string `yaml:"total_units"`

	TimestampSource []string `yaml:"timestamp_source"`
	Department      []string `yaml:"department"`

	CandidateRoots []string `yaml:"candidate_roots"`
	// NestedCandidateKeys names keys holding the candidate collection when a
	// root resolves to a wrapping object instead of the collection itself.
	NestedCandidateKeys []string `yaml:"nested_candidate_keys"`
	CandidateVotes      []string `yaml:"candidate_votes"`
	CandidateSlot       []string `yaml:"candidate_slot"`
	CandidateID         []string `yaml:"candidate_id"`
	CandidateName       []string `yaml:"candidate_name"`
	CandidateParty      []string `yaml:"candidate_party"`

	// RequiredKeys lists paths that must resolve or the whole normalization
	// fails. Empty (the default) disables the check.
	RequiredKeys []string `yaml:"required_keys"`

	// CandidateCount is the expected number of candidates, informational
	// only: a mismatch is surfaced in snapshot metadata, never a failure.
	CandidateCount int `yaml:"candidate_count"`

	// ElectionLevel and DefaultDepartment seed fields the payload may omit.
	ElectionLevel     string `yaml:"election_level"`
	DefaultDepartment string `yaml:"default_department"`
}

// DefaultFieldMap returns the fallback chains observed across published
// document shapes.
func DefaultFieldMap() FieldMap {
	return FieldMap{
		RegisteredVoters:    []string{"registered_voters", "inscritos", "padron", "padron_electoral"},
		ValidVotes:          []string{"valid_votes", "votos_validos", "validos", "estadisticas.distribucion_votos.validos"},
		NullVotes:           []string{"null_votes", "votos_nulos", "nulos", "estadisticas.distribucion_votos.nulos"},
		BlankVotes:          []string{"blank_votes", "votos_blancos", "blancos", "estadisticas.distribucion_votos.blancos"},
		TotalVotes:          []string{"total_votes", "total_votos", "votos_emitidos", "estadisticas.distribucion_votos.total"},
		ProcessedUnits:      []string{"actas_procesadas", "actas.divulgadas", "estadisticas.totalizacion_actas.actas_divulgadas", "tables_processed"},
		TotalUnits:          []string{"actas_totales", "actas.totales", "estadisticas.totalizacion_actas.actas_totales", "tables_total"},
		TimestampSource:     []string{"timestamp", "timestamp_utc", "fecha", "ultima_actualizacion", "meta.timestamp_utc"},
		Department:          []string{"departamento", "dep", "department", "meta.department"},
		CandidateRoots:      []string{"candidatos", "candidates", "resultados", "partidos"},
		NestedCandidateKeys: []string{"candidatos", "candidates"},
		CandidateVotes:      []string{"votos", "votes"},
		CandidateSlot:       []string{"posicion", "orden", "slot"},
		CandidateID:         []string{"id"},
		CandidateName:       []string{"candidato", "nombre", "name"},
		CandidateParty:      []string{"partido", "party"},
		ElectionLevel:       "national",
	}
}

// departmentCodes maps subdivision names to their official two-digit codes.
// Unknown names resolve to "00".
var departmentCodes = map[string]string{
	"Atlántida":         "01",
	"Choluteca":         "02",
	"Colón":             "03",
	"Comayagua":         "04",
	"Copán":             "05",
	"Cortés":            "06",
	"El Paraíso":        "07",
	"Francisco Morazán": "08",
	"Gracias a Dios":    "09",
	"Intibucá":          "10",
	"Islas de la Bahía": "11",
	"La Paz":            "12",
	"Lempira":           "13",
	"Ocotepeque":        "14",
	"Olancho":           "15",
	"Santa Bárbara":     "16",
	"Valle":             "17",
	"Yoro":              "18",
}

// DepartmentCode resolves a subdivision name to its code.
func DepartmentCode(name string) string {
	if code, ok := departmentCodes[name]; ok {
		return code
	}
	return "00"
}
