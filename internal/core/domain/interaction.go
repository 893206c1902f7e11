package domain

// Severity is the qualitative strength of a drug-drug interaction.
type Severity string

// Interaction severities, strongest first.
const (
	SeverityMajor    Severity = "MAJOR"
	SeverityModerate Severity = "MODERATE"
	SeverityMinor    Severity = "MINOR"
	SeverityUnknown  Severity = "UNKNOWN"
)

// IsValid returns true if the severity is recognised.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityMajor, SeverityModerate, SeverityMinor, SeverityUnknown:
		return true
	default:
		return false
	}
}

// Rank orders severities: MAJOR > MODERATE > MINOR > UNKNOWN.
func (s Severity) Rank() int {
	switch s {
	case SeverityMajor:
		return 3
	case SeverityModerate:
		return 2
	case SeverityMinor:
		return 1
	default:
		return 0
	}
}

// Score returns the severity's contribution to the interaction risk score.
func (s Severity) Score() float64 {
	switch s {
	case SeverityMajor:
		return 0.9
	case SeverityModerate:
		return 0.6
	case SeverityMinor:
		return 0.3
	default:
		return 0.1
	}
}

// String returns the string representation.
func (s Severity) String() string {
	return string(s)
}

// Interaction sources.
const (
	SourceKnownTable = "known_table"
	SourceProvider   = "provider"
	SourceFallback   = "fallback"
	SourceNoSignal   = "no_signal"
	SourceCache      = "cache"
)

// Interaction is the result of checking one unordered drug pair.
// Pairs with no signal still produce a record with Found=false.
type Interaction struct {
	Drug1                string   `json:"drug1"`
	Drug2                string   `json:"drug2"`
	Severity             Severity `json:"severity"`
	Mechanism            string   `json:"mechanism"`
	Description          string   `json:"description"`
	ClinicalSignificance string   `json:"clinical_significance"`
	Confidence           float64  `json:"confidence"`
	Found                bool     `json:"found"`
	Source               string   `json:"source"`
	SeriousEvents        int      `json:"serious_events,omitempty"`
	TotalEvents          int      `json:"total_events,omitempty"`
}

// Kind identifies the task type producing this output.
func (*Interaction) Kind() TaskType { return TaskTypeInteractionCheck }

// PairKey returns an order-independent key for the pair.
func (i Interaction) PairKey() string {
	return PairKey(i.Drug1, i.Drug2)
}

// Involves reports whether the interaction references the given drug key.
func (i Interaction) Involves(name string) bool {
	k := DrugKey(name)
	return DrugKey(i.Drug1) == k || DrugKey(i.Drug2) == k
}

// PairKey returns an order-independent key for two drug names.
func PairKey(a, b string) string {
	a, b = DrugKey(a), DrugKey(b)
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// DrugPair is an unordered pair of normalised drugs.
type DrugPair struct {
	First  NormalizedDrug
	Second NormalizedDrug
}

// Key returns the pair's order-independent key.
func (p DrugPair) Key() string {
	return PairKey(p.First.GenericName, p.Second.GenericName)
}

// AllPairs builds every unordered pair among drugs, skipping pairs that
// share a generic name.
func AllPairs(drugs []NormalizedDrug) []DrugPair {
	var pairs []DrugPair //nolint:prealloc // duplicates are skipped
	for i := 0; i < len(drugs); i++ {
		for j := i + 1; j < len(drugs); j++ {
			if drugs[i].Key() == drugs[j].Key() {
				continue
			}
			pairs = append(pairs, DrugPair{First: drugs[i], Second: drugs[j]})
		}
	}
	return pairs
}
