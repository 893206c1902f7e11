// Package knowledge provides the static clinical knowledge base, loaded from
// an embedded YAML table or a user-supplied file with the same layout.
package knowledge

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
	"github.com/bivasb/medguard-ai-sub000/internal/core/ports/driven"
)

// Ensure Base implements the interface.
var _ driven.ClinicalKnowledgeBase = (*Base)(nil)

//go:embed knowledge.yaml
var embedded []byte

type beersEntry struct {
	MinAge         int    `yaml:"min_age"`
	Rationale      string `yaml:"rationale"`
	Recommendation string `yaml:"recommendation"`
}

type drugEntry struct {
	domain.DrugProfile `yaml:",inline"`

	Conditions []domain.ConditionInteraction `yaml:"conditions"`
	Foods      []domain.FoodInteraction      `yaml:"foods"`
	Labs       []domain.LabInteraction       `yaml:"labs"`
	Beers      *beersEntry                   `yaml:"beers"`
}

type document struct {
	HighRiskClasses  []string            `yaml:"high_risk_classes"`
	WatchListClasses []string            `yaml:"watch_list_classes"`
	CrossReactivity  map[string][]string `yaml:"cross_reactivity"`
	Drugs            []drugEntry         `yaml:"drugs"`
}

// Base is a read-only, in-memory knowledge base. It is safe for concurrent
// use because it is never mutated after construction.
type Base struct {
	drugs           map[string]drugEntry
	highRisk        map[string]bool
	watchList       map[string]bool
	crossReactivity map[string][]string
}

// New loads the embedded knowledge base.
func New() (*Base, error) {
	return Parse(embedded)
}

// Parse builds a knowledge base from YAML data.
func Parse(data []byte) (*Base, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse knowledge base: %w", err)
	}

	b := &Base{
		drugs:           make(map[string]drugEntry, len(doc.Drugs)),
		highRisk:        toSet(doc.HighRiskClasses),
		watchList:       toSet(doc.WatchListClasses),
		crossReactivity: make(map[string][]string, len(doc.CrossReactivity)),
	}
	for _, d := range doc.Drugs {
		key := domain.DrugKey(d.GenericName)
		if key == "" {
			return nil, fmt.Errorf("parse knowledge base: drug entry without generic_name")
		}
		if _, dup := b.drugs[key]; dup {
			return nil, fmt.Errorf("parse knowledge base: duplicate drug %q", key)
		}
		d.GenericName = key
		b.drugs[key] = d
	}
	for allergy, classes := range doc.CrossReactivity {
		b.crossReactivity[domain.DrugKey(allergy)] = classes
	}
	return b, nil
}

// Load reads the knowledge base from path, falling back to the embedded
// table when the file does not exist. The returned bool reports whether the
// file was used.
func Load(path string) (*Base, bool, error) {
	if path == "" {
		b, err := New()
		return b, false, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		b, err := New()
		return b, false, err
	}
	if err != nil {
		return nil, false, fmt.Errorf("read knowledge base: %w", err)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", path, err)
	}
	return b, true, nil
}

// Len returns the number of drugs in the base.
func (b *Base) Len() int {
	return len(b.drugs)
}

// Profile returns the drug's profile, if known.
func (b *Base) Profile(generic string) (domain.DrugProfile, bool) {
	d, ok := b.drugs[domain.DrugKey(generic)]
	return d.DrugProfile, ok
}

// IsNarrowTherapeuticIndex reports NTI membership.
func (b *Base) IsNarrowTherapeuticIndex(generic string) bool {
	d, ok := b.drugs[domain.DrugKey(generic)]
	return ok && d.NarrowTherapeuticIndex
}

// InClass reports whether the drug belongs to class.
func (b *Base) InClass(generic, class string) bool {
	d, ok := b.drugs[domain.DrugKey(generic)]
	return ok && d.HasClass(class)
}

// IsWatchListed reports membership of a class that warrants monitoring.
func (b *Base) IsWatchListed(generic string) bool {
	return b.anyClass(generic, b.watchList) || b.anyClass(generic, b.highRisk)
}

// IsHighRisk reports anticoagulant or immunosuppressant membership.
func (b *Base) IsHighRisk(generic string) bool {
	return b.anyClass(generic, b.highRisk)
}

func (b *Base) anyClass(generic string, set map[string]bool) bool {
	d, ok := b.drugs[domain.DrugKey(generic)]
	if !ok {
		return false
	}
	for _, c := range d.Classes {
		if set[c] {
			return true
		}
	}
	return false
}

// ConditionInteractions returns drug-condition records.
func (b *Base) ConditionInteractions(generic string) []domain.ConditionInteraction {
	return b.drugs[domain.DrugKey(generic)].Conditions
}

// FoodInteractions returns drug-food records.
func (b *Base) FoodInteractions(generic string) []domain.FoodInteraction {
	return b.drugs[domain.DrugKey(generic)].Foods
}

// LabInteractions returns drug-lab monitoring records.
func (b *Base) LabInteractions(generic string) []domain.LabInteraction {
	return b.drugs[domain.DrugKey(generic)].Labs
}

// BeersCriteria returns the Beers flag for a patient of the given age.
func (b *Base) BeersCriteria(generic string, age int) (domain.BeersFlag, bool) {
	d, ok := b.drugs[domain.DrugKey(generic)]
	if !ok || d.Beers == nil || age < d.Beers.MinAge {
		return domain.BeersFlag{}, false
	}
	return domain.BeersFlag{Rationale: d.Beers.Rationale, Recommendation: d.Beers.Recommendation}, true
}

// CrossReactiveClasses returns the classes an allergy cross-reacts with.
// An allergy to a known drug also covers the allergenic classes it
// belongs to.
func (b *Base) CrossReactiveClasses(allergy string) []string {
	key := domain.DrugKey(allergy)
	set := make(map[string]bool)
	for _, c := range b.crossReactivity[key] {
		set[c] = true
	}
	if d, ok := b.drugs[key]; ok {
		for _, c := range d.Classes {
			for _, x := range b.crossReactivity[c] {
				set[x] = true
			}
		}
	}
	classes := make([]string, 0, len(set))
	for c := range set {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	return classes
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
