package driven

import "github.com/bivasb/medguard-ai-sub000/internal/core/domain"

// ClinicalKnowledgeBase is a read-only dictionary of clinical facts keyed by
// lower-case generic drug name. Lookups have no network latency.
type ClinicalKnowledgeBase interface {
	// Profile returns the drug's profile, if known.
	Profile(generic string) (domain.DrugProfile, bool)

	// IsNarrowTherapeuticIndex reports NTI membership.
	IsNarrowTherapeuticIndex(generic string) bool

	// InClass reports whether the drug belongs to a therapeutic class.
	InClass(generic, class string) bool

	// IsWatchListed reports whether the drug belongs to a class that
	// warrants interaction monitoring.
	IsWatchListed(generic string) bool

	// IsHighRisk reports anticoagulant or immunosuppressant membership.
	IsHighRisk(generic string) bool

	// ConditionInteractions returns drug-condition records.
	ConditionInteractions(generic string) []domain.ConditionInteraction

	// FoodInteractions returns drug-food records.
	FoodInteractions(generic string) []domain.FoodInteraction

	// LabInteractions returns drug-lab monitoring records.
	LabInteractions(generic string) []domain.LabInteraction

	// BeersCriteria returns the Beers flag for patients of the given age.
	BeersCriteria(generic string, age int) (domain.BeersFlag, bool)

	// CrossReactiveClasses returns the classes an allergy cross-reacts with,
	// including the allergen's own class.
	CrossReactiveClasses(allergy string) []string
}
