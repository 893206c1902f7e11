package domain

// Drug classes recognised by the clinical knowledge base.
const (
	ClassAnticoagulant    = "anticoagulant"
	ClassAntiplatelet     = "antiplatelet"
	ClassImmunosuppressant = "immunosuppressant"
	ClassNSAID            = "nsaid"
	ClassSSRI             = "ssri"
	ClassOpioid           = "opioid"
	ClassPenicillin       = "penicillin"
	ClassCephalosporin    = "cephalosporin"
	ClassSalicylate       = "salicylate"
	ClassStatin           = "statin"
	ClassACEInhibitor     = "ace_inhibitor"
	ClassBenzodiazepine   = "benzodiazepine"
	ClassMAOI             = "maoi"
	ClassSulfonamide      = "sulfonamide"
)

// DrugProfile is the knowledge-base entry for one generic drug.
type DrugProfile struct {
	GenericName            string   `json:"generic_name" yaml:"generic_name"`
	Classes                []string `json:"classes" yaml:"classes"`
	NarrowTherapeuticIndex bool     `json:"narrow_therapeutic_index" yaml:"narrow_therapeutic_index"`
	PregnancyCategory      string   `json:"pregnancy_category,omitempty" yaml:"pregnancy_category"`
	RenalDoseAdjustment    bool     `json:"renal_dose_adjustment,omitempty" yaml:"renal_dose_adjustment"`
}

// HasClass reports whether the profile belongs to class.
func (p DrugProfile) HasClass(class string) bool {
	for _, c := range p.Classes {
		if c == class {
			return true
		}
	}
	return false
}

// ConditionInteraction is a drug-condition contraindication record.
type ConditionInteraction struct {
	Condition string  `json:"condition" yaml:"condition"`
	Severity  string  `json:"severity" yaml:"severity"`
	Score     float64 `json:"score" yaml:"score"`
	Note      string  `json:"note" yaml:"note"`
}

// FoodInteraction is a drug-food interaction record.
type FoodInteraction struct {
	Food   string `json:"food" yaml:"food"`
	Effect string `json:"effect" yaml:"effect"`
	Advice string `json:"advice" yaml:"advice"`
}

// LabInteraction is a drug-lab monitoring record.
type LabInteraction struct {
	Lab       string `json:"lab" yaml:"lab"`
	Direction string `json:"direction" yaml:"direction"`
	Note      string `json:"note" yaml:"note"`
}

// BeersFlag marks a drug as potentially inappropriate for older adults.
type BeersFlag struct {
	Rationale      string `json:"rationale" yaml:"rationale"`
	Recommendation string `json:"recommendation" yaml:"recommendation"`
}
