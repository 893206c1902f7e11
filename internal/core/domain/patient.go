package domain

import "time"

// PatientRecord is the raw read-only snapshot supplied by a patient store.
// Derived fields (BMI, flags, risk factors) are computed by the core.
type PatientRecord struct {
	ID                 string              `json:"id"`
	Age                int                 `json:"age"`
	Gender             string              `json:"gender"`
	WeightKg           float64             `json:"weight_kg"`
	HeightCm           float64             `json:"height_cm"`
	Allergies          []string            `json:"allergies"`
	Conditions         []Condition         `json:"conditions"`
	Medications        []MedicationRecord  `json:"medications"`
	LabResults         []LabResult         `json:"lab_results"`
	AdverseReactions   []AdverseReaction   `json:"adverse_reactions"`
	HistoryUnavailable bool                `json:"history_unavailable,omitempty"`
}

// MedicationRecord is a current medication as stored.
type MedicationRecord struct {
	DrugName     string `json:"drug_name"`
	Dose         string `json:"dose"`
	Frequency    string `json:"frequency"`
	DurationDays int    `json:"duration_days"`
}

// LabResult is a stored laboratory measurement.
type LabResult struct {
	Name  string    `json:"name"`
	Value float64   `json:"value"`
	Unit  string    `json:"unit"`
	Date  time.Time `json:"date"`
}

// AdverseReaction is a prior adverse drug reaction.
type AdverseReaction struct {
	DrugName string `json:"drug_name"`
	Reaction string `json:"reaction"`
	Severity string `json:"severity"`
}

// Condition is a diagnosed condition and its status (active, resolved, ...).
type Condition struct {
	Condition string `json:"condition"`
	Status    string `json:"status"`
}

// IsActive returns true unless the condition is explicitly resolved.
func (c Condition) IsActive() bool {
	return c.Status != "resolved" && c.Status != "inactive"
}

// Demographics holds basic patient demographics.
type Demographics struct {
	Age      int     `json:"age"`
	Gender   string  `json:"gender"`
	WeightKg float64 `json:"weight_kg"`
	BMI      float64 `json:"bmi"`
}

// InteractionPotential tags how likely a current medication is to interact.
type InteractionPotential string

// Interaction potential levels.
const (
	PotentialHigh     InteractionPotential = "high"
	PotentialModerate InteractionPotential = "moderate"
	PotentialLow      InteractionPotential = "low"
)

// Medication is a current medication with derived interaction potential.
type Medication struct {
	DrugName             string               `json:"drug_name"`
	Dose                 string               `json:"dose"`
	Frequency            string               `json:"frequency"`
	DurationDays         int                  `json:"duration_days"`
	InteractionPotential InteractionPotential `json:"interaction_potential"`
}

// LabValue is a lab measurement with derived clinical-significance flags.
type LabValue struct {
	Value                float64   `json:"value"`
	Unit                 string    `json:"unit"`
	Date                 time.Time `json:"date"`
	ClinicalSignificance []string  `json:"clinical_significance"`
}

// RiskFactor is a patient-level risk amplifier.
type RiskFactor struct {
	Factor string `json:"factor"`
	Impact string `json:"impact"`
}

// Well-known lab names.
const (
	LabEGFR      = "egfr"
	LabINR       = "inr"
	LabALT       = "alt"
	LabPotassium = "potassium"
)

// PatientContext is the derived, read-only patient snapshot used by the
// risk assessor. Its absence is a valid state.
type PatientContext struct {
	PatientID                 string              `json:"patient_id"`
	Demographics              Demographics        `json:"demographics"`
	Allergies                 []string            `json:"allergies"`
	Conditions                []Condition         `json:"conditions"`
	CurrentMedications        []Medication        `json:"current_medications"`
	LabValues                 map[string]LabValue `json:"lab_values"`
	AdverseReactions          []AdverseReaction   `json:"adverse_reactions,omitempty"`
	RiskFactors               []RiskFactor        `json:"risk_factors"`
	InteractionConsiderations []string            `json:"interaction_considerations"`
	Warnings                  []string            `json:"warnings,omitempty"`
}

// Kind identifies the task type producing this output.
func (*PatientContext) Kind() TaskType { return TaskTypeContextRetrieval }

// Lab returns the named lab value.
func (p *PatientContext) Lab(name string) (LabValue, bool) {
	if p == nil || p.LabValues == nil {
		return LabValue{}, false
	}
	v, ok := p.LabValues[name]
	return v, ok
}

// HasLabs reports whether any lab values are present.
func (p *PatientContext) HasLabs() bool {
	return p != nil && len(p.LabValues) > 0
}

// HasActiveCondition reports whether any active condition contains one of
// the given keywords (case-insensitive substring match).
func (p *PatientContext) HasActiveCondition(keywords ...string) bool {
	if p == nil {
		return false
	}
	for _, c := range p.Conditions {
		if !c.IsActive() {
			continue
		}
		name := DrugKey(c.Condition)
		for _, kw := range keywords {
			if containsFold(name, kw) {
				return true
			}
		}
	}
	return false
}

// ComputeBMI returns weight / height² (kg/m²) rounded to one decimal,
// or 0 when either measurement is missing.
func ComputeBMI(weightKg, heightCm float64) float64 {
	if weightKg <= 0 || heightCm <= 0 {
		return 0
	}
	m := heightCm / 100
	bmi := weightKg / (m * m)
	return float64(int(bmi*10+0.5)) / 10
}
