package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
	"github.com/bivasb/medguard-ai-sub000/internal/core/ports/driven"
	"github.com/bivasb/medguard-ai-sub000/internal/core/ports/driving"
)

// Ensure PatientContextProvider implements the interfaces.
var (
	_ Subagent               = (*PatientContextProvider)(nil)
	_ driving.PatientService = (*PatientContextProvider)(nil)
)

// Lab flag thresholds.
const (
	egfrSevere       = 30.0
	egfrReduced      = 60.0
	inrHigh          = 3.0
	altElevated      = 80.0
	potassiumHigh    = 5.5
	potassiumLow     = 3.5
	polypharmacyMin  = 5
	polypharmacyHigh = 10
)

// Condition keywords used for risk factor derivation.
var (
	renalConditionKeywords   = []string{"kidney", "renal", "ckd"}
	hepaticConditionKeywords = []string{"liver", "hepatic", "cirrhosis", "hepatitis"}
	bleedingKeywords         = []string{"bleed", "hemorrhage", "haemorrhage", "ulcer"}
)

// PatientContextProvider loads a patient snapshot and derives the risk
// factors used by the risk assessor.
type PatientContextProvider struct {
	store driven.PatientStore
	kb    driven.ClinicalKnowledgeBase
}

// NewPatientContextProvider creates a patient context provider.
func NewPatientContextProvider(store driven.PatientStore, kb driven.ClinicalKnowledgeBase) *PatientContextProvider {
	return &PatientContextProvider{store: store, kb: kb}
}

// Kind implements Subagent.
func (p *PatientContextProvider) Kind() domain.TaskType {
	return domain.TaskTypeContextRetrieval
}

// Execute implements Subagent.
func (p *PatientContextProvider) Execute(ctx context.Context, task domain.Task) domain.TaskResult {
	return runTask(ctx, p.Kind(), task, func(ctx context.Context, input domain.TaskInput) (*taskOutcome, error) {
		in, ok := input.(domain.ContextInput)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected input %T", domain.ErrLogic, input)
		}
		pc, err := p.Context(ctx, in.PatientID)
		if err != nil {
			return nil, err
		}
		out := &taskOutcome{output: pc, confidence: contextConfidence(pc), source: "patient_store"}
		out.decide("derived %d risk factors for patient %s", len(pc.RiskFactors), pc.PatientID)
		out.recs.Warnings = append(out.recs.Warnings, pc.Warnings...)
		out.recs.FollowUp = append(out.recs.FollowUp, pc.InteractionConsiderations...)
		return out, nil
	})
}

// Context loads and derives a patient's context.
func (p *PatientContextProvider) Context(ctx context.Context, patientID string) (*domain.PatientContext, error) {
	id := strings.TrimSpace(patientID)
	if id == "" {
		return nil, fmt.Errorf("%w: empty patient id", domain.ErrInvalidInput)
	}
	record, err := p.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrPatientNotFound, id)
		}
		return nil, fmt.Errorf("load patient %s: %w", id, err)
	}
	return p.derive(record), nil
}

// List returns all known patient ids.
func (p *PatientContextProvider) List(ctx context.Context) ([]string, error) {
	ids, err := p.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return ids, nil
}

// Import saves snapshots into the store. Records are validated before any
// is written.
func (p *PatientContextProvider) Import(ctx context.Context, records []domain.PatientRecord) (int, error) {
	writer, ok := p.store.(driven.PatientWriter)
	if !ok {
		return 0, fmt.Errorf("%w: patient backend is read-only", domain.ErrInvalidInput)
	}
	for i, r := range records {
		if strings.TrimSpace(r.ID) == "" {
			return 0, fmt.Errorf("%w: record %d has no id", domain.ErrInvalidInput, i)
		}
		if r.Age < 0 || r.WeightKg < 0 || r.HeightCm < 0 {
			return 0, fmt.Errorf("%w: record %s has negative measurements", domain.ErrInvalidInput, r.ID)
		}
	}
	for i, r := range records {
		if err := writer.Save(ctx, r); err != nil {
			return i, fmt.Errorf("save patient %s: %w", r.ID, err)
		}
	}
	return len(records), nil
}

// contextConfidence drops when history or labs are missing.
func contextConfidence(pc *domain.PatientContext) float64 {
	c := 1.0
	c -= 0.1 * float64(len(pc.Warnings))
	return domain.Clamp01(c)
}

func (p *PatientContextProvider) derive(r *domain.PatientRecord) *domain.PatientContext {
	pc := &domain.PatientContext{
		PatientID: r.ID,
		Demographics: domain.Demographics{
			Age:      r.Age,
			Gender:   r.Gender,
			WeightKg: r.WeightKg,
			BMI:      domain.ComputeBMI(r.WeightKg, r.HeightCm),
		},
		Allergies:        r.Allergies,
		Conditions:       r.Conditions,
		AdverseReactions: r.AdverseReactions,
		LabValues:        make(map[string]domain.LabValue, len(r.LabResults)),
	}

	for _, m := range r.Medications {
		pc.CurrentMedications = append(pc.CurrentMedications, domain.Medication{
			DrugName:             m.DrugName,
			Dose:                 m.Dose,
			Frequency:            m.Frequency,
			DurationDays:         m.DurationDays,
			InteractionPotential: p.potential(m.DrugName),
		})
	}

	for _, l := range r.LabResults {
		name := domain.DrugKey(l.Name)
		prev, seen := pc.LabValues[name]
		if seen && prev.Date.After(l.Date) {
			continue // keep the most recent measurement
		}
		pc.LabValues[name] = domain.LabValue{
			Value:                l.Value,
			Unit:                 l.Unit,
			Date:                 l.Date,
			ClinicalSignificance: labFlags(name, l.Value),
		}
	}

	if r.HistoryUnavailable {
		pc.Warnings = append(pc.Warnings, "medical history unavailable; conditions were not considered")
	}
	if len(r.Medications) == 0 {
		pc.Warnings = append(pc.Warnings, "no current medication list on file")
	}
	if len(r.LabResults) == 0 {
		pc.Warnings = append(pc.Warnings, "no lab values on file")
	}

	p.deriveRiskFactors(pc)
	return pc
}

// potential tags a current medication's interaction potential.
func (p *PatientContextProvider) potential(drugName string) domain.InteractionPotential {
	generic := domain.DrugKey(drugName)
	if g, ok := lookupAlias(generic); ok {
		generic = g
	}
	switch {
	case p.kb.IsNarrowTherapeuticIndex(generic):
		return domain.PotentialHigh
	case p.kb.IsWatchListed(generic):
		return domain.PotentialModerate
	default:
		return domain.PotentialLow
	}
}

func labFlags(name string, v float64) []string {
	var flags []string
	switch name {
	case domain.LabEGFR:
		switch {
		case v < egfrSevere:
			flags = append(flags, "severe renal impairment")
		case v < egfrReduced:
			flags = append(flags, "reduced renal function")
		}
	case domain.LabINR:
		if v > inrHigh {
			flags = append(flags, "elevated INR: bleeding risk")
		}
	case domain.LabALT:
		if v > altElevated {
			flags = append(flags, "elevated ALT: possible hepatic impairment")
		}
	case domain.LabPotassium:
		switch {
		case v > potassiumHigh:
			flags = append(flags, "hyperkalemia")
		case v < potassiumLow:
			flags = append(flags, "hypokalemia")
		}
	}
	return flags
}

func (p *PatientContextProvider) deriveRiskFactors(pc *domain.PatientContext) {
	add := func(factor, impact, consideration string) {
		pc.RiskFactors = append(pc.RiskFactors, domain.RiskFactor{Factor: factor, Impact: impact})
		if consideration != "" {
			pc.InteractionConsiderations = append(pc.InteractionConsiderations, consideration)
		}
	}

	switch age := pc.Demographics.Age; {
	case age >= 75:
		add("advanced age (75+)", "high", "older adult: review Beers criteria and start low")
	case age >= 65:
		add("older adult (65-74)", "moderate", "older adult: review Beers criteria and start low")
	}

	egfr, hasEGFR := pc.Lab(domain.LabEGFR)
	switch {
	case hasEGFR && egfr.Value < egfrSevere:
		add("severe renal impairment", "high", "reduced renal function: adjust renally cleared drugs")
	case hasEGFR && egfr.Value < egfrReduced:
		add("reduced renal function", "moderate", "reduced renal function: adjust renally cleared drugs")
	case pc.HasActiveCondition(renalConditionKeywords...):
		add("kidney disease", "moderate", "reduced renal function: adjust renally cleared drugs")
	}

	alt, hasALT := pc.Lab(domain.LabALT)
	if hasALT && alt.Value > altElevated || pc.HasActiveCondition(hepaticConditionKeywords...) {
		add("hepatic impairment", "high", "hepatic impairment: review hepatically metabolised drugs")
	}

	for _, m := range pc.CurrentMedications {
		generic := domain.DrugKey(m.DrugName)
		if g, ok := lookupAlias(generic); ok {
			generic = g
		}
		if p.kb.InClass(generic, domain.ClassAnticoagulant) {
			add("on anticoagulation", "high", "on anticoagulation: monitor closely for bleeding interactions")
			break
		}
	}

	if inr, ok := pc.Lab(domain.LabINR); ok && inr.Value > inrHigh {
		add("supratherapeutic INR", "high", "")
	}

	if k, ok := pc.Lab(domain.LabPotassium); ok && k.Value > potassiumHigh {
		add("hyperkalemia", "moderate", "hyperkalemia: avoid potassium-sparing combinations")
	}

	switch n := len(pc.CurrentMedications); {
	case n >= polypharmacyHigh:
		add("polypharmacy (10+ medications)", "high", "polypharmacy: review the full list for cumulative interactions")
	case n >= polypharmacyMin:
		add("polypharmacy (5+ medications)", "moderate", "polypharmacy: review the full list for cumulative interactions")
	}

	if pc.HasActiveCondition(bleedingKeywords...) {
		add("bleeding history", "high", "bleeding history: avoid combinations that raise bleeding risk")
	}

	if len(pc.AdverseReactions) > 0 {
		add("prior adverse drug reactions", "moderate", "")
	}

	if len(pc.Allergies) > 0 {
		pc.InteractionConsiderations = append(pc.InteractionConsiderations,
			"documented allergies: screen for cross-reactivity")
	}
}
