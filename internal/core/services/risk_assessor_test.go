package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bivasb/medguard-ai-sub000/internal/adapters/driven/storage/memory"
	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
)

func drugs(names ...string) []domain.NormalizedDrug {
	out := make([]domain.NormalizedDrug, 0, len(names))
	for _, n := range names {
		out = append(out, domain.NormalizedDrug{OriginalInput: n, GenericName: n, RxCUI: "x-" + n, Confidence: 1})
	}
	return out
}

func interaction(a, b string, sev domain.Severity, conf float64, found bool) domain.Interaction {
	return domain.Interaction{
		Drug1:      a,
		Drug2:      b,
		Severity:   sev,
		Confidence: conf,
		Found:      found,
		Mechanism:  "test mechanism",
	}
}

func contextFor(t *testing.T, record domain.PatientRecord) *domain.PatientContext {
	t.Helper()
	p := NewPatientContextProvider(memory.NewPatientStore(record), testKB)
	pc, err := p.Context(context.Background(), record.ID)
	require.NoError(t, err)
	return pc
}

func assess(t *testing.T, in domain.RiskInput) (*domain.RiskAssessment, domain.TaskResult) {
	t.Helper()
	r := NewRiskAssessor(testKB).Execute(context.Background(), newTask(in, "assess", testSettings()))
	require.True(t, r.OK(), r.Error)
	ra, ok := r.Output.(*domain.RiskAssessment)
	require.True(t, ok)
	return ra, r
}

func TestRiskAssessor_NeedsTwoDrugs(t *testing.T) {
	in := domain.RiskInput{Drugs: drugs("warfarin")}

	r := NewRiskAssessor(testKB).Execute(context.Background(), newTask(in, "assess", testSettings()))

	assert.False(t, r.OK())
	assert.ErrorIs(t, r.Err, domain.ErrLogic)
}

func TestRiskAssessor_NoSignalIsSafe(t *testing.T) {
	ra, r := assess(t, domain.RiskInput{
		Drugs:        drugs("amlodipine", "metformin"),
		Interactions: []domain.Interaction{interaction("amlodipine", "metformin", domain.SeverityUnknown, 0.6, false)},
	})

	assert.Equal(t, domain.RiskSafe, ra.RiskLevel)
	assert.Contains(t, ra.Explanation, "Low risk")
	assert.NotEmpty(t, ra.Recommendations)
	assert.InDelta(t, 0.5, ra.Confidence, 1e-9)
	assert.InDelta(t, noContextPatientScore, ra.RiskScores.PatientFactors, 1e-9)
	assert.True(t, containsSubstring(r.Recommendations.Limitations, "no patient context"))
	assert.True(t, containsSubstring(r.Recommendations.Limitations, "absence of reports"))
}

func TestRiskAssessor_WeightedScore(t *testing.T) {
	ra, _ := assess(t, domain.RiskInput{
		Drugs:        drugs("warfarin", "levothyroxine"),
		Interactions: []domain.Interaction{interaction("levothyroxine", "warfarin", domain.SeverityMinor, 0.7, true)},
	})

	s := ra.RiskScores
	assert.InDelta(t, 0.3, s.Interaction, 1e-9)
	assert.InDelta(t, 0.3, s.PatientFactors, 1e-9)
	// warfarin: NTI 0.4 + high risk 0.3; levothyroxine: NTI 0.4
	assert.InDelta(t, 0.55, s.DrugCharacteristics, 1e-9)
	assert.Zero(t, s.ClinicalContext)
	assert.InDelta(t, s.WeightedOverall(), s.Overall, 1e-9)
	assert.Equal(t, domain.LevelForScore(s.Overall), ra.RiskLevel)
}

func TestRiskAssessor_SeriousEventBoost(t *testing.T) {
	ix := interaction("amlodipine", "metformin", domain.SeverityModerate, 0.8, true)
	ix.SeriousEvents = 25

	ra, _ := assess(t, domain.RiskInput{Drugs: drugs("amlodipine", "metformin"), Interactions: []domain.Interaction{ix}})

	assert.InDelta(t, 0.8, ra.RiskScores.Interaction, 1e-9)
}

func TestRiskAssessor_Escalation(t *testing.T) {
	tests := []struct {
		name string
		ix   domain.Interaction
		want domain.RiskLevel
	}{
		{"confident major", interaction("amlodipine", "metformin", domain.SeverityMajor, 0.95, true), domain.RiskDanger},
		{"fallback major", interaction("amlodipine", "metformin", domain.SeverityMajor, 0.7, true), domain.RiskWarning},
		{"confident moderate", interaction("amlodipine", "metformin", domain.SeverityModerate, 0.8, true), domain.RiskWarning},
		{"weak moderate", interaction("amlodipine", "metformin", domain.SeverityModerate, 0.7, true), domain.RiskSafe},
		{"minor", interaction("amlodipine", "metformin", domain.SeverityMinor, 0.9, true), domain.RiskSafe},
		{"not found", interaction("amlodipine", "metformin", domain.SeverityUnknown, 0.6, false), domain.RiskSafe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ra, _ := assess(t, domain.RiskInput{Drugs: drugs("amlodipine", "metformin"), Interactions: []domain.Interaction{tt.ix}})
			assert.Equal(t, tt.want, ra.RiskLevel)
		})
	}
}

func TestRiskAssessor_AllergyOverride(t *testing.T) {
	tests := []struct {
		name    string
		allergy string
		drugs   []string
		danger  bool
	}{
		{"direct generic", "warfarin", []string{"warfarin", "amlodipine"}, true},
		{"brand name allergy", "Coumadin", []string{"warfarin", "amlodipine"}, true},
		{"penicillin to amoxicillin", "Penicillin", []string{"amoxicillin", "metformin"}, true},
		{"penicillin to cephalexin", "penicillin", []string{"cephalexin", "metformin"}, true},
		{"aspirin to ibuprofen", "aspirin", []string{"ibuprofen", "metformin"}, true},
		{"unrelated allergy", "latex", []string{"amoxicillin", "metformin"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc := contextFor(t, domain.PatientRecord{ID: "p", Age: 40, Allergies: []string{tt.allergy}})

			ra, _ := assess(t, domain.RiskInput{Drugs: drugs(tt.drugs...), Patient: pc})

			if tt.danger {
				assert.Equal(t, domain.RiskDanger, ra.RiskLevel)
				assert.Contains(t, ra.Explanation, "Allergy:")
				assert.True(t, containsSubstring(ra.Recommendations, "Do not give "+tt.drugs[0]))
			} else {
				assert.Equal(t, domain.RiskSafe, ra.RiskLevel)
			}
		})
	}
}

func TestRiskAssessor_DuplicateTherapyDoesNotChangeLevel(t *testing.T) {
	in := domain.RiskInput{Drugs: drugs("aspirin", "metformin")}
	base, _ := assess(t, domain.RiskInput{Drugs: in.Drugs, Patient: contextFor(t, domain.PatientRecord{ID: "p", Age: 40})})

	pc := contextFor(t, domain.PatientRecord{
		ID:          "p",
		Age:         40,
		Medications: []domain.MedicationRecord{{DrugName: "Advil"}, {DrugName: "metformin"}},
	})
	ra, _ := assess(t, domain.RiskInput{Drugs: in.Drugs, Patient: pc})

	assert.Equal(t, base.RiskLevel, ra.RiskLevel)
	assert.True(t, containsSubstring(ra.Warnings, "therapeutic duplication: aspirin and current medication ibuprofen are both nsaid"))
	assert.True(t, containsSubstring(ra.Warnings, "duplicate therapy: metformin"))
}

func TestRiskAssessor_ClinicalContext(t *testing.T) {
	t.Run("anticoagulant with active bleeding history", func(t *testing.T) {
		pc := contextFor(t, domain.PatientRecord{
			ID:         "p",
			Age:        50,
			Conditions: []domain.Condition{{Condition: "GI bleed", Status: "active"}},
		})
		ra, _ := assess(t, domain.RiskInput{Drugs: drugs("warfarin", "amlodipine"), Patient: pc})
		assert.InDelta(t, anticoagBleedingScore, ra.RiskScores.ClinicalContext, 1e-9)
	})

	t.Run("resolved conditions do not count", func(t *testing.T) {
		pc := contextFor(t, domain.PatientRecord{
			ID:         "p",
			Age:        50,
			Conditions: []domain.Condition{{Condition: "GI bleed", Status: "resolved"}},
		})
		ra, _ := assess(t, domain.RiskInput{Drugs: drugs("warfarin", "amlodipine"), Patient: pc})
		assert.Zero(t, ra.RiskScores.ClinicalContext)
	})

	t.Run("high INR on current anticoagulant", func(t *testing.T) {
		pc := contextFor(t, domain.PatientRecord{
			ID:          "p",
			Age:         50,
			Medications: []domain.MedicationRecord{{DrugName: "warfarin"}},
			LabResults:  []domain.LabResult{{Name: "INR", Value: 3.6, Date: time.Now()}},
		})
		ra, _ := assess(t, domain.RiskInput{Drugs: drugs("amlodipine", "metformin"), Patient: pc})
		assert.InDelta(t, highINRAnticoagScore, ra.RiskScores.ClinicalContext, 1e-9)
	})

	t.Run("NSAID with kidney disease", func(t *testing.T) {
		pc := contextFor(t, domain.PatientRecord{
			ID:         "p",
			Age:        50,
			Conditions: []domain.Condition{{Condition: "Chronic kidney disease", Status: "active"}},
		})
		ra, _ := assess(t, domain.RiskInput{Drugs: drugs("ibuprofen", "amlodipine"), Patient: pc})
		assert.InDelta(t, nsaidKidneyScore, ra.RiskScores.ClinicalContext, 1e-9)
	})
}

func TestRiskAssessor_PatientFactors(t *testing.T) {
	pc := contextFor(t, domain.PatientRecord{
		ID:         "p",
		Age:        80,
		LabResults: []domain.LabResult{{Name: "eGFR", Value: 25, Date: time.Now()}},
	})

	ra, _ := assess(t, domain.RiskInput{Drugs: drugs("amlodipine", "metformin"), Patient: pc})

	assert.InDelta(t, 0.35, ra.RiskScores.PatientFactors, 1e-9)
	assert.InDelta(t, 0.8, ra.Confidence, 1e-9)
	assert.True(t, containsSubstring(ra.Recommendations, "Renal impairment (eGFR 25)"))
	assert.True(t, containsSubstring(ra.Recommendations, "renally cleared drugs (metformin)"))
	assert.False(t, containsSubstring(ra.Recommendations, "amlodipine)"))
	assert.True(t, containsSubstring(ra.Recommendations, "Age 80"))
	assert.Contains(t, ra.Explanation, "Patient factors:")
}

func TestRiskAssessor_KnowledgeWarnings(t *testing.T) {
	t.Run("Beers criteria for older adults", func(t *testing.T) {
		pc := contextFor(t, domain.PatientRecord{ID: "p", Age: 72})
		ra, _ := assess(t, domain.RiskInput{Drugs: drugs("diazepam", "amlodipine"), Patient: pc})
		assert.True(t, containsSubstring(ra.Warnings, "Beers criteria: diazepam"))
	})

	t.Run("no Beers warning for younger patients", func(t *testing.T) {
		pc := contextFor(t, domain.PatientRecord{ID: "p", Age: 50})
		ra, _ := assess(t, domain.RiskInput{Drugs: drugs("diazepam", "amlodipine"), Patient: pc})
		assert.False(t, containsSubstring(ra.Warnings, "Beers"))
	})

	t.Run("food interactions without patient", func(t *testing.T) {
		ra, _ := assess(t, domain.RiskInput{Drugs: drugs("warfarin", "amlodipine")})
		assert.True(t, containsSubstring(ra.Warnings, "vitamin K"))
	})
}

func TestRiskAssessor_MechanismAndLabRecommendations(t *testing.T) {
	ix := interaction("aspirin", "warfarin", domain.SeverityMajor, 0.95, true)
	ix.Mechanism = "additive bleeding risk"
	ix.ClinicalSignificance = "Avoid unless specifically indicated."

	ra, _ := assess(t, domain.RiskInput{Drugs: drugs("aspirin", "warfarin"), Interactions: []domain.Interaction{ix}})

	assert.Equal(t, domain.RiskDanger, ra.RiskLevel)
	assert.True(t, containsSubstring(ra.Recommendations, "Monitor for signs of bleeding"))
	assert.True(t, containsSubstring(ra.Recommendations, "Monitor INR (warfarin)"))
	assert.Contains(t, ra.Recommendations, "Avoid unless specifically indicated.")
	assert.InDelta(t, 0.7, ra.Confidence, 1e-9)
}

func TestRiskAssessor_OrderIndependent(t *testing.T) {
	ixs := []domain.Interaction{
		interaction("aspirin", "warfarin", domain.SeverityMajor, 0.95, true),
		interaction("ibuprofen", "warfarin", domain.SeverityMajor, 0.95, true),
		interaction("aspirin", "ibuprofen", domain.SeverityMinor, 0.7, true),
	}
	reversed := []domain.Interaction{ixs[2], ixs[1], ixs[0]}

	a, _ := assess(t, domain.RiskInput{Drugs: drugs("aspirin", "ibuprofen", "warfarin"), Interactions: ixs})
	b, _ := assess(t, domain.RiskInput{Drugs: drugs("aspirin", "ibuprofen", "warfarin"), Interactions: reversed})

	assert.Equal(t, a, b)
}
