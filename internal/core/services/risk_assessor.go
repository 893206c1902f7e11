package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
	"github.com/bivasb/medguard-ai-sub000/internal/core/ports/driven"
)

// Ensure RiskAssessor implements the interface.
var _ Subagent = (*RiskAssessor)(nil)

// Score constants.
const (
	noContextPatientScore = 0.3
	seriousEventBoost     = 0.2
	ntiContribution       = 0.4
	highRiskContribution  = 0.3
	escalateMajorConf     = 0.9
	escalateModerateConf  = 0.8
	beersMinAge           = 65
)

// Clinical-context trigger scores.
const (
	anticoagBleedingScore = 0.8
	nsaidKidneyScore      = 0.7
	highINRAnticoagScore  = 0.8
)

// duplicateClasses are therapeutic classes where two members together
// count as duplicate therapy.
var duplicateClasses = []string{
	domain.ClassAnticoagulant,
	domain.ClassNSAID,
	domain.ClassSSRI,
	domain.ClassOpioid,
	domain.ClassStatin,
	domain.ClassACEInhibitor,
	domain.ClassBenzodiazepine,
}

var levelExplanations = map[domain.RiskLevel]string{
	domain.RiskDanger:  "High risk: this combination may cause serious harm and should not be used without prescriber review.",
	domain.RiskWarning: "Moderate risk: this combination requires caution and monitoring.",
	domain.RiskSafe:    "Low risk: no clinically significant interactions were identified.",
}

var levelRecommendations = map[domain.RiskLevel][]string{
	domain.RiskDanger: {
		"Do not co-administer without prescriber review",
		"Consult a pharmacist or prescriber about safer alternatives",
	},
	domain.RiskWarning: {
		"Use with caution and monitor the patient closely",
		"Consult a pharmacist about dose adjustment or alternatives",
	},
	domain.RiskSafe: {
		"No interaction-specific action required; continue routine monitoring",
	},
}

// mechanismAdvice maps mechanism keywords to monitoring advice.
var mechanismAdvice = []struct {
	keyword string
	advice  string
}{
	{"bleeding", "Monitor for signs of bleeding (bruising, dark stools, haematuria) and check INR/CBC"},
	{"seroton", "Monitor for serotonin syndrome (agitation, tremor, hyperthermia, clonus)"},
	{"cyp", "Review doses: CYP-mediated changes in drug levels are likely"},
	{"cytochrome", "Review doses: CYP-mediated changes in drug levels are likely"},
	{"potassium", "Monitor serum potassium and renal function"},
	{"qt", "Obtain a baseline ECG and monitor the QT interval"},
	{"hypotens", "Monitor blood pressure"},
	{"vasodilation", "Monitor blood pressure"},
}

// RiskAssessor fuses drugs, interactions and patient context into a
// final risk level.
type RiskAssessor struct {
	kb driven.ClinicalKnowledgeBase
}

// NewRiskAssessor creates a risk assessor.
func NewRiskAssessor(kb driven.ClinicalKnowledgeBase) *RiskAssessor {
	return &RiskAssessor{kb: kb}
}

// Kind implements Subagent.
func (r *RiskAssessor) Kind() domain.TaskType {
	return domain.TaskTypeRiskAssessment
}

// Execute implements Subagent.
func (r *RiskAssessor) Execute(ctx context.Context, task domain.Task) domain.TaskResult {
	return runTask(ctx, r.Kind(), task, func(_ context.Context, input domain.TaskInput) (*taskOutcome, error) {
		in, ok := input.(domain.RiskInput)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected input %T", domain.ErrLogic, input)
		}
		if len(in.Drugs) < 2 {
			return nil, fmt.Errorf("%w: risk assessment needs at least 2 drugs, got %d", domain.ErrLogic, len(in.Drugs))
		}
		return r.assess(in), nil
	})
}

// assessment accumulates the assessment before it is frozen.
type assessment struct {
	out      *taskOutcome
	level    domain.RiskLevel
	clauses  []string
	recs     []string
	warnings []string
}

func (a *assessment) recommend(rec string) {
	a.recs = appendUnique(a.recs, rec)
}

func (a *assessment) warnf(format string, args ...any) {
	a.warnings = appendUnique(a.warnings, fmt.Sprintf(format, args...))
}

func (r *RiskAssessor) assess(in domain.RiskInput) *taskOutcome {
	interactions := sortedInteractions(in.Interactions)
	pc := in.Patient

	scores := domain.RiskScores{
		Interaction:         interactionScore(interactions),
		PatientFactors:      patientScore(pc),
		DrugCharacteristics: r.drugScore(in.Drugs),
		ClinicalContext:     r.clinicalScore(in.Drugs, pc),
	}
	scores.Overall = domain.Clamp01(scores.WeightedOverall())

	a := &assessment{out: &taskOutcome{source: "risk_model"}, level: domain.LevelForScore(scores.Overall)}
	a.out.decide("weighted score %.2f gives %s", scores.Overall, a.level)

	r.escalate(a, interactions)
	r.allergyOverride(a, in.Drugs, pc)
	r.duplicateTherapy(a, in.Drugs, pc)

	a.clauses = append(a.clauses, interactionClauses(interactions)...)
	if clause := patientClause(pc); clause != "" {
		a.clauses = append(a.clauses, clause)
	}

	for _, rec := range levelRecommendations[a.level] {
		a.recommend(rec)
	}
	if a.level != domain.RiskSafe {
		mechanismRecommendations(a, interactions)
		r.labRecommendations(a, in.Drugs)
	}
	r.patientRecommendations(a, in.Drugs, pc)
	r.knowledgeWarnings(a, in.Drugs, pc)

	if pc == nil {
		a.out.recs.Limitations = append(a.out.recs.Limitations, "no patient context: patient-specific risks were not assessed")
	}
	for _, ix := range interactions {
		if !ix.Found {
			a.out.recs.Limitations = append(a.out.recs.Limitations,
				fmt.Sprintf("no interaction evidence for %s + %s; absence of reports does not establish safety", ix.Drug1, ix.Drug2))
		}
	}

	explanation := levelExplanations[a.level]
	if len(a.clauses) > 0 {
		explanation += " " + strings.Join(a.clauses, " ")
	}

	result := &domain.RiskAssessment{
		RiskLevel:       a.level,
		Explanation:     explanation,
		Recommendations: a.recs,
		RiskScores:      scores,
		Confidence:      assessmentConfidence(interactions, pc),
		Warnings:        a.warnings,
	}
	a.out.output = result
	a.out.confidence = result.Confidence
	a.out.recs.Warnings = append(a.out.recs.Warnings, a.warnings...)
	return a.out
}

// sortedInteractions orders by severity then pair key so that output does
// not depend on request order.
func sortedInteractions(in []domain.Interaction) []domain.Interaction {
	out := make([]domain.Interaction, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity.Rank() != out[j].Severity.Rank() {
			return out[i].Severity.Rank() > out[j].Severity.Rank()
		}
		return out[i].PairKey() < out[j].PairKey()
	})
	return out
}

func interactionScore(interactions []domain.Interaction) float64 {
	var best float64
	for _, ix := range interactions {
		s := ix.Severity.Score()
		if ix.SeriousEvents > majorSeriousEvents {
			s += seriousEventBoost
		}
		if s = domain.Clamp01(s); s > best {
			best = s
		}
	}
	return best
}

func patientScore(pc *domain.PatientContext) float64 {
	if pc == nil {
		return noContextPatientScore
	}
	var contributions []float64

	switch age := pc.Demographics.Age; {
	case age >= 75:
		contributions = append(contributions, 0.3)
	case age >= 65:
		contributions = append(contributions, 0.2)
	}
	if egfr, ok := pc.Lab(domain.LabEGFR); ok {
		switch {
		case egfr.Value < egfrSevere:
			contributions = append(contributions, 0.4)
		case egfr.Value < egfrReduced:
			contributions = append(contributions, 0.2)
		}
	}
	if alt, ok := pc.Lab(domain.LabALT); ok && alt.Value > altElevated {
		contributions = append(contributions, 0.3)
	}
	switch n := len(pc.CurrentMedications); {
	case n >= polypharmacyHigh:
		contributions = append(contributions, 0.3)
	case n >= polypharmacyMin:
		contributions = append(contributions, 0.2)
	}
	if len(pc.AdverseReactions) > 0 {
		contributions = append(contributions, 0.2)
	}

	if len(contributions) == 0 {
		return 0
	}
	var sum float64
	for _, c := range contributions {
		sum += c
	}
	return sum / float64(len(contributions))
}

func (r *RiskAssessor) drugScore(drugs []domain.NormalizedDrug) float64 {
	if len(drugs) == 0 {
		return 0
	}
	var sum float64
	for _, d := range drugs {
		var s float64
		if r.kb.IsNarrowTherapeuticIndex(d.Key()) {
			s += ntiContribution
		}
		if r.kb.IsHighRisk(d.Key()) {
			s += highRiskContribution
		}
		sum += s
	}
	return domain.Clamp01(sum / float64(len(drugs)))
}

func (r *RiskAssessor) anyInClass(drugs []domain.NormalizedDrug, class string) bool {
	for _, d := range drugs {
		if r.kb.InClass(d.Key(), class) {
			return true
		}
	}
	return false
}

func (r *RiskAssessor) clinicalScore(drugs []domain.NormalizedDrug, pc *domain.PatientContext) float64 {
	if pc == nil {
		return 0
	}
	var best float64
	raise := func(s float64) {
		if s > best {
			best = s
		}
	}

	anticoag := r.anyInClass(drugs, domain.ClassAnticoagulant)
	if anticoag && pc.HasActiveCondition(bleedingKeywords...) {
		raise(anticoagBleedingScore)
	}
	if r.anyInClass(drugs, domain.ClassNSAID) && pc.HasActiveCondition(renalConditionKeywords...) {
		raise(nsaidKidneyScore)
	}
	if inr, ok := pc.Lab(domain.LabINR); ok && inr.Value > inrHigh {
		if anticoag || r.onAnticoagulant(pc) {
			raise(highINRAnticoagScore)
		}
	}
	for _, d := range drugs {
		for _, ci := range r.kb.ConditionInteractions(d.Key()) {
			if pc.HasActiveCondition(ci.Condition) {
				raise(ci.Score)
			}
		}
	}
	return domain.Clamp01(best)
}

func (r *RiskAssessor) onAnticoagulant(pc *domain.PatientContext) bool {
	for _, m := range pc.CurrentMedications {
		if r.kb.InClass(medGeneric(m.DrugName), domain.ClassAnticoagulant) {
			return true
		}
	}
	return false
}

// escalate applies severity floors for found interactions.
func (r *RiskAssessor) escalate(a *assessment, interactions []domain.Interaction) {
	for _, ix := range interactions {
		if !ix.Found {
			continue
		}
		floor := domain.RiskSafe
		switch {
		case ix.Severity == domain.SeverityMajor && ix.Confidence >= escalateMajorConf:
			floor = domain.RiskDanger
		case ix.Severity == domain.SeverityMajor:
			floor = domain.RiskWarning
		case ix.Severity == domain.SeverityModerate && ix.Confidence >= escalateModerateConf:
			floor = domain.RiskWarning
		}
		if floor.Rank() > a.level.Rank() {
			a.out.decide("%s interaction %s + %s raised level to %s", ix.Severity, ix.Drug1, ix.Drug2, floor)
			a.level = floor
		}
	}
}

// allergyOverride forces DANGER on a direct or cross-reactive allergy match.
func (r *RiskAssessor) allergyOverride(a *assessment, drugs []domain.NormalizedDrug, pc *domain.PatientContext) {
	if pc == nil {
		return
	}
	for _, allergy := range pc.Allergies {
		allergen := domain.DrugKey(allergy)
		if allergen == "" {
			continue
		}
		if g, ok := lookupAlias(allergen); ok {
			allergen = g
		}
		classes := r.kb.CrossReactiveClasses(allergen)

		for _, d := range drugs {
			reason := ""
			if matchesAllergen(d, allergen) {
				reason = fmt.Sprintf("patient is allergic to %s", allergy)
			} else {
				for _, class := range classes {
					if r.kb.InClass(d.Key(), class) {
						reason = fmt.Sprintf("%s allergy cross-reacts with %s (%s)", allergy, d.GenericName, class)
						break
					}
				}
			}
			if reason == "" {
				continue
			}
			a.level = domain.RiskDanger
			a.out.decide("allergy override: %s", reason)
			a.clauses = append(a.clauses, "Allergy: "+reason+".")
			a.recommend(fmt.Sprintf("Do not give %s: documented %s allergy; choose a non-cross-reactive alternative", d.GenericName, allergy))
		}
	}
}

func matchesAllergen(d domain.NormalizedDrug, allergen string) bool {
	if d.Key() == allergen || domain.DrugKey(d.OriginalInput) == allergen {
		return true
	}
	for _, n := range append(append([]string{}, d.BrandNames...), d.ActiveIngredients...) {
		if domain.DrugKey(n) == allergen {
			return true
		}
	}
	return false
}

// duplicateTherapy warns about drugs already present in the current
// medications. It never changes the level.
func (r *RiskAssessor) duplicateTherapy(a *assessment, drugs []domain.NormalizedDrug, pc *domain.PatientContext) {
	if pc == nil {
		return
	}
	for _, d := range drugs {
		for _, m := range pc.CurrentMedications {
			med := medGeneric(m.DrugName)
			if med == d.Key() {
				a.warnf("duplicate therapy: %s is already in the current medications", d.GenericName)
				continue
			}
			for _, class := range duplicateClasses {
				if r.kb.InClass(d.Key(), class) && r.kb.InClass(med, class) {
					a.warnf("therapeutic duplication: %s and current medication %s are both %s", d.GenericName, med, class)
				}
			}
		}
	}
}

func medGeneric(name string) string {
	key := domain.DrugKey(name)
	if g, ok := lookupAlias(key); ok {
		return g
	}
	return key
}

func interactionClauses(interactions []domain.Interaction) []string {
	var clauses []string
	for _, ix := range interactions {
		if !ix.Found {
			continue
		}
		clause := fmt.Sprintf("%s + %s: %s interaction (%s).", ix.Drug1, ix.Drug2, ix.Severity, ix.Mechanism)
		if ix.Description != "" {
			clause += " " + ix.Description
		}
		clauses = append(clauses, clause)
	}
	return clauses
}

func patientClause(pc *domain.PatientContext) string {
	if pc == nil || len(pc.RiskFactors) == 0 {
		return ""
	}
	factors := make([]string, 0, len(pc.RiskFactors))
	for _, f := range pc.RiskFactors {
		factors = append(factors, f.Factor)
	}
	return "Patient factors: " + strings.Join(factors, ", ") + "."
}

func mechanismRecommendations(a *assessment, interactions []domain.Interaction) {
	for _, ix := range interactions {
		if !ix.Found {
			continue
		}
		mech := strings.ToLower(ix.Mechanism)
		for _, m := range mechanismAdvice {
			if strings.Contains(mech, m.keyword) {
				a.recommend(m.advice)
			}
		}
		if ix.Severity == domain.SeverityMajor && ix.ClinicalSignificance != "" {
			a.recommend(ix.ClinicalSignificance)
		}
	}
}

func (r *RiskAssessor) labRecommendations(a *assessment, drugs []domain.NormalizedDrug) {
	for _, d := range drugs {
		for _, li := range r.kb.LabInteractions(d.Key()) {
			a.recommend(fmt.Sprintf("Monitor %s (%s): %s", li.Lab, d.GenericName, li.Note))
		}
	}
}

func (r *RiskAssessor) patientRecommendations(a *assessment, drugs []domain.NormalizedDrug, pc *domain.PatientContext) {
	if pc == nil {
		return
	}
	if pc.Demographics.Age >= beersMinAge {
		a.recommend(fmt.Sprintf("Age %d: consider dose reduction and start low, go slow", pc.Demographics.Age))
	}
	if egfr, ok := pc.Lab(domain.LabEGFR); ok && egfr.Value < egfrReduced {
		rec := fmt.Sprintf("Renal impairment (eGFR %.0f): adjust doses of renally cleared drugs", egfr.Value)
		if names := r.renallyAdjusted(drugs); len(names) > 0 {
			rec += " (" + strings.Join(names, ", ") + ")"
		}
		a.recommend(rec)
	}
	if alt, ok := pc.Lab(domain.LabALT); ok && alt.Value > altElevated {
		a.recommend(fmt.Sprintf("Elevated ALT (%.0f): review hepatically metabolised drugs", alt.Value))
	}
}

// renallyAdjusted lists drugs whose profile calls for renal dosing.
func (r *RiskAssessor) renallyAdjusted(drugs []domain.NormalizedDrug) []string {
	var names []string
	for _, d := range drugs {
		if p, ok := r.kb.Profile(d.Key()); ok && p.RenalDoseAdjustment {
			names = append(names, d.GenericName)
		}
	}
	return names
}

// knowledgeWarnings adds Beers criteria and food interaction warnings.
// They do not change the level.
func (r *RiskAssessor) knowledgeWarnings(a *assessment, drugs []domain.NormalizedDrug, pc *domain.PatientContext) {
	for _, d := range drugs {
		if pc != nil && pc.Demographics.Age >= beersMinAge {
			if flag, ok := r.kb.BeersCriteria(d.Key(), pc.Demographics.Age); ok {
				a.warnf("Beers criteria: %s is potentially inappropriate at age %d (%s)", d.GenericName, pc.Demographics.Age, flag.Rationale)
				a.recommend(flag.Recommendation)
			}
		}
		for _, fi := range r.kb.FoodInteractions(d.Key()) {
			a.warnf("%s with %s: %s. %s", d.GenericName, fi.Food, fi.Effect, fi.Advice)
		}
	}
}

func assessmentConfidence(interactions []domain.Interaction, pc *domain.PatientContext) float64 {
	c := 0.5
	for _, ix := range interactions {
		if ix.Found {
			c += 0.2
			break
		}
	}
	if pc != nil {
		c += 0.2
		if pc.HasLabs() {
			c += 0.1
		}
	}
	return domain.Clamp01(c)
}
