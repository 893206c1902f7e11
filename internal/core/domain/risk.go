package domain

import "strings"

// RiskLevel is the pipeline's final classification.
type RiskLevel string

// Risk levels.
const (
	RiskSafe    RiskLevel = "SAFE"
	RiskWarning RiskLevel = "WARNING"
	RiskDanger  RiskLevel = "DANGER"
	RiskError   RiskLevel = "ERROR"
)

// Score thresholds for the weighted overall score.
const (
	DangerThreshold  = 0.7
	WarningThreshold = 0.4
)

// Component weights of the overall score.
const (
	WeightInteraction     = 0.4
	WeightPatientFactors  = 0.3
	WeightDrugTraits      = 0.2
	WeightClinicalContext = 0.1
)

// IsValid returns true if the level is recognised.
func (l RiskLevel) IsValid() bool {
	switch l {
	case RiskSafe, RiskWarning, RiskDanger, RiskError:
		return true
	default:
		return false
	}
}

// Rank orders levels so that escalation can take the maximum.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskDanger:
		return 2
	case RiskWarning:
		return 1
	default:
		return 0
	}
}

// Max returns the more severe of two non-error levels.
func (l RiskLevel) Max(other RiskLevel) RiskLevel {
	if other.Rank() > l.Rank() {
		return other
	}
	return l
}

// String returns the string representation.
func (l RiskLevel) String() string {
	return string(l)
}

// ParseRiskLevel parses a level case-insensitively.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	l := RiskLevel(strings.ToUpper(strings.TrimSpace(s)))
	return l, l.IsValid()
}

// LevelForScore maps an overall score to a risk level.
func LevelForScore(score float64) RiskLevel {
	switch {
	case score >= DangerThreshold:
		return RiskDanger
	case score >= WarningThreshold:
		return RiskWarning
	default:
		return RiskSafe
	}
}

// RiskScores holds the component scores, each in [0, 1].
type RiskScores struct {
	Overall             float64 `json:"overall"`
	Interaction         float64 `json:"interaction"`
	PatientFactors      float64 `json:"patient_factors"`
	DrugCharacteristics float64 `json:"drug_characteristics"`
	ClinicalContext     float64 `json:"clinical_context"`
}

// WeightedOverall combines the component scores.
func (s RiskScores) WeightedOverall() float64 {
	return WeightInteraction*s.Interaction +
		WeightPatientFactors*s.PatientFactors +
		WeightDrugTraits*s.DrugCharacteristics +
		WeightClinicalContext*s.ClinicalContext
}

// RiskAssessment is the terminal artifact of a pipeline run.
type RiskAssessment struct {
	RiskLevel       RiskLevel  `json:"risk_level"`
	Explanation     string     `json:"explanation"`
	Recommendations []string   `json:"recommendations"`
	RiskScores      RiskScores `json:"risk_scores"`
	Confidence      float64    `json:"confidence"`
	Warnings        []string   `json:"warnings,omitempty"`
}

// Kind identifies the task type producing this output.
func (*RiskAssessment) Kind() TaskType { return TaskTypeRiskAssessment }

// ErrorAssessment builds the synthetic ERROR artifact.
// It always carries at least one actionable recommendation.
func ErrorAssessment(explanation string, recommendations ...string) RiskAssessment {
	if len(recommendations) == 0 {
		recommendations = []string{"manual verification required"}
	}
	return RiskAssessment{
		RiskLevel:       RiskError,
		Explanation:     explanation,
		Recommendations: recommendations,
	}
}

// Clamp01 bounds v to [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
