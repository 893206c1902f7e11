package domain

import (
	"fmt"
	"strings"
	"time"
)

// Stage is a state of the interaction-check pipeline.
type Stage string

// Pipeline stages in execution order.
const (
	StageParseInput         Stage = "parse_input"
	StageNormalizeDrugs     Stage = "normalize_drugs"
	StageGetPatientContext  Stage = "get_patient_context"
	StageCheckInteractions  Stage = "check_interactions"
	StageAssessRisk         Stage = "assess_risk"
	StageFormatResponse     Stage = "format_response"
	StageTerminal           Stage = "terminal"
)

// IsValid returns true if the stage is recognised.
func (s Stage) IsValid() bool {
	switch s {
	case StageParseInput, StageNormalizeDrugs, StageGetPatientContext,
		StageCheckInteractions, StageAssessRisk, StageFormatResponse, StageTerminal:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s Stage) String() string {
	return string(s)
}

// Description returns a human-readable description of the stage.
func (s Stage) Description() string {
	switch s {
	case StageParseInput:
		return "input validation"
	case StageNormalizeDrugs:
		return "drug normalization"
	case StageGetPatientContext:
		return "patient context retrieval"
	case StageCheckInteractions:
		return "interaction checking"
	case StageAssessRisk:
		return "risk assessment"
	case StageFormatResponse:
		return "response formatting"
	case StageTerminal:
		return "done"
	default:
		return "unknown stage"
	}
}

// CheckRequest is a caller's request to check drugs for interactions.
type CheckRequest struct {
	Drugs     []string `json:"drugs"`
	PatientID string   `json:"patient_id,omitempty"`
}

// Validate checks the request shape before any work is dispatched.
func (r CheckRequest) Validate() error {
	n := 0
	for _, d := range r.Drugs {
		if strings.TrimSpace(d) != "" {
			n++
		}
	}
	if n < 2 {
		return fmt.Errorf("%w (got %d)", ErrInsufficientDrugs, n)
	}
	return nil
}

// ProcessingStep is one audit entry of the pipeline.
type ProcessingStep struct {
	Node       Stage          `json:"node"`
	Timestamp  time.Time      `json:"timestamp"`
	DurationMS int64          `json:"duration_ms"`
	Details    map[string]any `json:"details,omitempty"`
}

// CheckResult is the formatted response of a pipeline run.
type CheckResult struct {
	RequestID          string           `json:"request_id"`
	Assessment         RiskAssessment   `json:"assessment"`
	Drugs              []NormalizedDrug `json:"drugs"`
	Interactions       []Interaction    `json:"interactions"`
	PatientContextUsed bool             `json:"patient_context_used"`
	ProcessingSteps    []ProcessingStep `json:"processing_steps"`
	Warnings           []string         `json:"warnings,omitempty"`
	Errors             []string         `json:"errors,omitempty"`
	TotalTimeMS        int64            `json:"total_time_ms"`
}

// Interaction returns the interaction for a pair, if one was recorded.
func (r *CheckResult) Interaction(a, b string) (Interaction, bool) {
	key := PairKey(a, b)
	for _, ix := range r.Interactions {
		if ix.PairKey() == key {
			return ix, true
		}
	}
	return Interaction{}, false
}
