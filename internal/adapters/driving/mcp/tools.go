package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
)

// CheckInteractionInput is the input schema for the check_interaction tool.
type CheckInteractionInput struct {
	Drugs     []string `json:"drugs" jsonschema:"two or more drug names (generic or brand)"`
	PatientID string   `json:"patient_id,omitempty" jsonschema:"optional patient id for personalised risk"`
}

// CheckInteractionOutput is the output schema for the check_interaction tool.
type CheckInteractionOutput struct {
	RequestID       string              `json:"request_id"`
	RiskLevel       string              `json:"risk_level"`
	Explanation     string              `json:"explanation"`
	Recommendations []string            `json:"recommendations"`
	Confidence      float64             `json:"confidence"`
	Scores          domain.RiskScores   `json:"risk_scores"`
	Drugs           []DrugOutput        `json:"drugs"`
	Interactions    []InteractionOutput `json:"interactions"`
	PatientContext  bool                `json:"patient_context_used"`
	Warnings        []string            `json:"warnings,omitempty"`
	Errors          []string            `json:"errors,omitempty"`
	TotalTimeMS     int64               `json:"total_time_ms"`
}

// DrugOutput is a resolved drug.
type DrugOutput struct {
	Input       string   `json:"input"`
	GenericName string   `json:"generic_name"`
	RxCUI       string   `json:"rxcui,omitempty"`
	BrandNames  []string `json:"brand_names,omitempty"`
	Confidence  float64  `json:"confidence"`
}

// InteractionOutput is one checked pair.
type InteractionOutput struct {
	Drug1      string  `json:"drug1"`
	Drug2      string  `json:"drug2"`
	Severity   string  `json:"severity"`
	Mechanism  string  `json:"mechanism"`
	Found      bool    `json:"found"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// NormalizeDrugInput is the input schema for the normalize_drug tool.
type NormalizeDrugInput struct {
	Name string `json:"name" jsonschema:"free-text drug name to resolve"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "check_interaction",
		Description: "Check two or more drugs for clinically significant interactions, optionally for a patient",
	}, s.handleCheckInteraction)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "normalize_drug",
		Description: "Resolve a drug name to its generic name, concept id and brand names",
	}, s.handleNormalizeDrug)
}

// handleCheckInteraction handles the check_interaction tool invocation.
// Pipeline failures come back as an ERROR risk level, not a tool error.
func (s *Server) handleCheckInteraction(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CheckInteractionInput,
) (*mcp.CallToolResult, CheckInteractionOutput, error) {
	result, err := s.ports.Interaction.CheckInteraction(ctx, domain.CheckRequest{
		Drugs:     input.Drugs,
		PatientID: input.PatientID,
	})
	if err != nil {
		return nil, CheckInteractionOutput{}, fmt.Errorf("check_interaction: %w", err)
	}

	return nil, toCheckOutput(result), nil
}

// handleNormalizeDrug handles the normalize_drug tool invocation.
func (s *Server) handleNormalizeDrug(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input NormalizeDrugInput,
) (*mcp.CallToolResult, DrugOutput, error) {
	drug, err := s.ports.Interaction.NormalizeDrug(ctx, input.Name)
	if err != nil {
		return nil, DrugOutput{}, fmt.Errorf("normalize_drug: %w", err)
	}
	return nil, toDrugOutput(*drug), nil
}

func toCheckOutput(r *domain.CheckResult) CheckInteractionOutput {
	out := CheckInteractionOutput{
		RequestID:       r.RequestID,
		RiskLevel:       string(r.Assessment.RiskLevel),
		Explanation:     r.Assessment.Explanation,
		Recommendations: r.Assessment.Recommendations,
		Confidence:      r.Assessment.Confidence,
		Scores:          r.Assessment.RiskScores,
		Drugs:           make([]DrugOutput, len(r.Drugs)),
		Interactions:    make([]InteractionOutput, len(r.Interactions)),
		PatientContext:  r.PatientContextUsed,
		Warnings:        append(append([]string{}, r.Warnings...), r.Assessment.Warnings...),
		Errors:          r.Errors,
		TotalTimeMS:     r.TotalTimeMS,
	}
	for i, d := range r.Drugs {
		out.Drugs[i] = toDrugOutput(d)
	}
	for i, ix := range r.Interactions {
		out.Interactions[i] = InteractionOutput{
			Drug1:      ix.Drug1,
			Drug2:      ix.Drug2,
			Severity:   string(ix.Severity),
			Mechanism:  ix.Mechanism,
			Found:      ix.Found,
			Confidence: ix.Confidence,
			Source:     ix.Source,
		}
	}
	return out
}

func toDrugOutput(d domain.NormalizedDrug) DrugOutput {
	return DrugOutput{
		Input:       d.OriginalInput,
		GenericName: d.GenericName,
		RxCUI:       d.RxCUI,
		BrandNames:  d.BrandNames,
		Confidence:  d.Confidence,
	}
}
