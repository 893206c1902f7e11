package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
)

func sampleResult() *domain.CheckResult {
	return &domain.CheckResult{
		RequestID: "req-1",
		Assessment: domain.RiskAssessment{
			RiskLevel:       domain.RiskDanger,
			Explanation:     "warfarin and aspirin together raise bleeding risk",
			Recommendations: []string{"avoid combination"},
			Confidence:      0.9,
			RiskScores:      domain.RiskScores{Overall: 0.85, Interaction: 0.9},
			Warnings:        []string{"assessor warning"},
		},
		Drugs: []domain.NormalizedDrug{
			{OriginalInput: "Coumadin", GenericName: "warfarin", RxCUI: "11289", BrandNames: []string{"Coumadin"}, Confidence: 0.95},
			{OriginalInput: "aspirin", GenericName: "aspirin", RxCUI: "1191", Confidence: 1},
		},
		Interactions: []domain.Interaction{
			{Drug1: "warfarin", Drug2: "aspirin", Severity: domain.SeverityMajor, Mechanism: "additive anticoagulation", Found: true, Confidence: 0.9, Source: "knowledge_base"},
		},
		PatientContextUsed: true,
		Warnings:           []string{"pipeline warning"},
		TotalTimeMS:        42,
	}
}

func TestServer_handleCheckInteraction(t *testing.T) {
	ctx := context.Background()

	t.Run("maps the pipeline result", func(t *testing.T) {
		svc := &mockInteractionService{result: sampleResult()}
		server, err := NewServer(&Ports{Interaction: svc})
		require.NoError(t, err)

		input := CheckInteractionInput{Drugs: []string{"Coumadin", "aspirin"}, PatientID: "P001"}
		_, output, err := server.handleCheckInteraction(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, []string{"Coumadin", "aspirin"}, svc.lastRequest.Drugs)
		assert.Equal(t, "P001", svc.lastRequest.PatientID)

		assert.Equal(t, "req-1", output.RequestID)
		assert.Equal(t, "DANGER", output.RiskLevel)
		assert.Equal(t, []string{"avoid combination"}, output.Recommendations)
		assert.InDelta(t, 0.85, output.Scores.Overall, 1e-9)
		assert.True(t, output.PatientContext)
		assert.Equal(t, int64(42), output.TotalTimeMS)
		assert.Equal(t, []string{"pipeline warning", "assessor warning"}, output.Warnings)

		require.Len(t, output.Drugs, 2)
		assert.Equal(t, "Coumadin", output.Drugs[0].Input)
		assert.Equal(t, "warfarin", output.Drugs[0].GenericName)
		assert.Equal(t, "11289", output.Drugs[0].RxCUI)

		require.Len(t, output.Interactions, 1)
		assert.Equal(t, "MAJOR", output.Interactions[0].Severity)
		assert.True(t, output.Interactions[0].Found)
		assert.Equal(t, "knowledge_base", output.Interactions[0].Source)
	})

	t.Run("error risk level is not a tool error", func(t *testing.T) {
		svc := &mockInteractionService{result: &domain.CheckResult{
			RequestID:  "req-2",
			Assessment: domain.RiskAssessment{RiskLevel: domain.RiskError},
			Errors:     []string{"at least 2 drugs are required"},
		}}
		server, err := NewServer(&Ports{Interaction: svc})
		require.NoError(t, err)

		_, output, err := server.handleCheckInteraction(ctx, nil, CheckInteractionInput{Drugs: []string{"warfarin"}})

		require.NoError(t, err)
		assert.Equal(t, "ERROR", output.RiskLevel)
		assert.Equal(t, []string{"at least 2 drugs are required"}, output.Errors)
		assert.Empty(t, output.Drugs)
	})

	t.Run("service error propagates", func(t *testing.T) {
		svc := &mockInteractionService{err: errors.New("boom")}
		server, err := NewServer(&Ports{Interaction: svc})
		require.NoError(t, err)

		_, _, err = server.handleCheckInteraction(ctx, nil, CheckInteractionInput{Drugs: []string{"a", "b"}})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "check_interaction")
	})
}

func TestServer_handleNormalizeDrug(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the resolved drug", func(t *testing.T) {
		svc := &mockInteractionService{drug: &domain.NormalizedDrug{
			OriginalInput: "Tylenol",
			GenericName:   "acetaminophen",
			RxCUI:         "161",
			BrandNames:    []string{"Tylenol"},
			Confidence:    0.95,
		}}
		server, err := NewServer(&Ports{Interaction: svc})
		require.NoError(t, err)

		_, output, err := server.handleNormalizeDrug(ctx, nil, NormalizeDrugInput{Name: "Tylenol"})

		require.NoError(t, err)
		assert.Equal(t, "Tylenol", svc.lastName)
		assert.Equal(t, "acetaminophen", output.GenericName)
		assert.Equal(t, "161", output.RxCUI)
		assert.Equal(t, []string{"Tylenol"}, output.BrandNames)
	})

	t.Run("not found propagates", func(t *testing.T) {
		svc := &mockInteractionService{err: domain.ErrDrugNotFound}
		server, err := NewServer(&Ports{Interaction: svc})
		require.NoError(t, err)

		_, _, err = server.handleNormalizeDrug(ctx, nil, NormalizeDrugInput{Name: "zzz"})

		assert.ErrorIs(t, err, domain.ErrDrugNotFound)
	})
}
