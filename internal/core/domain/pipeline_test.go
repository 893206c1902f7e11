package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage_IsValid(t *testing.T) {
	stages := []Stage{
		StageParseInput, StageNormalizeDrugs, StageGetPatientContext,
		StageCheckInteractions, StageAssessRisk, StageFormatResponse, StageTerminal,
	}
	for _, s := range stages {
		assert.True(t, s.IsValid(), s)
		assert.NotEqual(t, "unknown stage", s.Description())
	}
	assert.False(t, Stage("bogus").IsValid())
	assert.Equal(t, "unknown stage", Stage("bogus").Description())
}

func TestCheckRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		drugs   []string
		wantErr bool
	}{
		{"two drugs", []string{"warfarin", "aspirin"}, false},
		{"three drugs", []string{"a", "b", "c"}, false},
		{"one drug", []string{"warfarin"}, true},
		{"none", nil, true},
		{"blank names do not count", []string{"warfarin", "  ", ""}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckRequest{Drugs: tt.drugs}.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInsufficientDrugs)
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckResult_Interaction(t *testing.T) {
	r := &CheckResult{Interactions: []Interaction{
		{Drug1: "warfarin", Drug2: "aspirin", Severity: SeverityMajor, Found: true},
	}}

	ix, ok := r.Interaction("Aspirin", "WARFARIN")
	require.True(t, ok)
	assert.Equal(t, SeverityMajor, ix.Severity)

	_, ok = r.Interaction("warfarin", "ibuprofen")
	assert.False(t, ok)
}
