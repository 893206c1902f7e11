package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
)

func TestTransition_HappyPath(t *testing.T) {
	tests := []struct {
		name       string
		from       domain.Stage
		hasPatient bool
		want       domain.Stage
	}{
		{"parse to normalize", domain.StageParseInput, false, domain.StageNormalizeDrugs},
		{"normalize to check without patient", domain.StageNormalizeDrugs, false, domain.StageCheckInteractions},
		{"normalize to context with patient", domain.StageNormalizeDrugs, true, domain.StageGetPatientContext},
		{"context to check", domain.StageGetPatientContext, true, domain.StageCheckInteractions},
		{"check to assess", domain.StageCheckInteractions, false, domain.StageAssessRisk},
		{"assess to format", domain.StageAssessRisk, false, domain.StageFormatResponse},
		{"format to terminal", domain.StageFormatResponse, false, domain.StageTerminal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newPipelineState(2)
			s.Stage = tt.from

			next := transition(s, stageOutcome{HasPatientID: tt.hasPatient})

			assert.Equal(t, tt.want, next.Stage)
			assert.Zero(t, next.Retries)
			assert.Nil(t, next.Failure)
		})
	}
}

func TestTransition_TerminalIsAbsorbing(t *testing.T) {
	s := newPipelineState(2)
	s.Stage = domain.StageTerminal

	next := transition(s, stageOutcome{Err: errors.New("boom"), Expired: true})

	assert.Equal(t, s, next)
	assert.True(t, next.Done())
}

func TestTransition_RetriesShareOneBudget(t *testing.T) {
	providerErr := fmt.Errorf("%w: 503", domain.ErrProvider)
	s := newPipelineState(2)
	s.Stage = domain.StageNormalizeDrugs

	s1 := transition(s, stageOutcome{Err: providerErr})
	assert.Equal(t, domain.StageNormalizeDrugs, s1.Stage)
	assert.Equal(t, 1, s1.Retries)
	assert.True(t, retried(s, s1))

	// Succeed and fail in a later stage: the budget is not reset
	s2 := transition(s1, stageOutcome{})
	s2 = transition(s2, stageOutcome{Err: providerErr})
	assert.Equal(t, domain.StageCheckInteractions, s2.Stage)
	assert.Equal(t, 2, s2.Retries)

	s3 := transition(s2, stageOutcome{Err: providerErr})
	assert.False(t, retried(s2, s3))
	assert.Equal(t, domain.StageFormatResponse, s3.Stage)
	assert.Equal(t, domain.StageCheckInteractions, s3.FailedStage)
	assert.True(t, s3.Failed())
	assert.ErrorIs(t, s3.Failure, domain.ErrProvider)
}

func TestTransition_ValidationAborts(t *testing.T) {
	s := newPipelineState(3)

	next := transition(s, stageOutcome{Err: domain.ErrInsufficientDrugs})

	assert.Equal(t, domain.StageTerminal, next.Stage)
	assert.True(t, next.Abort)
	assert.False(t, next.Failed())
	assert.Equal(t, domain.StageParseInput, next.FailedStage)
	assert.Zero(t, next.Retries)
}

func TestTransition_LogicErrorIsNotRetried(t *testing.T) {
	s := newPipelineState(3)
	s.Stage = domain.StageAssessRisk

	next := transition(s, stageOutcome{Err: fmt.Errorf("%w: bad task", domain.ErrLogic)})

	assert.Equal(t, domain.StageFormatResponse, next.Stage)
	assert.Equal(t, domain.StageAssessRisk, next.FailedStage)
	assert.Zero(t, next.Retries)
}

func TestTransition_PatientContextFailureContinues(t *testing.T) {
	s := newPipelineState(0)
	s.Stage = domain.StageGetPatientContext

	next := transition(s, stageOutcome{Err: domain.ErrPatientNotFound, HasPatientID: true})

	assert.Equal(t, domain.StageCheckInteractions, next.Stage)
	assert.Nil(t, next.Failure)
}

func TestTransition_ExpiredDeadline(t *testing.T) {
	t.Run("jumps to format", func(t *testing.T) {
		s := newPipelineState(5)
		s.Stage = domain.StageCheckInteractions

		next := transition(s, stageOutcome{Expired: true})

		assert.Equal(t, domain.StageFormatResponse, next.Stage)
		assert.Equal(t, domain.StageCheckInteractions, next.FailedStage)
		assert.ErrorIs(t, next.Failure, domain.ErrTimeout)
	})

	t.Run("format still completes", func(t *testing.T) {
		s := newPipelineState(5)
		s.Stage = domain.StageFormatResponse

		next := transition(s, stageOutcome{Expired: true})

		assert.Equal(t, domain.StageTerminal, next.Stage)
	})
}

func TestTransition_IsPure(t *testing.T) {
	s := newPipelineState(1)
	s.Stage = domain.StageCheckInteractions
	out := stageOutcome{Err: fmt.Errorf("%w: 500", domain.ErrProvider)}

	assert.Equal(t, transition(s, out), transition(s, out))
	assert.Equal(t, domain.StageCheckInteractions, s.Stage)
	assert.Zero(t, s.Retries)
}
