package services

import (
	"errors"

	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
)

// pipelineState is the orchestrator's explicit state.
type pipelineState struct {
	Stage      domain.Stage
	Retries    int
	MaxRetries int

	// FailedStage and Failure are set once the pipeline gives up; the
	// response is then the synthetic ERROR artifact.
	FailedStage domain.Stage
	Failure     error

	// Abort is set for validation failures, which are returned to the
	// caller instead of formatted.
	Abort bool
}

// stageOutcome summarises one stage execution for the transition function.
type stageOutcome struct {
	Err          error
	HasPatientID bool

	// Expired is true when the top-level deadline has passed.
	Expired bool
}

func newPipelineState(maxRetries int) pipelineState {
	return pipelineState{Stage: domain.StageParseInput, MaxRetries: maxRetries}
}

// Failed reports whether the pipeline has given up.
func (s pipelineState) Failed() bool {
	return s.Failure != nil && !s.Abort
}

// Done reports whether the pipeline reached the terminal state.
func (s pipelineState) Done() bool {
	return s.Stage == domain.StageTerminal
}

// transition computes the next state. It is a pure function.
func transition(s pipelineState, out stageOutcome) pipelineState {
	if s.Stage == domain.StageTerminal {
		return s
	}

	if out.Expired && s.Stage != domain.StageFormatResponse {
		s.FailedStage = s.Stage
		s.Failure = domain.ErrTimeout
		s.Stage = domain.StageFormatResponse
		return s
	}

	if out.Err != nil {
		switch {
		case s.Stage == domain.StageGetPatientContext:
			// Best effort: continue without patient context.
			s.Stage = domain.StageCheckInteractions
		case errors.Is(out.Err, domain.ErrValidation):
			s.Failure = out.Err
			s.FailedStage = s.Stage
			s.Abort = true
			s.Stage = domain.StageTerminal
		case s.Retries < s.MaxRetries && domain.IsRetryable(out.Err):
			s.Retries++
		default:
			s.FailedStage = s.Stage
			s.Failure = out.Err
			s.Stage = domain.StageFormatResponse
		}
		return s
	}

	switch s.Stage {
	case domain.StageParseInput:
		s.Stage = domain.StageNormalizeDrugs
	case domain.StageNormalizeDrugs:
		if out.HasPatientID {
			s.Stage = domain.StageGetPatientContext
		} else {
			s.Stage = domain.StageCheckInteractions
		}
	case domain.StageGetPatientContext:
		s.Stage = domain.StageCheckInteractions
	case domain.StageCheckInteractions:
		s.Stage = domain.StageAssessRisk
	case domain.StageAssessRisk:
		s.Stage = domain.StageFormatResponse
	case domain.StageFormatResponse:
		s.Stage = domain.StageTerminal
	}
	return s
}

// retried reports whether next re-enters the same stage after a retry.
func retried(prev, next pipelineState) bool {
	return next.Retries > prev.Retries
}
