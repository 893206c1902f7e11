package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
)

// Subagent is a stateless worker implementing one task kind.
//
// Execute never panics and never returns an error: every failure,
// including a task of the wrong kind or an expired deadline, is reported as
// a failed TaskResult.
type Subagent interface {
	Kind() domain.TaskType
	Execute(ctx context.Context, task domain.Task) domain.TaskResult
}

// taskOutcome is what a subagent's work function produces on success.
type taskOutcome struct {
	output     domain.TaskOutput
	confidence float64
	source     string
	decisions  []string
	recs       domain.TaskRecommendations
}

// decide appends a decision to the audit trail.
func (o *taskOutcome) decide(format string, args ...any) {
	o.decisions = append(o.decisions, fmt.Sprintf(format, args...))
}

// warn appends a warning recommendation.
func (o *taskOutcome) warn(format string, args ...any) {
	o.recs.Warnings = append(o.recs.Warnings, fmt.Sprintf(format, args...))
}

// degrade appends a warning and lowers confidence by penalty.
func (o *taskOutcome) degrade(penalty float64, format string, args ...any) {
	o.warn(format, args...)
	o.confidence -= penalty
}

type taskFunc func(ctx context.Context, input domain.TaskInput) (*taskOutcome, error)

type taskReturn struct {
	outcome *taskOutcome
	err     error
}

// runTask enforces the subagent protocol around fn: kind check, timeout
// race and panic recovery.
func runTask(ctx context.Context, kind domain.TaskType, task domain.Task, fn taskFunc) domain.TaskResult {
	start := time.Now()

	if task.Type != kind {
		err := fmt.Errorf("%w: %s subagent cannot execute %q task %s", domain.ErrLogic, kind, task.Type, task.ID)
		return domain.FailedResult(task.ID, err, time.Since(start))
	}
	if err := task.Validate(); err != nil {
		return domain.FailedResult(task.ID, err, time.Since(start))
	}

	runCtx := ctx
	timeout := task.Constraints.Timeout()
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan taskReturn, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- taskReturn{err: fmt.Errorf("%w: subagent panic: %v", domain.ErrLogic, r)}
			}
		}()
		outcome, err := fn(runCtx, task.Input)
		done <- taskReturn{outcome: outcome, err: err}
	}()

	select {
	case ret := <-done:
		return finishTask(task, kind, ret, time.Since(start))

	case <-runCtx.Done():
		// The work goroutine keeps running; its result is discarded.
		var err error
		if ctx.Err() == nil {
			err = fmt.Errorf("%w after %dms", domain.ErrTimeout, timeout.Milliseconds())
		} else {
			err = fmt.Errorf("%w: %v", domain.ErrTimeout, ctx.Err())
		}
		return domain.FailedResult(task.ID, err, time.Since(start))
	}
}

func finishTask(task domain.Task, kind domain.TaskType, ret taskReturn, elapsed time.Duration) domain.TaskResult {
	if ret.err != nil {
		result := domain.FailedResult(task.ID, ret.err, elapsed)
		if ret.outcome != nil {
			result.Metadata.DecisionsMade = ret.outcome.decisions
			result.Recommendations = ret.outcome.recs
		}
		return result
	}
	if ret.outcome == nil || ret.outcome.output == nil {
		err := fmt.Errorf("%w: %s subagent returned no output", domain.ErrLogic, kind)
		return domain.FailedResult(task.ID, err, elapsed)
	}
	if ret.outcome.output.Kind() != kind {
		err := fmt.Errorf("%w: %s subagent returned %s output", domain.ErrLogic, kind, ret.outcome.output.Kind())
		return domain.FailedResult(task.ID, err, elapsed)
	}

	return domain.TaskResult{
		TaskID: task.ID,
		Status: domain.TaskComplete,
		Output: ret.outcome.output,
		Metadata: domain.TaskMetadata{
			ProcessingTimeMS: elapsed.Milliseconds(),
			Confidence:       domain.Clamp01(ret.outcome.confidence),
			Source:           ret.outcome.source,
			DecisionsMade:    ret.outcome.decisions,
		},
		Recommendations: ret.outcome.recs,
	}
}

// requiredFields lists the output fields each task kind must populate.
var requiredFields = map[domain.TaskType][]string{
	domain.TaskTypeNormalize:        {"generic_name", "rxcui", "confidence"},
	domain.TaskTypeInteractionCheck: {"drug1", "drug2", "severity", "confidence", "found"},
	domain.TaskTypeContextRetrieval: {"demographics", "risk_factors"},
	domain.TaskTypeRiskAssessment:   {"risk_level", "explanation", "recommendations", "risk_scores"},
}

// newTask creates an immutable task ready for dispatch.
func newTask(input domain.TaskInput, objective string, settings domain.PipelineSettings) domain.Task {
	return domain.Task{
		ID:        uuid.New().String(),
		Type:      input.Kind(),
		Objective: objective,
		Input:     input,
		Constraints: domain.TaskConstraints{
			TimeoutMS:  settings.StageTimeout.Milliseconds(),
			MaxRetries: settings.MaxRetries,
		},
		OutputSpec: domain.OutputSpec{
			RequiredFields: requiredFields[input.Kind()],
		},
	}
}
