package domain

import (
	"fmt"
	"time"
)

// TaskType identifies the kind of work a subagent performs.
type TaskType string

// Task types, one per subagent.
const (
	TaskTypeNormalize        TaskType = "normalize"
	TaskTypeInteractionCheck TaskType = "interaction_check"
	TaskTypeContextRetrieval TaskType = "context_retrieval"
	TaskTypeRiskAssessment   TaskType = "risk_assessment"
)

// IsValid returns true if the task type is recognised.
func (t TaskType) IsValid() bool {
	switch t {
	case TaskTypeNormalize, TaskTypeInteractionCheck, TaskTypeContextRetrieval, TaskTypeRiskAssessment:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t TaskType) String() string {
	return string(t)
}

// TaskStatus is the outcome of a task.
type TaskStatus string

// Task statuses.
const (
	TaskComplete TaskStatus = "complete"
	TaskFailed   TaskStatus = "failed"
)

// TaskInput is the payload of a task. Each variant reports the task type
// it belongs to so subagents can reject mismatched work.
type TaskInput interface {
	Kind() TaskType
}

// TaskOutput is the payload of a completed task: *NormalizedDrug,
// *Interaction, *PatientContext or *RiskAssessment.
type TaskOutput interface {
	Kind() TaskType
}

// NormalizeInput asks for one drug name to be resolved.
type NormalizeInput struct {
	DrugName string `json:"drug_name"`
}

// Kind implements TaskInput.
func (NormalizeInput) Kind() TaskType { return TaskTypeNormalize }

// InteractionInput asks for one drug pair to be checked.
type InteractionInput struct {
	Drug1 NormalizedDrug `json:"drug1"`
	Drug2 NormalizedDrug `json:"drug2"`
}

// Kind implements TaskInput.
func (InteractionInput) Kind() TaskType { return TaskTypeInteractionCheck }

// ContextInput asks for a patient's context.
type ContextInput struct {
	PatientID string `json:"patient_id"`
}

// Kind implements TaskInput.
func (ContextInput) Kind() TaskType { return TaskTypeContextRetrieval }

// RiskInput carries everything gathered before risk assessment.
type RiskInput struct {
	Drugs        []NormalizedDrug `json:"drugs"`
	Interactions []Interaction    `json:"interactions"`
	Patient      *PatientContext  `json:"patient,omitempty"`
}

// Kind implements TaskInput.
func (RiskInput) Kind() TaskType { return TaskTypeRiskAssessment }

// TaskConstraints bound a task's execution.
type TaskConstraints struct {
	TimeoutMS  int64 `json:"timeout_ms"`
	MaxRetries int   `json:"max_retries"`
}

// Timeout returns the task timeout as a duration.
func (c TaskConstraints) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// OutputSpec lists the fields a result must carry.
type OutputSpec struct {
	RequiredFields []string `json:"required_fields"`
}

// Task is an immutable unit of work dispatched to exactly one subagent.
type Task struct {
	ID          string          `json:"task_id"`
	Type        TaskType        `json:"task_type"`
	Objective   string          `json:"objective"`
	Input       TaskInput       `json:"input"`
	Constraints TaskConstraints `json:"constraints"`
	OutputSpec  OutputSpec      `json:"output_spec"`
}

// Validate checks the task is well formed.
func (t Task) Validate() error {
	if !t.Type.IsValid() {
		return fmt.Errorf("%w: unknown task type %q", ErrLogic, t.Type)
	}
	if t.Input == nil {
		return fmt.Errorf("%w: task %s has no input", ErrLogic, t.ID)
	}
	if t.Input.Kind() != t.Type {
		return fmt.Errorf("%w: task %s input is %s, want %s", ErrLogic, t.ID, t.Input.Kind(), t.Type)
	}
	return nil
}

// TaskMetadata describes how a result was produced.
type TaskMetadata struct {
	ProcessingTimeMS int64    `json:"processing_time_ms"`
	Confidence       float64  `json:"confidence"`
	Source           string   `json:"source"`
	DecisionsMade    []string `json:"decisions_made"`
}

// TaskRecommendations carries follow-up guidance from a subagent.
type TaskRecommendations struct {
	FollowUp    []string `json:"follow_up"`
	Warnings    []string `json:"warnings"`
	Limitations []string `json:"limitations"`
}

// TaskResult is the one-to-one outcome of a Task.
type TaskResult struct {
	TaskID          string              `json:"task_id"`
	Status          TaskStatus          `json:"status"`
	Output          TaskOutput          `json:"result"`
	Error           string              `json:"error"`
	Metadata        TaskMetadata        `json:"metadata"`
	Recommendations TaskRecommendations `json:"recommendations"`

	// Err keeps the typed error for errors.Is checks; never serialised.
	Err error `json:"-"`
}

// OK reports whether the task completed.
func (r TaskResult) OK() bool {
	return r.Status == TaskComplete
}

// FailedResult builds a failed result for task.
func FailedResult(taskID string, err error, elapsed time.Duration) TaskResult {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return TaskResult{
		TaskID: taskID,
		Status: TaskFailed,
		Error:  msg,
		Err:    err,
		Metadata: TaskMetadata{
			ProcessingTimeMS: elapsed.Milliseconds(),
		},
	}
}
