package driven

import "time"

// PipelineObserver receives pipeline telemetry. Implementations must be
// safe for concurrent use.
type PipelineObserver interface {
	// ObserveStage records a stage execution and its status.
	ObserveStage(stage, status string, duration time.Duration)

	// IncStageRetry counts a stage re-entry.
	IncStageRetry(stage string)

	// IncStageFailure counts a stage failure with a reason.
	IncStageFailure(stage, reason string)

	// ObserveTask records one subagent task.
	ObserveTask(taskType, status string, duration time.Duration)

	// IncCache counts a cache lookup outcome ("hit" or "miss").
	IncCache(namespace, outcome string)

	// IncRiskLevel counts a final risk level.
	IncRiskLevel(level string)
}
