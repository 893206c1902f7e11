package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
	"github.com/bivasb/medguard-ai-sub000/internal/core/ports/driven"
	"github.com/bivasb/medguard-ai-sub000/internal/core/ports/driving"
	"github.com/bivasb/medguard-ai-sub000/internal/logger"
)

// Ensure Orchestrator implements the interface.
var _ driving.InteractionService = (*Orchestrator)(nil)

// maxFanOut bounds concurrent tasks within one stage.
const maxFanOut = 8

// errorRecommendations accompany every ERROR assessment.
var errorRecommendations = []string{
	"manual verification required",
	"retry the request",
	"consult a pharmacist before dispensing",
}

// Orchestrator drives the interaction-check pipeline through its stages,
// dispatching tasks to the subagents.
type Orchestrator struct {
	normalizer      Subagent
	contextProvider Subagent
	checker         Subagent
	assessor        Subagent
	tel             telemetry

	mu       sync.RWMutex
	settings domain.PipelineSettings
}

// NewOrchestrator creates an orchestrator. contextProvider may be nil, in
// which case patient ids are ignored with a warning.
func NewOrchestrator(normalizer, contextProvider, checker, assessor Subagent, settings domain.PipelineSettings) *Orchestrator {
	return &Orchestrator{
		normalizer:      normalizer,
		contextProvider: contextProvider,
		checker:         checker,
		assessor:        assessor,
		settings:        settings,
	}
}

// SetObserver sets the telemetry observer.
func (o *Orchestrator) SetObserver(obs driven.PipelineObserver) {
	o.tel.obs = obs
}

// SetPipelineSettings replaces the pipeline settings for subsequent requests.
func (o *Orchestrator) SetPipelineSettings(s domain.PipelineSettings) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.settings = s
}

// PipelineSettings returns the current pipeline settings.
func (o *Orchestrator) PipelineSettings() domain.PipelineSettings {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.settings
}

// pipelineRun is the mutable state of one request. It is owned by the
// request goroutine; fan-out workers only write to their own result slot.
type pipelineRun struct {
	id       string
	req      domain.CheckRequest
	settings domain.PipelineSettings
	started  time.Time

	names        []string
	drugs        map[string]domain.NormalizedDrug // by input name
	drugErrs     map[string]error
	patient      *domain.PatientContext
	interactions map[string]domain.Interaction // by pair key
	pairErrs     map[string]error
	assessment   *domain.RiskAssessment

	steps    []domain.ProcessingStep
	warnings []string
	errors   []string
	total    time.Duration
	result   *domain.CheckResult
}

func (r *pipelineRun) warn(format string, args ...any) {
	r.warnings = appendUnique(r.warnings, fmt.Sprintf(format, args...))
}

// CheckInteraction runs the full pipeline for a request.
//
// A request with fewer than two usable drug names returns an error wrapping
// domain.ErrValidation. Every other failure is reported as a result whose
// assessment has risk level ERROR.
func (o *Orchestrator) CheckInteraction(ctx context.Context, req domain.CheckRequest) (*domain.CheckResult, error) {
	settings := o.PipelineSettings()
	ctx, cancel := context.WithTimeout(ctx, settings.Timeout)
	defer cancel()

	run := &pipelineRun{
		id:           uuid.New().String(),
		req:          req,
		settings:     settings,
		started:      time.Now(),
		drugs:        make(map[string]domain.NormalizedDrug),
		drugErrs:     make(map[string]error),
		interactions: make(map[string]domain.Interaction),
		pairErrs:     make(map[string]error),
	}
	logger.Section("Interaction check " + run.id)

	state := newPipelineState(settings.MaxRetries)
	for !state.Done() {
		stage := state.Stage
		start := time.Now()

		details, err := o.execStage(ctx, run, state)

		elapsed := time.Since(start)
		run.total += elapsed
		if details == nil {
			details = map[string]any{}
		}
		status := "ok"
		if err != nil {
			status = "error"
			details["error"] = err.Error()
		}
		if state.Retries > 0 {
			details["retries_used"] = state.Retries
		}
		run.steps = append(run.steps, domain.ProcessingStep{
			Node:       stage,
			Timestamp:  start,
			DurationMS: elapsed.Milliseconds(),
			Details:    details,
		})
		o.tel.stage(stage, status, elapsed)

		next := transition(state, stageOutcome{
			Err:          err,
			HasPatientID: req.PatientID != "" && o.contextProvider != nil,
			Expired:      ctx.Err() != nil,
		})
		switch {
		case retried(state, next):
			logger.Warn("Retrying %s (%d/%d): %v", stage, next.Retries, next.MaxRetries, err)
			o.tel.retry(stage)
		case next.Failure != nil && state.Failure == nil:
			logger.Warn("Pipeline %s failed at %s: %v", run.id, next.FailedStage, next.Failure)
			o.tel.failure(next.FailedStage, failureReason(next.Failure))
		case err != nil:
			logger.Debug("Stage %s failed, continuing: %v", stage, err)
		default:
			logger.Debug("Stage %s completed in %s", stage, elapsed)
		}
		state = next
	}

	if state.Abort {
		return nil, domain.NewStageError(state.FailedStage, state.Failure)
	}
	run.result.ProcessingSteps = run.steps
	run.result.TotalTimeMS = run.total.Milliseconds()
	return run.result, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrProvider):
		return "provider"
	case errors.Is(err, domain.ErrLogic):
		return "logic"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "other"
	}
}

func (o *Orchestrator) execStage(ctx context.Context, run *pipelineRun, state pipelineState) (map[string]any, error) {
	switch state.Stage {
	case domain.StageParseInput:
		return o.parseInput(run)
	case domain.StageNormalizeDrugs:
		return o.normalizeDrugs(ctx, run)
	case domain.StageGetPatientContext:
		return o.patientContext(ctx, run)
	case domain.StageCheckInteractions:
		return o.checkInteractions(ctx, run)
	case domain.StageAssessRisk:
		return o.assessRisk(ctx, run)
	case domain.StageFormatResponse:
		return o.formatResponse(ctx, run, state)
	default:
		return nil, fmt.Errorf("%w: unexpected stage %q", domain.ErrLogic, state.Stage)
	}
}

func (o *Orchestrator) parseInput(run *pipelineRun) (map[string]any, error) {
	seen := make(map[string]bool, len(run.req.Drugs))
	for _, d := range run.req.Drugs {
		name := domain.DrugKey(d)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		run.names = append(run.names, name)
	}
	details := map[string]any{"drug_count": len(run.names), "patient_id": run.req.PatientID}
	if len(run.names) < 2 {
		return details, fmt.Errorf("%w (got %d distinct)", domain.ErrInsufficientDrugs, len(run.names))
	}
	if run.req.PatientID != "" && o.contextProvider == nil {
		run.warn("patient context is not configured; patient %s was not considered", run.req.PatientID)
	}
	return details, nil
}

// isPermanent reports whether a per-item failure will not change on retry.
func isPermanent(err error) bool {
	return errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrLogic)
}

func (o *Orchestrator) normalizeDrugs(ctx context.Context, run *pipelineRun) (map[string]any, error) {
	var pending []string
	for _, name := range run.names {
		if _, ok := run.drugs[name]; ok {
			continue
		}
		if err, ok := run.drugErrs[name]; ok && isPermanent(err) {
			continue
		}
		pending = append(pending, name)
	}

	tasks := make([]domain.Task, len(pending))
	for i, name := range pending {
		tasks[i] = newTask(domain.NormalizeInput{DrugName: name}, "resolve "+name+" to a canonical generic drug", run.settings)
	}
	results := o.fanOut(ctx, o.normalizer, tasks)

	var failed []string
	for i, r := range results {
		name := pending[i]
		run.warnings = mergeNames(run.warnings, r.Recommendations.Warnings)
		if !r.OK() {
			run.drugErrs[name] = resultErr(r)
			failed = append(failed, name)
			continue
		}
		drug, ok := r.Output.(*domain.NormalizedDrug)
		if !ok {
			run.drugErrs[name] = fmt.Errorf("%w: normalizer returned %T", domain.ErrLogic, r.Output)
			failed = append(failed, name)
			continue
		}
		delete(run.drugErrs, name)
		run.drugs[name] = *drug
	}

	resolved := run.sortedDrugs()
	details := map[string]any{
		"dispatched": len(pending),
		"resolved":   len(resolved),
		"failed":     failed,
	}
	if len(resolved) >= 2 {
		for _, name := range run.names {
			if err, ok := run.drugErrs[name]; ok {
				run.warn("could not resolve %q: %v", name, err)
				run.errors = append(run.errors, fmt.Sprintf("%s: %v", name, err))
			}
		}
		return details, nil
	}

	errs := make([]error, 0, len(run.drugErrs))
	retryable := false
	for _, name := range run.names {
		if err, ok := run.drugErrs[name]; ok {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			if !isPermanent(err) {
				retryable = true
			}
		}
	}
	if retryable {
		return details, errors.Join(errs...)
	}
	if len(errs) == 0 {
		return details, fmt.Errorf("%w: drugs resolve to the same generic", domain.ErrInsufficientDrugs)
	}
	return details, fmt.Errorf("%w: %w", domain.ErrInsufficientDrugs, errors.Join(errs...))
}

// sortedDrugs returns resolved drugs, one per generic name, ordered by key.
func (r *pipelineRun) sortedDrugs() []domain.NormalizedDrug {
	byKey := make(map[string]domain.NormalizedDrug, len(r.drugs))
	for _, name := range r.names {
		d, ok := r.drugs[name]
		if !ok {
			continue
		}
		if _, dup := byKey[d.Key()]; !dup {
			byKey[d.Key()] = d
		}
	}
	drugs := make([]domain.NormalizedDrug, 0, len(byKey))
	for _, d := range byKey {
		drugs = append(drugs, d)
	}
	sort.Slice(drugs, func(i, j int) bool { return drugs[i].Key() < drugs[j].Key() })
	return drugs
}

func (o *Orchestrator) patientContext(ctx context.Context, run *pipelineRun) (map[string]any, error) {
	details := map[string]any{"patient_id": run.req.PatientID}
	task := newTask(domain.ContextInput{PatientID: run.req.PatientID}, "load patient context", run.settings)
	r := o.fanOut(ctx, o.contextProvider, []domain.Task{task})[0]
	if !r.OK() {
		err := resultErr(r)
		run.warn("patient context unavailable: %v", err)
		details["loaded"] = false
		return details, err
	}
	pc, ok := r.Output.(*domain.PatientContext)
	if !ok {
		err := fmt.Errorf("%w: context provider returned %T", domain.ErrLogic, r.Output)
		run.warn("patient context unavailable: %v", err)
		return details, err
	}
	run.patient = pc
	run.warnings = mergeNames(run.warnings, pc.Warnings)
	details["loaded"] = true
	details["risk_factors"] = len(pc.RiskFactors)
	return details, nil
}

func (o *Orchestrator) checkInteractions(ctx context.Context, run *pipelineRun) (map[string]any, error) {
	var pending []domain.DrugPair
	for _, p := range domain.AllPairs(run.sortedDrugs()) {
		if _, done := run.interactions[p.Key()]; done {
			continue
		}
		if err, ok := run.pairErrs[p.Key()]; ok && isPermanent(err) {
			continue
		}
		pending = append(pending, p)
	}

	tasks := make([]domain.Task, len(pending))
	for i, p := range pending {
		tasks[i] = newTask(domain.InteractionInput{Drug1: p.First, Drug2: p.Second},
			"check "+p.Key()+" for interactions", run.settings)
	}
	results := o.fanOut(ctx, o.checker, tasks)

	var errs []error
	for i, r := range results {
		key := pending[i].Key()
		run.warnings = mergeNames(run.warnings, r.Recommendations.Warnings)
		if !r.OK() {
			err := resultErr(r)
			run.pairErrs[key] = err
			if isPermanent(err) {
				run.errors = append(run.errors, fmt.Sprintf("%s: %v", key, err))
			} else {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
			continue
		}
		ix, ok := r.Output.(*domain.Interaction)
		if !ok {
			run.pairErrs[key] = fmt.Errorf("%w: checker returned %T", domain.ErrLogic, r.Output)
			continue
		}
		delete(run.pairErrs, key)
		run.interactions[key] = *ix
	}

	found := 0
	for _, ix := range run.interactions {
		if ix.Found {
			found++
		}
	}
	details := map[string]any{
		"pairs":      len(run.interactions) + len(run.pairErrs),
		"dispatched": len(pending),
		"found":      found,
	}
	if len(errs) > 0 {
		return details, errors.Join(errs...)
	}
	return details, nil
}

// sortedInteractionList returns interactions ordered by pair key.
func (r *pipelineRun) sortedInteractionList() []domain.Interaction {
	keys := make([]string, 0, len(r.interactions))
	for k := range r.interactions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]domain.Interaction, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.interactions[k])
	}
	return out
}

func (o *Orchestrator) assessRisk(ctx context.Context, run *pipelineRun) (map[string]any, error) {
	input := domain.RiskInput{
		Drugs:        run.sortedDrugs(),
		Interactions: run.sortedInteractionList(),
		Patient:      run.patient,
	}
	task := newTask(input, "assess combined risk", run.settings)
	r := o.fanOut(ctx, o.assessor, []domain.Task{task})[0]
	if !r.OK() {
		return nil, resultErr(r)
	}
	ra, ok := r.Output.(*domain.RiskAssessment)
	if !ok {
		return nil, fmt.Errorf("%w: assessor returned %T", domain.ErrLogic, r.Output)
	}
	run.assessment = ra
	return map[string]any{
		"risk_level": ra.RiskLevel,
		"overall":    ra.RiskScores.Overall,
		"confidence": ra.Confidence,
	}, nil
}

func (o *Orchestrator) formatResponse(ctx context.Context, run *pipelineRun, state pipelineState) (map[string]any, error) {
	var assessment domain.RiskAssessment
	switch {
	case state.Failed():
		assessment = domain.ErrorAssessment(failureExplanation(ctx, run, state), errorRecommendations...)
	case run.assessment == nil:
		assessment = domain.ErrorAssessment("Risk assessment did not produce a result.", errorRecommendations...)
	default:
		assessment = *run.assessment
	}
	o.tel.level(assessment.RiskLevel)

	run.result = &domain.CheckResult{
		RequestID:          run.id,
		Assessment:         assessment,
		Drugs:              run.sortedDrugs(),
		Interactions:       run.sortedInteractionList(),
		PatientContextUsed: run.patient != nil,
		ProcessingSteps:    run.steps,
		Warnings:           run.warnings,
		Errors:             run.errors,
	}
	return map[string]any{"risk_level": assessment.RiskLevel}, nil
}

func failureExplanation(ctx context.Context, run *pipelineRun, state pipelineState) string {
	if errors.Is(state.Failure, domain.ErrTimeout) && ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return fmt.Sprintf("Request cancelled during %s; results are incomplete.", state.FailedStage.Description())
		}
		return fmt.Sprintf("Pipeline timed out after %dms during %s; results are incomplete.",
			run.settings.Timeout.Milliseconds(), state.FailedStage.Description())
	}
	return fmt.Sprintf("Unable to complete %s (%s): %v", state.FailedStage.Description(), state.FailedStage, state.Failure)
}

// fanOut dispatches tasks concurrently and joins on all of them. Workers
// never return an error so one failure cannot cancel its siblings.
func (o *Orchestrator) fanOut(ctx context.Context, agent Subagent, tasks []domain.Task) []domain.TaskResult {
	results := make([]domain.TaskResult, len(tasks))
	if len(tasks) == 0 {
		return results
	}
	var g errgroup.Group
	g.SetLimit(maxFanOut)
	for i, task := range tasks {
		g.Go(func() error {
			results[i] = agent.Execute(ctx, task)
			o.tel.task(results[i], task.Type)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func resultErr(r domain.TaskResult) error {
	if r.Err != nil {
		return r.Err
	}
	if r.Error != "" {
		return errors.New(r.Error)
	}
	return fmt.Errorf("%w: task %s failed without an error", domain.ErrLogic, r.TaskID)
}

// NormalizeDrug resolves a single drug name.
func (o *Orchestrator) NormalizeDrug(ctx context.Context, name string) (*domain.NormalizedDrug, error) {
	if domain.DrugKey(name) == "" {
		return nil, fmt.Errorf("%w: drug name is required", domain.ErrValidation)
	}
	settings := o.PipelineSettings()
	ctx, cancel := context.WithTimeout(ctx, settings.Timeout)
	defer cancel()

	task := newTask(domain.NormalizeInput{DrugName: name}, "resolve "+name+" to a canonical generic drug", settings)
	r := o.normalizer.Execute(ctx, task)
	o.tel.task(r, task.Type)
	if !r.OK() {
		return nil, resultErr(r)
	}
	drug, ok := r.Output.(*domain.NormalizedDrug)
	if !ok {
		return nil, fmt.Errorf("%w: normalizer returned %T", domain.ErrLogic, r.Output)
	}
	return drug, nil
}
