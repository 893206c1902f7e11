package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bivasb/medguard-ai-sub000/internal/adapters/driven/knowledge"
	"github.com/bivasb/medguard-ai-sub000/internal/adapters/driven/storage/memory"
	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
	"github.com/bivasb/medguard-ai-sub000/internal/core/ports/driven"
)

// --- Mock implementations ---

// Provider method names used for call counting and failure injection.
const (
	methodApproximate = "approximate"
	methodExact       = "exact"
	methodSpelling    = "spelling"
	methodProperties  = "properties"
	methodRelated     = "related"
	methodEvents      = "events"
	methodLabels      = "labels"
)

type fakeConcept struct {
	rxcui  string
	name   string
	brands []string
}

// fakeProvider implements driven.DrugDataProvider with canned RxNorm and
// openFDA shaped payloads.
type fakeProvider struct {
	mu       sync.Mutex
	concepts map[string]fakeConcept // by lower-case name
	spelling map[string]string      // misspelling -> suggestion
	events   map[string]json.RawMessage
	labels   map[string]json.RawMessage

	down     map[string]error // method -> error returned on every call
	failures map[string]int   // method -> number of calls to fail first
	delays   map[string]time.Duration
	calls    map[string]int
}

func newFakeProvider() *fakeProvider {
	p := &fakeProvider{
		concepts: make(map[string]fakeConcept),
		spelling: make(map[string]string),
		events:   make(map[string]json.RawMessage),
		labels:   make(map[string]json.RawMessage),
		down:     make(map[string]error),
		failures: make(map[string]int),
		delays:   make(map[string]time.Duration),
		calls:    make(map[string]int),
	}
	for i, name := range []string{
		"warfarin", "aspirin", "sertraline", "tramadol", "amoxicillin", "acetaminophen",
		"amlodipine", "levothyroxine", "ibuprofen", "metformin", "omeprazole", "lisinopril",
		"zolpidem", "quetiapine", "montelukast",
	} {
		p.addConcept(name, fmt.Sprintf("%d", 1000+i))
	}
	return p
}

func (p *fakeProvider) addConcept(name, rxcui string, brands ...string) {
	p.concepts[name] = fakeConcept{rxcui: rxcui, name: name, brands: brands}
}

func (p *fakeProvider) setEvents(a, b string, total, serious int) {
	p.events[domain.PairKey(a, b)] = eventsJSON(total, serious)
}

func (p *fakeProvider) setLabel(a, b, text string) {
	raw, _ := json.Marshal(map[string]any{
		"results": []map[string]any{{"drug_interactions": []string{text}}},
	})
	p.labels[domain.PairKey(a, b)] = raw
}

func (p *fakeProvider) setDown(method string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.down[method] = err
}

func (p *fakeProvider) callCount(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

func (p *fakeProvider) totalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		n += c
	}
	return n
}

// enter records the call, applies any delay and returns an injected error.
func (p *fakeProvider) enter(ctx context.Context, method, subject string) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", domain.ErrProvider, ctx.Err())
	}
	p.mu.Lock()
	p.calls[method]++
	delay := p.delays[method+":"+subject]
	if delay == 0 {
		delay = p.delays[method]
	}
	err := p.down[method]
	if err == nil && p.failures[method] > 0 {
		p.failures[method]--
		err = fmt.Errorf("%w: injected %s failure", domain.ErrProvider, method)
	}
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", domain.ErrProvider, ctx.Err())
		}
	}
	return err
}

func (p *fakeProvider) byID(id string) (fakeConcept, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.concepts {
		if c.rxcui == id {
			return c, true
		}
	}
	return fakeConcept{}, false
}

func (p *fakeProvider) concept(name string) (fakeConcept, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.concepts[domain.DrugKey(name)]
	return c, ok
}

func (p *fakeProvider) NormalizeApproximate(ctx context.Context, name string) (json.RawMessage, error) {
	if err := p.enter(ctx, methodApproximate, name); err != nil {
		return nil, err
	}
	c, ok := p.concept(name)
	if !ok {
		return json.RawMessage(`{"approximateGroup":{"inputTerm":"` + name + `"}}`), nil
	}
	return json.RawMessage(fmt.Sprintf(
		`{"approximateGroup":{"candidate":[{"rxcui":%q,"score":"100","rank":"1","name":%q}]}}`, c.rxcui, c.name)), nil
}

func (p *fakeProvider) NormalizeExact(ctx context.Context, name string) (json.RawMessage, error) {
	if err := p.enter(ctx, methodExact, name); err != nil {
		return nil, err
	}
	c, ok := p.concept(name)
	if !ok {
		return json.RawMessage(`{"idGroup":{"name":"` + name + `"}}`), nil
	}
	return json.RawMessage(fmt.Sprintf(`{"idGroup":{"name":%q,"rxnormId":[%q]}}`, name, c.rxcui)), nil
}

func (p *fakeProvider) SpellingSuggestions(ctx context.Context, name string) (json.RawMessage, error) {
	if err := p.enter(ctx, methodSpelling, name); err != nil {
		return nil, err
	}
	p.mu.Lock()
	s, ok := p.spelling[domain.DrugKey(name)]
	p.mu.Unlock()
	if !ok {
		return json.RawMessage(`{"suggestionGroup":{"name":"` + name + `","suggestionList":null}}`), nil
	}
	return json.RawMessage(fmt.Sprintf(`{"suggestionGroup":{"suggestionList":{"suggestion":[%q]}}}`, s)), nil
}

func (p *fakeProvider) Properties(ctx context.Context, id string) (json.RawMessage, error) {
	if err := p.enter(ctx, methodProperties, id); err != nil {
		return nil, err
	}
	c, ok := p.byID(id)
	if !ok {
		return json.RawMessage(`{}`), nil
	}
	return json.RawMessage(fmt.Sprintf(`{"properties":{"rxcui":%q,"name":%q,"tty":"IN"}}`, c.rxcui, c.name)), nil
}

func (p *fakeProvider) RelatedNames(ctx context.Context, id string) (json.RawMessage, error) {
	if err := p.enter(ctx, methodRelated, id); err != nil {
		return nil, err
	}
	c, ok := p.byID(id)
	if !ok {
		return json.RawMessage(`{"allRelatedGroup":{"conceptGroup":[]}}`), nil
	}
	brands := make([]map[string]string, 0, len(c.brands))
	for _, b := range c.brands {
		brands = append(brands, map[string]string{"name": b})
	}
	raw, _ := json.Marshal(map[string]any{
		"allRelatedGroup": map[string]any{
			"conceptGroup": []map[string]any{
				{"tty": "BN", "conceptProperties": brands},
				{"tty": "IN", "conceptProperties": []map[string]string{{"name": c.name}}},
			},
		},
	})
	return raw, nil
}

func (p *fakeProvider) AdverseEvents(ctx context.Context, a, b string, _ int) (json.RawMessage, error) {
	if err := p.enter(ctx, methodEvents, domain.PairKey(a, b)); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if raw, ok := p.events[domain.PairKey(a, b)]; ok {
		return raw, nil
	}
	return eventsJSON(0, 0), nil
}

func (p *fakeProvider) LabelInteractionText(ctx context.Context, a, b string) (json.RawMessage, error) {
	if err := p.enter(ctx, methodLabels, domain.PairKey(a, b)); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if raw, ok := p.labels[domain.PairKey(a, b)]; ok {
		return raw, nil
	}
	return json.RawMessage(`{"results":[]}`), nil
}

// eventsJSON builds an openFDA event search payload.
func eventsJSON(total, serious int) json.RawMessage {
	results := make([]string, 0, serious)
	for i := 0; i < serious; i++ {
		results = append(results, `{"serious":"1"}`)
	}
	return json.RawMessage(fmt.Sprintf(`{"meta":{"results":{"skip":0,"limit":100,"total":%d}},"results":[%s]}`,
		total, strings.Join(results, ",")))
}

// mockCache implements driven.Cache with a plain map and no expiry.
type mockCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	gets   int
	hits   int
	setErr error
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	v, ok := m.data[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	m.hits++
	return v, nil
}

func (m *mockCache) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *mockCache) Len(_ context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func (m *mockCache) TTL() time.Duration { return time.Hour }
func (m *mockCache) Close() error { return nil }

func (m *mockCache) hitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits
}

// mockObserver implements driven.PipelineObserver by counting calls.
type mockObserver struct {
	mu       sync.Mutex
	stages   map[string]int
	retries  map[string]int
	failures map[string]string
	tasks    map[string]int
	cache    map[string]int
	levels   map[string]int
}

func newMockObserver() *mockObserver {
	return &mockObserver{
		stages:   make(map[string]int),
		retries:  make(map[string]int),
		failures: make(map[string]string),
		tasks:    make(map[string]int),
		cache:    make(map[string]int),
		levels:   make(map[string]int),
	}
}

func (m *mockObserver) ObserveStage(stage, status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages[stage+"/"+status]++
}

func (m *mockObserver) IncStageRetry(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries[stage]++
}

func (m *mockObserver) IncStageFailure(stage, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[stage] = reason
}

func (m *mockObserver) ObserveTask(taskType, status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[taskType+"/"+status]++
}

func (m *mockObserver) IncCache(namespace, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[namespace+"/"+outcome]++
}

func (m *mockObserver) IncRiskLevel(level string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[level]++
}

// stubSubagent implements Subagent with a caller-supplied function.
type stubSubagent struct {
	kind domain.TaskType
	fn   taskFunc
}

func (s stubSubagent) Kind() domain.TaskType { return s.kind }

func (s stubSubagent) Execute(ctx context.Context, task domain.Task) domain.TaskResult {
	return runTask(ctx, s.kind, task, s.fn)
}

// --- Fixtures ---

var testKB = func() *knowledge.Base {
	kb, err := knowledge.New()
	if err != nil {
		panic(err)
	}
	return kb
}()

func testSettings() domain.PipelineSettings {
	return domain.PipelineSettings{
		Timeout:      2 * time.Second,
		StageTimeout: time.Second,
		MaxRetries:   2,
	}
}

// pipeline bundles an orchestrator with the fakes behind it.
type pipeline struct {
	orch     *Orchestrator
	provider *fakeProvider
	cache    *mockCache
	checker  *InteractionChecker
	observer *mockObserver
	patients *memory.PatientStore
}

func newTestPipeline(settings domain.PipelineSettings, patients ...domain.PatientRecord) *pipeline {
	p := &pipeline{
		provider: newFakeProvider(),
		cache:    newMockCache(),
		observer: newMockObserver(),
		patients: memory.NewPatientStore(patients...),
	}
	normalizer := NewDrugNormalizer(p.provider, p.cache)
	p.checker = NewInteractionChecker(p.provider, p.cache)
	contextProvider := NewPatientContextProvider(p.patients, testKB)
	assessor := NewRiskAssessor(testKB)

	p.orch = NewOrchestrator(normalizer, contextProvider, p.checker, assessor, settings)
	p.orch.SetObserver(p.observer)
	normalizer.SetObserver(p.observer)
	p.checker.SetObserver(p.observer)
	return p
}

func elderlyPatient() domain.PatientRecord {
	return domain.PatientRecord{
		ID:       "p-elderly",
		Age:      70,
		Gender:   "female",
		WeightKg: 65,
		HeightCm: 160,
		Medications: []domain.MedicationRecord{
			{DrugName: "omeprazole", Dose: "20 mg", Frequency: "daily"},
		},
		LabResults: []domain.LabResult{
			{Name: "eGFR", Value: 85, Unit: "mL/min/1.73m2", Date: time.Now()},
		},
	}
}

func penicillinAllergicPatient() domain.PatientRecord {
	return domain.PatientRecord{
		ID:        "p-allergy",
		Age:       30,
		Allergies: []string{"Penicillin"},
	}
}

var _ driven.DrugDataProvider = (*fakeProvider)(nil)
var _ driven.Cache = (*mockCache)(nil)
var _ driven.PipelineObserver = (*mockObserver)(nil)
