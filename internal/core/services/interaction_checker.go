package services

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
	"github.com/bivasb/medguard-ai-sub000/internal/core/ports/driven"
	"github.com/bivasb/medguard-ai-sub000/internal/logger"
)

// Ensure InteractionChecker implements the interface.
var _ Subagent = (*InteractionChecker)(nil)

// Evidence thresholds for adverse-event counts.
const (
	majorSeriousEvents    = 10
	moderateSeriousEvents = 5
	minorTotalEvents      = 10
	adverseEventLimit     = 100
	labelCorroboration    = 0.2
	fallbackConfidence    = 0.7
	noSignalConfidence    = 0.6
)

const unknownMechanism = "unknown mechanism"

// mechanismKeywords maps label text keywords to a mechanism description.
// Order matters: the first match wins.
var mechanismKeywords = []struct {
	keyword   string
	mechanism string
}{
	{"cyp", "cytochrome P450 interaction"},
	{"serotonin", "serotonergic (serotonin syndrome risk)"},
	{"bleeding", "bleeding risk"},
	{"hemorrhage", "bleeding risk"},
	{"qt", "QT interval prolongation"},
	{"hyperkalemia", "additive potassium retention"},
	{"hypotension", "additive hypotensive effect"},
}

// InteractionChecker determines whether and how strongly a drug pair
// interacts, from the curated table and provider evidence.
type InteractionChecker struct {
	provider         driven.DrugDataProvider
	cache            resultCache
	tel              telemetry
	corroborateKnown atomic.Bool
}

// NewInteractionChecker creates a checker. The cache is optional (can be nil).
func NewInteractionChecker(provider driven.DrugDataProvider, cache driven.Cache) *InteractionChecker {
	c := &InteractionChecker{provider: provider}
	c.cache = resultCache{cache: cache, tel: &c.tel}
	return c
}

// SetObserver sets the telemetry observer.
func (c *InteractionChecker) SetObserver(obs driven.PipelineObserver) {
	c.tel.obs = obs
}

// SetCorroborateKnown makes known-table pairs query the provider too.
func (c *InteractionChecker) SetCorroborateKnown(v bool) {
	c.corroborateKnown.Store(v)
}

// Kind implements Subagent.
func (c *InteractionChecker) Kind() domain.TaskType {
	return domain.TaskTypeInteractionCheck
}

// Execute implements Subagent.
func (c *InteractionChecker) Execute(ctx context.Context, task domain.Task) domain.TaskResult {
	return runTask(ctx, c.Kind(), task, func(ctx context.Context, input domain.TaskInput) (*taskOutcome, error) {
		in, ok := input.(domain.InteractionInput)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected input %T", domain.ErrLogic, input)
		}
		return c.check(ctx, in.Drug1.GenericName, in.Drug2.GenericName)
	})
}

// evidence is what the provider returned for a pair.
type evidence struct {
	events    eventCounts
	labels    []string
	eventsErr error
	labelsErr error
}

func (e evidence) failed() bool {
	return e.eventsErr != nil && e.labelsErr != nil
}

func (c *InteractionChecker) check(ctx context.Context, drug1, drug2 string) (*taskOutcome, error) {
	a, b := domain.DrugKey(drug1), domain.DrugKey(drug2)
	if a == "" || b == "" {
		return nil, fmt.Errorf("%w: interaction check needs two generic names", domain.ErrLogic)
	}
	pairKey := domain.PairKey(a, b)

	var cached domain.Interaction
	if c.cache.load(ctx, cacheNSInteraction, pairKey, &cached) {
		ix := orient(cached, a, b)
		out := &taskOutcome{output: &ix, confidence: ix.Confidence, source: domain.SourceCache}
		out.decide("served %s from cache", pairKey)
		return out, nil
	}

	known, isKnown := lookupKnown(a, b)
	if isKnown && !c.corroborateKnown.Load() {
		out := &taskOutcome{output: &known, confidence: known.Confidence, source: domain.SourceKnownTable}
		out.decide("known interaction table hit for %s", pairKey)
		c.cache.store(ctx, cacheNSInteraction, pairKey, known)
		return out, nil
	}

	ev := c.gather(ctx, a, b)
	out := &taskOutcome{}

	if ev.failed() {
		if !isKnown {
			return out, fmt.Errorf("check %s: %w", pairKey, ev.eventsErr)
		}
		logger.Warn("Interaction provider unavailable for %s, using known table: %v", pairKey, ev.eventsErr)
		ix := known
		ix.Confidence = fallbackConfidence
		ix.Source = domain.SourceFallback
		out.output = &ix
		out.confidence = ix.Confidence
		out.source = domain.SourceFallback
		out.decide("provider failed; fell back to known table for %s", pairKey)
		out.warn("interaction data provider unavailable; %s reported from the curated table only", pairKey)
		return out, nil
	}
	if ev.eventsErr != nil {
		out.warn("adverse event data unavailable for %s: %v", pairKey, ev.eventsErr)
	}
	if ev.labelsErr != nil {
		out.warn("label text unavailable for %s: %v", pairKey, ev.labelsErr)
	}

	var ix domain.Interaction
	if isKnown {
		ix = known
		ix.SeriousEvents = ev.events.serious
		ix.TotalEvents = ev.events.total
		if len(ev.labels) > 0 {
			ix.Confidence = domain.Clamp01(ix.Confidence + labelCorroboration)
			out.decide("label text corroborates known interaction %s", pairKey)
		}
		out.decide("known interaction %s corroborated against provider", pairKey)
	} else {
		ix = fromEvidence(a, b, ev)
		out.decide("%s: %d adverse events (%d serious), %d label mentions", pairKey, ev.events.total, ev.events.serious, len(ev.labels))
	}

	out.output = &ix
	out.confidence = ix.Confidence
	out.source = ix.Source
	c.cache.store(ctx, cacheNSInteraction, pairKey, ix)
	return out, nil
}

// gather queries adverse events and label text concurrently. A failure of
// one source does not cancel the other.
func (c *InteractionChecker) gather(ctx context.Context, a, b string) evidence {
	var ev evidence
	var g errgroup.Group

	g.Go(func() error {
		raw, err := c.provider.AdverseEvents(ctx, a, b, adverseEventLimit)
		if err == nil {
			ev.events, err = parseEvents(raw)
		}
		ev.eventsErr = err
		return nil
	})
	g.Go(func() error {
		raw, err := c.provider.LabelInteractionText(ctx, a, b)
		if err == nil {
			ev.labels, err = parseLabels(raw, a, b)
		}
		ev.labelsErr = err
		return nil
	})
	_ = g.Wait()
	return ev
}

// fromEvidence classifies a pair from provider evidence alone.
func fromEvidence(a, b string, ev evidence) domain.Interaction {
	ix := domain.Interaction{
		Drug1:         a,
		Drug2:         b,
		SeriousEvents: ev.events.serious,
		TotalEvents:   ev.events.total,
		Source:        domain.SourceProvider,
	}

	serious, total := ev.events.serious, ev.events.total
	switch {
	case serious > majorSeriousEvents:
		ix.Severity, ix.Confidence, ix.Found = domain.SeverityMajor, 0.9, true
	case serious > moderateSeriousEvents:
		ix.Severity, ix.Confidence, ix.Found = domain.SeverityModerate, 0.8, true
	case total > minorTotalEvents:
		ix.Severity, ix.Confidence, ix.Found = domain.SeverityMinor, 0.7, true
	default:
		ix.Severity, ix.Confidence = domain.SeverityUnknown, noSignalConfidence
	}

	if len(ev.labels) > 0 {
		ix.Found = true
		if ix.Severity == domain.SeverityUnknown {
			ix.Severity = domain.SeverityMinor
		}
		ix.Confidence = domain.Clamp01(ix.Confidence + labelCorroboration)
	}

	if !ix.Found {
		ix.Source = domain.SourceNoSignal
		ix.Mechanism = unknownMechanism
		ix.Description = fmt.Sprintf("No interaction evidence found between %s and %s.", a, b)
		ix.ClinicalSignificance = "Absence of reports does not establish safety; apply clinical judgement."
		return ix
	}

	ix.Mechanism = inferMechanism(ev.labels)
	switch {
	case total > 0 && len(ev.labels) > 0:
		ix.Description = fmt.Sprintf("%d adverse event reports (%d serious) and product labelling mention %s with %s.", total, serious, a, b)
	case total > 0:
		ix.Description = fmt.Sprintf("%d adverse event reports (%d serious) mention %s with %s.", total, serious, a, b)
	default:
		ix.Description = fmt.Sprintf("Product labelling for %s describes an interaction with %s.", a, b)
	}
	ix.ClinicalSignificance = significanceFor(ix.Severity)
	return ix
}

func inferMechanism(labels []string) string {
	text := strings.ToLower(strings.Join(labels, " "))
	for _, m := range mechanismKeywords {
		if strings.Contains(text, m.keyword) {
			return m.mechanism
		}
	}
	return unknownMechanism
}

func significanceFor(s domain.Severity) string {
	switch s {
	case domain.SeverityMajor:
		return "Clinically significant; avoid combination or monitor closely."
	case domain.SeverityModerate:
		return "May require dose adjustment or additional monitoring."
	default:
		return "Usually of limited clinical significance."
	}
}

// orient returns ix with Drug1 and Drug2 in the requested order.
func orient(ix domain.Interaction, a, b string) domain.Interaction {
	if domain.DrugKey(ix.Drug1) == b && domain.DrugKey(ix.Drug2) == a {
		ix.Drug1, ix.Drug2 = ix.Drug2, ix.Drug1
	}
	return ix
}
