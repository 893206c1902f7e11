package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
	"github.com/bivasb/medguard-ai-sub000/internal/core/ports/driven"
	"github.com/bivasb/medguard-ai-sub000/internal/logger"
)

// Ensure DrugNormalizer implements the interface.
var _ Subagent = (*DrugNormalizer)(nil)

// Confidence adjustments applied during resolution.
const (
	approximatePenalty = 0.1
	spellingPenalty    = 0.2
	warningPenalty     = 0.1
	minNormConfidence  = 0.3
	syntheticIDConf    = 0.7
)

// DrugNormalizer resolves free-text drug names to canonical identifiers.
type DrugNormalizer struct {
	provider driven.DrugDataProvider
	cache    resultCache
	tel      telemetry
}

// NewDrugNormalizer creates a normalizer. The cache is optional (can be nil).
func NewDrugNormalizer(provider driven.DrugDataProvider, cache driven.Cache) *DrugNormalizer {
	n := &DrugNormalizer{provider: provider}
	n.cache = resultCache{cache: cache, tel: &n.tel}
	return n
}

// SetObserver sets the telemetry observer.
func (n *DrugNormalizer) SetObserver(obs driven.PipelineObserver) {
	n.tel.obs = obs
}

// Kind implements Subagent.
func (n *DrugNormalizer) Kind() domain.TaskType {
	return domain.TaskTypeNormalize
}

// Execute implements Subagent.
func (n *DrugNormalizer) Execute(ctx context.Context, task domain.Task) domain.TaskResult {
	return runTask(ctx, n.Kind(), task, func(ctx context.Context, input domain.TaskInput) (*taskOutcome, error) {
		in, ok := input.(domain.NormalizeInput)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected input %T", domain.ErrLogic, input)
		}
		return n.normalize(ctx, in.DrugName)
	})
}

// resolution is the identifier step's result before enrichment.
type resolution struct {
	rxcui   string
	matched string // provider concept name
}

func (n *DrugNormalizer) normalize(ctx context.Context, name string) (*taskOutcome, error) {
	key := domain.DrugKey(name)
	if key == "" {
		return nil, fmt.Errorf("%w: empty drug name", domain.ErrValidation)
	}

	var cached domain.NormalizedDrug
	if n.cache.load(ctx, cacheNSNormalize, key, &cached) {
		out := &taskOutcome{output: &cached, confidence: cached.Confidence, source: domain.SourceCache}
		out.decide("served %q from cache", key)
		return out, nil
	}

	out := &taskOutcome{source: domain.SourceProvider, confidence: 1.0}
	drug := &domain.NormalizedDrug{OriginalInput: key}

	generic, aliased := lookupAlias(key)
	if aliased {
		out.decide("alias table resolved %q to %q", key, generic)
		drug.GenericName = generic
		out.source = "alias_table"

		id, err := n.exactID(ctx, generic)
		switch {
		case err != nil:
			// Provider outage: degrade to a synthetic identifier.
			logger.Warn("Normalizer falling back to synthetic id for %q: %v", generic, err)
			drug.RxCUI = domain.SyntheticID(generic)
			drug.Synthetic = true
			drug.BrandNames = brandsFor(generic)
			drug.ActiveIngredients = []string{generic}
			drug.Confidence = syntheticIDConf
			out.warn("drug data provider unavailable; %q uses synthetic identifier %s", generic, drug.RxCUI)
			out.recs.Limitations = append(out.recs.Limitations, "brand names and ingredients come from the local alias table only")
			out.confidence = drug.Confidence
			out.output = drug
			// Synthetic results are not cached so a recovered provider is used next time.
			return out, nil
		case id == "":
			drug.RxCUI = domain.SyntheticID(generic)
			drug.Synthetic = true
			out.degrade(warningPenalty, "no concept identifier found for %q; using %s", generic, drug.RxCUI)
		default:
			drug.RxCUI = id
		}
	}

	matched := key
	if !aliased {
		res, err := n.resolve(ctx, key, out)
		if err != nil {
			return out, err
		}
		drug.RxCUI = res.rxcui
		if res.matched != "" {
			matched = domain.DrugKey(res.matched)
		}
	}

	if !drug.Synthetic {
		n.enrich(ctx, drug, out)
	}
	if drug.GenericName == "" {
		drug.GenericName = matched
	}
	drug.BrandNames = mergeNames(drug.BrandNames, brandsFor(drug.GenericName))
	if len(drug.ActiveIngredients) == 0 {
		drug.ActiveIngredients = []string{drug.GenericName}
	}

	if out.confidence < minNormConfidence {
		out.confidence = minNormConfidence
	}
	drug.Confidence = out.confidence
	out.output = drug

	n.cache.store(ctx, cacheNSNormalize, key, drug)
	return out, nil
}

// resolve runs approximate match, exact match and spelling suggestion in
// order, stopping at the first success.
func (n *DrugNormalizer) resolve(ctx context.Context, key string, out *taskOutcome) (resolution, error) {
	var providerErr error

	raw, err := n.provider.NormalizeApproximate(ctx, key)
	if err == nil {
		cand, ok, perr := parseApproximate(raw)
		switch {
		case perr != nil:
			providerErr = perr
		case ok:
			out.decide("approximate match %q (rxcui %s, score %.1f)", cand.name, cand.rxcui, cand.score)
			out.confidence -= approximatePenalty
			return resolution{rxcui: cand.rxcui, matched: cand.name}, nil
		}
	} else {
		providerErr = err
	}

	id, err := n.exactID(ctx, key)
	if err != nil {
		providerErr = err
	} else if id != "" {
		out.decide("exact match for %q (rxcui %s)", key, id)
		return resolution{rxcui: id, matched: key}, nil
	}

	raw, err = n.provider.SpellingSuggestions(ctx, key)
	if err != nil {
		providerErr = err
	} else {
		suggestion, ok, perr := parseSpelling(raw)
		switch {
		case perr != nil:
			providerErr = perr
		case ok:
			id, err := n.exactID(ctx, suggestion)
			if err != nil {
				providerErr = err
			} else if id != "" {
				out.decide("spelling suggestion %q for %q (rxcui %s)", suggestion, key, id)
				out.confidence -= spellingPenalty
				out.degrade(warningPenalty, "%q resolved via spelling suggestion %q", key, suggestion)
				return resolution{rxcui: id, matched: suggestion}, nil
			}
		}
	}

	if providerErr != nil {
		return resolution{}, fmt.Errorf("normalize %q: %w", key, providerErr)
	}
	return resolution{}, fmt.Errorf("%w: %q", domain.ErrDrugNotFound, key)
}

func (n *DrugNormalizer) exactID(ctx context.Context, name string) (string, error) {
	raw, err := n.provider.NormalizeExact(ctx, name)
	if err != nil {
		return "", err
	}
	id, _, err := parseExact(raw)
	return id, err
}

// enrich fills generic name, brands and ingredients from concept metadata.
// Failures here are warnings, never errors.
func (n *DrugNormalizer) enrich(ctx context.Context, drug *domain.NormalizedDrug, out *taskOutcome) {
	raw, err := n.provider.RelatedNames(ctx, drug.RxCUI)
	if err == nil {
		var related relatedNames
		related, err = parseRelated(raw)
		if err == nil {
			drug.BrandNames = mergeNames(drug.BrandNames, related.brands)
			drug.ActiveIngredients = mergeNames(drug.ActiveIngredients, related.ingredients)
			if drug.GenericName == "" && len(related.ingredients) == 1 {
				drug.GenericName = related.ingredients[0]
				out.decide("generic name %q from related ingredients", drug.GenericName)
			}
		}
	}
	if err != nil {
		out.degrade(warningPenalty, "related names unavailable for %s: %v", drug.RxCUI, err)
	}

	raw, err = n.provider.Properties(ctx, drug.RxCUI)
	if err == nil {
		var props conceptProperties
		props, err = parseProperties(raw)
		if err == nil && props.tty == "IN" && props.name != "" {
			if g := domain.DrugKey(props.name); drug.GenericName != g {
				out.decide("generic name %q from concept properties", g)
				drug.GenericName = g
			}
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		out.degrade(warningPenalty, "concept properties unavailable for %s: %v", drug.RxCUI, err)
	}
}

func mergeNames(list []string, more []string) []string {
	for _, m := range more {
		list = appendUnique(list, m)
	}
	return list
}
