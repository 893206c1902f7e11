package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
	"github.com/bivasb/medguard-ai-sub000/internal/core/ports/driven"
	"github.com/bivasb/medguard-ai-sub000/internal/logger"
)

// telemetry is a nil-safe wrapper around an optional observer.
type telemetry struct {
	obs driven.PipelineObserver
}

func (t telemetry) stage(stage domain.Stage, status string, d time.Duration) {
	if t.obs != nil {
		t.obs.ObserveStage(stage.String(), status, d)
	}
}

func (t telemetry) retry(stage domain.Stage) {
	if t.obs != nil {
		t.obs.IncStageRetry(stage.String())
	}
}

func (t telemetry) failure(stage domain.Stage, reason string) {
	if t.obs != nil {
		t.obs.IncStageFailure(stage.String(), reason)
	}
}

func (t telemetry) task(r domain.TaskResult, taskType domain.TaskType) {
	if t.obs != nil {
		t.obs.ObserveTask(taskType.String(), string(r.Status), time.Duration(r.Metadata.ProcessingTimeMS)*time.Millisecond)
	}
}

func (t telemetry) cache(namespace string, hit bool) {
	if t.obs == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	t.obs.IncCache(namespace, outcome)
}

func (t telemetry) level(level domain.RiskLevel) {
	if t.obs != nil {
		t.obs.IncRiskLevel(level.String())
	}
}

// Cache namespaces.
const (
	cacheNSNormalize   = "normalize"
	cacheNSInteraction = "interaction"
)

// resultCache stores JSON-encoded lookup results in an optional driven.Cache.
type resultCache struct {
	cache driven.Cache
	tel   *telemetry
}

func (c resultCache) load(ctx context.Context, namespace, key string, v any) bool {
	if c.cache == nil {
		return false
	}
	data, err := c.cache.Get(ctx, namespace+":"+key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			logger.Warn("Cache read failed for %s:%s: %v", namespace, key, err)
		}
		c.tel.cache(namespace, false)
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		logger.Warn("Discarding corrupt cache entry %s:%s: %v", namespace, key, err)
		_ = c.cache.Delete(ctx, namespace+":"+key)
		c.tel.cache(namespace, false)
		return false
	}
	c.tel.cache(namespace, true)
	return true
}

func (c resultCache) store(ctx context.Context, namespace, key string, v any) {
	if c.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		logger.Warn("Cache encode failed for %s:%s: %v", namespace, key, err)
		return
	}
	if err := c.cache.Set(ctx, namespace+":"+key, data); err != nil {
		logger.Warn("Cache write failed for %s:%s: %v", namespace, key, err)
	}
}
