// Package metrics exposes pipeline telemetry as Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bivasb/medguard-ai-sub000/internal/core/ports/driven"
	"github.com/bivasb/medguard-ai-sub000/internal/logger"
)

var _ driven.PipelineObserver = (*Metrics)(nil)

const namespace = "medguard"

// Metrics implements driven.PipelineObserver with Prometheus collectors.
type Metrics struct {
	stageDuration *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
	stageRetries  *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	cacheLookups  *prometheus.CounterVec
	riskLevels    *prometheus.CounterVec
}

// New registers the collectors with reg. Registering twice with the same
// registry reuses the existing collectors.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration spent in each pipeline stage.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"stage", "status"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_failures_total",
			Help:      "Stage executions that failed after the retry budget was spent.",
		}, []string{"stage", "reason"}),
		stageRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_retries_total",
			Help:      "Number of times a stage was re-entered.",
		}, []string{"stage"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "subagent",
			Name:      "task_duration_seconds",
			Help:      "Duration of subagent tasks by type and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task_type", "status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by namespace and outcome.",
		}, []string{"namespace", "outcome"}),
		riskLevels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "risk_levels_total",
			Help:      "Final risk levels returned.",
		}, []string{"level"}),
	}

	if err := register(reg, &m.stageDuration); err != nil {
		return nil, err
	}
	for _, c := range []**prometheus.CounterVec{&m.stageFailures, &m.stageRetries, &m.cacheLookups, &m.riskLevels} {
		if err := register(reg, c); err != nil {
			return nil, err
		}
	}
	if err := register(reg, &m.taskDuration); err != nil {
		return nil, err
	}
	return m, nil
}

// register registers *c, swapping in the existing collector on a
// duplicate registration.
func register[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				*c = existing
				return nil
			}
		}
		return err
	}
	return nil
}

// sizer reports the number of stored cache entries.
type sizer interface {
	Len(ctx context.Context) int
}

// RegisterCacheSize exposes the cache entry count as a gauge sampled at
// scrape time.
func RegisterCacheSize(reg prometheus.Registerer, cache sizer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "entries",
		Help:      "Entries currently held by the lookup cache.",
	}, func() float64 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return float64(cache.Len(ctx))
	})
	return reg.Register(gauge)
}

// ObserveStage records a stage execution and its status.
func (m *Metrics) ObserveStage(stage, status string, duration time.Duration) {
	m.stageDuration.WithLabelValues(stage, status).Observe(duration.Seconds())
}

// IncStageRetry counts a stage re-entry.
func (m *Metrics) IncStageRetry(stage string) {
	m.stageRetries.WithLabelValues(stage).Inc()
}

// IncStageFailure counts a stage failure with a reason.
func (m *Metrics) IncStageFailure(stage, reason string) {
	m.stageFailures.WithLabelValues(stage, reason).Inc()
}

// ObserveTask records one subagent task.
func (m *Metrics) ObserveTask(taskType, status string, duration time.Duration) {
	m.taskDuration.WithLabelValues(taskType, status).Observe(duration.Seconds())
}

// IncCache counts a cache lookup outcome.
func (m *Metrics) IncCache(namespace, outcome string) {
	m.cacheLookups.WithLabelValues(namespace, outcome).Inc()
}

// IncRiskLevel counts a final risk level.
func (m *Metrics) IncRiskLevel(level string) {
	m.riskLevels.WithLabelValues(level).Inc()
}

// Serve exposes /metrics for gatherer on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics: listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
