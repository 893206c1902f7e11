package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	memcache "github.com/bivasb/medguard-ai-sub000/internal/adapters/driven/cache/memory"
	rediscache "github.com/bivasb/medguard-ai-sub000/internal/adapters/driven/cache/redis"
	"github.com/bivasb/medguard-ai-sub000/internal/adapters/driven/config/file"
	"github.com/bivasb/medguard-ai-sub000/internal/adapters/driven/drugdata"
	"github.com/bivasb/medguard-ai-sub000/internal/adapters/driven/knowledge"
	"github.com/bivasb/medguard-ai-sub000/internal/adapters/driven/metrics"
	"github.com/bivasb/medguard-ai-sub000/internal/adapters/driven/storage/memory"
	"github.com/bivasb/medguard-ai-sub000/internal/adapters/driven/storage/postgres"
	"github.com/bivasb/medguard-ai-sub000/internal/adapters/driven/storage/sqlite"
	"github.com/bivasb/medguard-ai-sub000/internal/adapters/driving/cli"
	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
	"github.com/bivasb/medguard-ai-sub000/internal/core/ports/driven"
	"github.com/bivasb/medguard-ai-sub000/internal/core/services"
	"github.com/bivasb/medguard-ai-sub000/internal/logger"
)

// knowledgeFile overrides the embedded clinical tables when present in the
// config directory.
const knowledgeFile = "knowledge.yaml"

// patientStore is a readable patient backend that must be released.
type patientStore interface {
	driven.PatientStore
	Close() error
}

// app holds every wired component and the resources to release on exit.
type app struct {
	config       *file.ConfigStore
	settings     *services.SettingsService
	orchestrator *services.Orchestrator
	checker      *services.InteractionChecker
	patients     *services.PatientContextProvider
	registry     *prometheus.Registry
	metricsAddr  string

	cache driven.Cache
	store patientStore
}

// wire builds the application from the config directory. An empty dir
// means ~/.medguard.
func wire(ctx context.Context, dir string) (*app, error) {
	if dir == "" {
		d, err := file.DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}

	config, err := file.NewConfigStore(dir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	settingsSvc := services.NewSettingsService(config)
	settings, err := settingsSvc.Get()
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if err := logger.SetFormat(settings.Logging.Format); err != nil {
		logger.Warn("%v, using text", err)
	}
	if keys := config.Overridden(); len(keys) > 0 {
		logger.Debug("environment overrides: %v", keys)
	}

	registry := prometheus.NewRegistry()
	observer, err := metrics.New(registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	cache, err := openCache(ctx, settings.Cache)
	if err != nil {
		return nil, err
	}
	if err := metrics.RegisterCacheSize(registry, cache); err != nil {
		cache.Close()
		return nil, fmt.Errorf("register cache metrics: %w", err)
	}
	logger.WithFields(map[string]any{"backend": settings.Cache.Backend, "ttl": cache.TTL()}).Info("cache opened")
	store, err := openPatientStore(ctx, settings.Patients)
	if err != nil {
		cache.Close()
		return nil, err
	}

	kbPath := filepath.Join(dir, knowledgeFile)
	kb, fromFile, err := knowledge.Load(kbPath)
	if err != nil {
		cache.Close()
		store.Close()
		return nil, fmt.Errorf("load knowledge base: %w", err)
	}
	kbSource := "embedded"
	if fromFile {
		kbSource = kbPath
	}
	logger.WithFields(map[string]any{"drugs": kb.Len(), "source": kbSource}).Info("knowledge base loaded")

	provider := drugdata.NewProvider(settings.Provider, settings.RateLimit)

	normalizer := services.NewDrugNormalizer(provider, cache)
	normalizer.SetObserver(observer)
	checker := services.NewInteractionChecker(provider, cache)
	checker.SetObserver(observer)
	checker.SetCorroborateKnown(settings.Pipeline.CorroborateKnown)
	patients := services.NewPatientContextProvider(store, kb)
	assessor := services.NewRiskAssessor(kb)

	orchestrator := services.NewOrchestrator(normalizer, patients, checker, assessor, settings.Pipeline)
	orchestrator.SetObserver(observer)

	return &app{
		config:       config,
		settings:     settingsSvc,
		orchestrator: orchestrator,
		checker:      checker,
		patients:     patients,
		registry:     registry,
		metricsAddr:  settings.Metrics.Addr,
		cache:        cache,
		store:        store,
	}, nil
}

func (a *app) services() cli.Services {
	return cli.Services{
		Interaction: a.orchestrator,
		Patient:     a.patients,
		Settings:    a.settings,
		OnServe:     a.serve,
	}
}

// serve starts the config watcher and, when configured, the metrics
// endpoint for the lifetime of the MCP server.
func (a *app) serve(ctx context.Context) (func(), error) {
	watcher := file.NewWatcher(a.config, a.reload)
	if err := watcher.Start(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	if a.metricsAddr != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, a.metricsAddr, a.registry)
		})
	}

	return func() {
		cancel()
		watcher.Stop()
		if err := g.Wait(); err != nil {
			logger.Warn("metrics server: %v", err)
		}
	}, nil
}

// reload applies pipeline limits from a changed config file. Backend
// selections take effect on the next start.
func (a *app) reload() {
	settings, err := a.settings.Get()
	if err != nil {
		logger.Warn("reload settings: %v", err)
		return
	}
	if settings.Pipeline.StageTimeout > settings.Pipeline.Timeout {
		logger.Warn("ignoring reload: stage timeout %s exceeds pipeline timeout %s",
			settings.Pipeline.StageTimeout, settings.Pipeline.Timeout)
		return
	}
	a.orchestrator.SetPipelineSettings(settings.Pipeline)
	a.checker.SetCorroborateKnown(settings.Pipeline.CorroborateKnown)
	logger.Info("settings reloaded: timeout=%s retries=%d",
		settings.Pipeline.Timeout, settings.Pipeline.MaxRetries)
}

// Close releases the cache and patient store.
func (a *app) Close() error {
	return errors.Join(a.cache.Close(), a.store.Close())
}

func openCache(ctx context.Context, s domain.CacheSettings) (driven.Cache, error) {
	switch s.Backend {
	case domain.CacheBackendRedis:
		c, err := rediscache.New(ctx, s.RedisURL, s.TTL)
		if err != nil {
			return nil, fmt.Errorf("open redis cache: %w", err)
		}
		return c, nil
	default:
		c, err := memcache.New(memcache.Options{
			TTL:           s.TTL,
			HighWater:     s.HighWater,
			SweepInterval: s.SweepInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("open memory cache: %w", err)
		}
		return c, nil
	}
}

// memoryPatients adapts the in-memory store to patientStore.
type memoryPatients struct {
	*memory.PatientStore
}

func (memoryPatients) Close() error { return nil }

func openPatientStore(ctx context.Context, s domain.PatientSettings) (patientStore, error) {
	switch s.Backend {
	case domain.PatientBackendPostgres:
		store, err := postgres.Connect(ctx, s.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres patients: %w", err)
		}
		return store, nil
	case domain.PatientBackendSQLite:
		store, err := sqlite.NewStore(s.SQLiteDir)
		if err != nil {
			return nil, fmt.Errorf("open sqlite patients: %w", err)
		}
		if err := seedDemoPatients(ctx, store); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	default:
		return memoryPatients{memory.NewPatientStore(memory.DemoPatients()...)}, nil
	}
}

// seedDemoPatients fills an empty SQLite store with the demo records.
func seedDemoPatients(ctx context.Context, store *sqlite.Store) error {
	ids, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("list patients: %w", err)
	}
	if len(ids) > 0 {
		return nil
	}
	for _, r := range memory.DemoPatients() {
		if err := store.Save(ctx, r); err != nil {
			return fmt.Errorf("seed patient %s: %w", r.ID, err)
		}
	}
	logger.Debug("seeded %d demo patients into %s", len(memory.DemoPatients()), store.Path())
	return nil
}
