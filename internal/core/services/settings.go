package services

import (
	"fmt"
	"net/url"
	"time"

	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
	"github.com/bivasb/medguard-ai-sub000/internal/core/ports/driven"
	"github.com/bivasb/medguard-ai-sub000/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyPipelineTimeout  = "pipeline.timeout_ms"
	keyStageTimeout     = "pipeline.stage_timeout_ms"
	keyMaxRetries       = "pipeline.max_retries"
	keyCorroborate      = "interactions.corroborate_known"
	keyCacheBackend     = "cache.backend"
	keyCacheTTLHours    = "cache.ttl_hours"
	keyCacheHighWater   = "cache.high_water"
	keyCacheSweepSecs   = "cache.sweep_interval_s"
	keyCacheRedisURL    = "cache.redis_url"
	keyRxNormURL        = "provider.rxnorm_url"
	keyOpenFDAURL       = "provider.openfda_url"
	keyOpenFDAKey       = "provider.openfda_api_key"
	keyProviderTimeout  = "provider.timeout_ms"
	keyRxNormRPS        = "ratelimit.rxnorm_rps"
	keyOpenFDARPS       = "ratelimit.openfda_rps"
	keyRateBurst        = "ratelimit.burst"
	keyPatientBackend   = "patients.backend"
	keyPatientSQLiteDir = "patients.sqlite_dir"
	keyPatientPGURL     = "patients.postgres_url"
	keyLogFormat        = "logging.format"
	keyMetricsAddr      = "metrics.addr"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Pipeline: domain.PipelineSettings{
			Timeout:          s.getMillis(keyPipelineTimeout, defaults.Pipeline.Timeout),
			StageTimeout:     s.getMillis(keyStageTimeout, defaults.Pipeline.StageTimeout),
			MaxRetries:       s.getNonNegativeInt(keyMaxRetries, defaults.Pipeline.MaxRetries),
			CorroborateKnown: s.getBool(keyCorroborate, defaults.Pipeline.CorroborateKnown),
		},
		Cache: domain.CacheSettings{
			Backend:       s.getCacheBackend(defaults.Cache.Backend),
			TTL:           time.Duration(s.getInt(keyCacheTTLHours, int(defaults.Cache.TTL/time.Hour))) * time.Hour,
			HighWater:     s.getInt(keyCacheHighWater, defaults.Cache.HighWater),
			SweepInterval: time.Duration(s.getInt(keyCacheSweepSecs, int(defaults.Cache.SweepInterval/time.Second))) * time.Second,
			RedisURL:      s.configStore.GetString(keyCacheRedisURL),
		},
		Provider: domain.ProviderSettings{
			RxNormURL:     s.getString(keyRxNormURL, defaults.Provider.RxNormURL),
			OpenFDAURL:    s.getString(keyOpenFDAURL, defaults.Provider.OpenFDAURL),
			OpenFDAAPIKey: s.configStore.GetString(keyOpenFDAKey),
			Timeout:       s.getMillis(keyProviderTimeout, defaults.Provider.Timeout),
		},
		RateLimit: domain.RateLimitSettings{
			RxNormRPS:  s.getFloat(keyRxNormRPS, defaults.RateLimit.RxNormRPS),
			OpenFDARPS: s.getFloat(keyOpenFDARPS, defaults.RateLimit.OpenFDARPS),
			Burst:      s.getInt(keyRateBurst, defaults.RateLimit.Burst),
		},
		Patients: domain.PatientSettings{
			Backend:     s.getPatientBackend(defaults.Patients.Backend),
			SQLiteDir:   s.configStore.GetString(keyPatientSQLiteDir), // empty means ~/.medguard
			PostgresURL: s.configStore.GetString(keyPatientPGURL),
		},
		Logging: domain.LoggingSettings{
			Format: s.getString(keyLogFormat, defaults.Logging.Format),
		},
		Metrics: domain.MetricsSettings{
			Addr: s.configStore.GetString(keyMetricsAddr),
		},
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyPipelineTimeout, int(settings.Pipeline.Timeout.Milliseconds())},
		{keyStageTimeout, int(settings.Pipeline.StageTimeout.Milliseconds())},
		{keyMaxRetries, settings.Pipeline.MaxRetries},
		{keyCorroborate, settings.Pipeline.CorroborateKnown},
		{keyCacheBackend, settings.Cache.Backend.String()},
		{keyCacheTTLHours, int(settings.Cache.TTL / time.Hour)},
		{keyCacheHighWater, settings.Cache.HighWater},
		{keyCacheSweepSecs, int(settings.Cache.SweepInterval / time.Second)},
		{keyCacheRedisURL, settings.Cache.RedisURL},
		{keyRxNormURL, settings.Provider.RxNormURL},
		{keyOpenFDAURL, settings.Provider.OpenFDAURL},
		{keyProviderTimeout, int(settings.Provider.Timeout.Milliseconds())},
		{keyRxNormRPS, settings.RateLimit.RxNormRPS},
		{keyOpenFDARPS, settings.RateLimit.OpenFDARPS},
		{keyRateBurst, settings.RateLimit.Burst},
		{keyPatientBackend, settings.Patients.Backend.String()},
		{keyPatientSQLiteDir, settings.Patients.SQLiteDir},
		{keyPatientPGURL, settings.Patients.PostgresURL},
		{keyLogFormat, settings.Logging.Format},
		{keyMetricsAddr, settings.Metrics.Addr},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// Only overwrite the key when one is given
	if settings.Provider.OpenFDAAPIKey != "" {
		if err := s.configStore.Set(keyOpenFDAKey, settings.Provider.OpenFDAAPIKey); err != nil {
			return fmt.Errorf("save openfda api_key: %w", err)
		}
	}

	return nil
}

// SetCacheBackend selects the cache backend.
func (s *SettingsService) SetCacheBackend(backend domain.CacheBackend, redisURL string) error {
	if !backend.IsValid() {
		return fmt.Errorf("invalid cache backend: %s", backend)
	}
	if backend == domain.CacheBackendRedis && redisURL == "" {
		return fmt.Errorf("redis URL required for %s cache", backend)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Cache.Backend = backend
	if redisURL != "" {
		settings.Cache.RedisURL = redisURL
	}

	return s.Save(settings)
}

// SetPatientBackend selects the patient snapshot source. location is the
// SQLite directory or the PostgreSQL URL; memory ignores it.
func (s *SettingsService) SetPatientBackend(backend domain.PatientBackend, location string) error {
	if !backend.IsValid() {
		return fmt.Errorf("invalid patient backend: %s", backend)
	}
	if backend == domain.PatientBackendPostgres && location == "" {
		return fmt.Errorf("connection URL required for %s patients", backend)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Patients.Backend = backend
	switch backend {
	case domain.PatientBackendSQLite:
		settings.Patients.SQLiteDir = location
	case domain.PatientBackendPostgres:
		settings.Patients.PostgresURL = location
	}

	return s.Save(settings)
}

// SetOpenFDAKey stores the OpenFDA API key.
func (s *SettingsService) SetOpenFDAKey(key string) error {
	if key == "" {
		return fmt.Errorf("API key must not be empty")
	}
	return s.configStore.Set(keyOpenFDAKey, key)
}

// Validate checks if current settings are usable.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if settings.Pipeline.StageTimeout > settings.Pipeline.Timeout {
		return fmt.Errorf("stage timeout %s exceeds pipeline timeout %s",
			settings.Pipeline.StageTimeout, settings.Pipeline.Timeout)
	}

	if !settings.Cache.Backend.IsValid() {
		return fmt.Errorf("invalid cache backend: %s", settings.Cache.Backend)
	}
	if settings.Cache.Backend == domain.CacheBackendRedis && settings.Cache.RedisURL == "" {
		return fmt.Errorf("cache backend %q requires cache.redis_url", settings.Cache.Backend.Description())
	}

	if settings.Patients.Backend == domain.PatientBackendPostgres && settings.Patients.PostgresURL == "" {
		return fmt.Errorf("patient backend %q requires patients.postgres_url", settings.Patients.Backend.Description())
	}

	for _, raw := range []string{settings.Provider.RxNormURL, settings.Provider.OpenFDAURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid provider URL: %q", raw)
		}
	}

	if settings.RateLimit.RxNormRPS <= 0 || settings.RateLimit.OpenFDARPS <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}

	if f := settings.Logging.Format; f != "text" && f != "json" {
		return fmt.Errorf("invalid logging format: %s", f)
	}

	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

// getNonNegativeInt allows an explicit zero.
func (s *SettingsService) getNonNegativeInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	val := s.configStore.GetInt(key)
	if val < 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getMillis(key string, defaultVal time.Duration) time.Duration {
	ms := s.configStore.GetInt(key)
	if ms <= 0 {
		return defaultVal
	}
	return time.Duration(ms) * time.Millisecond
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	val := s.configStore.GetFloat(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getCacheBackend(defaultVal domain.CacheBackend) domain.CacheBackend {
	backend := domain.CacheBackend(s.configStore.GetString(keyCacheBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}

func (s *SettingsService) getPatientBackend(defaultVal domain.PatientBackend) domain.PatientBackend {
	backend := domain.PatientBackend(s.configStore.GetString(keyPatientBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}
