package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bivasb/medguard-ai-sub000/internal/adapters/driven/storage/memory"
	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
)

// failingConfigStore rejects every write.
type failingConfigStore struct {
	*memory.ConfigStore
}

func (f failingConfigStore) Set(string, any) error {
	return errors.New("disk full")
}

func TestNewSettingsService(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	require.NotNil(t, service)
}

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	settings, err := service.Get()

	require.NoError(t, err)
	require.NotNil(t, settings)
	assert.Equal(t, domain.DefaultAppSettings(), *settings)
	assert.Equal(t, service.GetDefaults(), *settings)
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	store := memory.NewConfigStore(map[string]any{
		"pipeline.timeout_ms":            8000,
		"pipeline.stage_timeout_ms":      2500,
		"pipeline.max_retries":           4,
		"interactions.corroborate_known": true,
		"cache.backend":                  "redis",
		"cache.ttl_hours":                6,
		"cache.high_water":               200,
		"cache.sweep_interval_s":         30,
		"cache.redis_url":                "redis://localhost:6379/1",
		"provider.openfda_api_key":       "key-123",
		"provider.timeout_ms":            1500,
		"ratelimit.rxnorm_rps":           10.5,
		"ratelimit.openfda_rps":          2,
		"ratelimit.burst":                3,
		"patients.backend":               "postgres",
		"patients.postgres_url":          "postgres://medguard@localhost/medguard",
		"logging.format":                 "json",
		"metrics.addr":                   ":9464",
	})
	service := NewSettingsService(store)

	s, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, 8*time.Second, s.Pipeline.Timeout)
	assert.Equal(t, 2500*time.Millisecond, s.Pipeline.StageTimeout)
	assert.Equal(t, 4, s.Pipeline.MaxRetries)
	assert.True(t, s.Pipeline.CorroborateKnown)
	assert.Equal(t, domain.CacheBackendRedis, s.Cache.Backend)
	assert.Equal(t, 6*time.Hour, s.Cache.TTL)
	assert.Equal(t, 200, s.Cache.HighWater)
	assert.Equal(t, 30*time.Second, s.Cache.SweepInterval)
	assert.Equal(t, "redis://localhost:6379/1", s.Cache.RedisURL)
	assert.Equal(t, "key-123", s.Provider.OpenFDAAPIKey)
	assert.Equal(t, 1500*time.Millisecond, s.Provider.Timeout)
	assert.Equal(t, domain.DefaultRxNormURL, s.Provider.RxNormURL)
	assert.InDelta(t, 10.5, s.RateLimit.RxNormRPS, 1e-9)
	assert.InDelta(t, 2.0, s.RateLimit.OpenFDARPS, 1e-9)
	assert.Equal(t, 3, s.RateLimit.Burst)
	assert.Equal(t, domain.PatientBackendPostgres, s.Patients.Backend)
	assert.Equal(t, "postgres://medguard@localhost/medguard", s.Patients.PostgresURL)
	assert.Equal(t, "json", s.Logging.Format)
	assert.Equal(t, ":9464", s.Metrics.Addr)
}

func TestSettingsService_Get_InvalidValuesReturnDefaults(t *testing.T) {
	store := memory.NewConfigStore(map[string]any{
		"cache.backend":         "memcached",
		"patients.backend":      "mongo",
		"pipeline.timeout_ms":   -5,
		"pipeline.max_retries":  -1,
		"ratelimit.rxnorm_rps":  0,
		"cache.high_water":      "lots",
		"provider.rxnorm_url":   "",
	})
	service := NewSettingsService(store)

	s, err := service.Get()

	require.NoError(t, err)
	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults.Cache.Backend, s.Cache.Backend)
	assert.Equal(t, defaults.Patients.Backend, s.Patients.Backend)
	assert.Equal(t, defaults.Pipeline.Timeout, s.Pipeline.Timeout)
	assert.Equal(t, defaults.Pipeline.MaxRetries, s.Pipeline.MaxRetries)
	assert.Equal(t, defaults.RateLimit.RxNormRPS, s.RateLimit.RxNormRPS)
	assert.Equal(t, defaults.Cache.HighWater, s.Cache.HighWater)
	assert.Equal(t, defaults.Provider.RxNormURL, s.Provider.RxNormURL)
}

func TestSettingsService_Get_ZeroRetriesIsExplicit(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(map[string]any{"pipeline.max_retries": 0}))

	s, err := service.Get()

	require.NoError(t, err)
	assert.Zero(t, s.Pipeline.MaxRetries)
}

func TestSettingsService_Save_RoundTrip(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)

	settings := domain.DefaultAppSettings()
	settings.Pipeline.Timeout = 7 * time.Second
	settings.Pipeline.MaxRetries = 1
	settings.Pipeline.CorroborateKnown = true
	settings.Cache.Backend = domain.CacheBackendRedis
	settings.Cache.RedisURL = "redis://cache:6379/0"
	settings.RateLimit.OpenFDARPS = 1.5
	settings.Patients.SQLiteDir = "/var/lib/medguard"
	settings.Logging.Format = "json"
	settings.Provider.OpenFDAAPIKey = "secret"

	require.NoError(t, service.Save(&settings))

	loaded, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, settings, *loaded)
}

func TestSettingsService_Save_KeepsExistingAPIKey(t *testing.T) {
	store := memory.NewConfigStore(map[string]any{"provider.openfda_api_key": "existing"})
	service := NewSettingsService(store)

	settings := domain.DefaultAppSettings()
	require.NoError(t, service.Save(&settings))

	assert.Equal(t, "existing", store.GetString("provider.openfda_api_key"))
}

func TestSettingsService_Save_StoreError(t *testing.T) {
	service := NewSettingsService(failingConfigStore{memory.NewConfigStore()})

	settings := domain.DefaultAppSettings()
	err := service.Save(&settings)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.timeout_ms")
}

func TestSettingsService_SetCacheBackend(t *testing.T) {
	t.Run("redis with url", func(t *testing.T) {
		service := NewSettingsService(memory.NewConfigStore())

		require.NoError(t, service.SetCacheBackend(domain.CacheBackendRedis, "redis://localhost:6379/0"))

		s, _ := service.Get()
		assert.Equal(t, domain.CacheBackendRedis, s.Cache.Backend)
		assert.Equal(t, "redis://localhost:6379/0", s.Cache.RedisURL)
	})

	t.Run("redis without url", func(t *testing.T) {
		service := NewSettingsService(memory.NewConfigStore())

		assert.Error(t, service.SetCacheBackend(domain.CacheBackendRedis, ""))
	})

	t.Run("memory keeps the old url", func(t *testing.T) {
		service := NewSettingsService(memory.NewConfigStore(map[string]any{"cache.redis_url": "redis://old"}))

		require.NoError(t, service.SetCacheBackend(domain.CacheBackendMemory, ""))

		s, _ := service.Get()
		assert.Equal(t, domain.CacheBackendMemory, s.Cache.Backend)
		assert.Equal(t, "redis://old", s.Cache.RedisURL)
	})

	t.Run("invalid backend", func(t *testing.T) {
		service := NewSettingsService(memory.NewConfigStore())

		assert.Error(t, service.SetCacheBackend(domain.CacheBackend("memcached"), ""))
	})
}

func TestSettingsService_SetPatientBackend(t *testing.T) {
	tests := []struct {
		name     string
		backend  domain.PatientBackend
		location string
		wantErr  bool
	}{
		{"memory", domain.PatientBackendMemory, "", false},
		{"sqlite default dir", domain.PatientBackendSQLite, "", false},
		{"sqlite custom dir", domain.PatientBackendSQLite, "/tmp/medguard", false},
		{"postgres", domain.PatientBackendPostgres, "postgres://localhost/medguard", false},
		{"postgres without url", domain.PatientBackendPostgres, "", true},
		{"unknown", domain.PatientBackend("mongo"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewSettingsService(memory.NewConfigStore())

			err := service.SetPatientBackend(tt.backend, tt.location)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			s, _ := service.Get()
			assert.Equal(t, tt.backend, s.Patients.Backend)
			switch tt.backend {
			case domain.PatientBackendSQLite:
				assert.Equal(t, tt.location, s.Patients.SQLiteDir)
			case domain.PatientBackendPostgres:
				assert.Equal(t, tt.location, s.Patients.PostgresURL)
			}
		})
	}
}

func TestSettingsService_SetOpenFDAKey(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)

	assert.Error(t, service.SetOpenFDAKey(""))
	require.NoError(t, service.SetOpenFDAKey("abc"))

	s, _ := service.Get()
	assert.Equal(t, "abc", s.Provider.OpenFDAAPIKey)
}

func TestSettingsService_Validate(t *testing.T) {
	tests := []struct {
		name    string
		seed    map[string]any
		wantErr string
	}{
		{"defaults", nil, ""},
		{"stage timeout above pipeline timeout", map[string]any{
			"pipeline.timeout_ms": 1000, "pipeline.stage_timeout_ms": 2000,
		}, "exceeds pipeline timeout"},
		{"redis without url", map[string]any{"cache.backend": "redis"}, "cache.redis_url"},
		{"redis with url", map[string]any{"cache.backend": "redis", "cache.redis_url": "redis://x"}, ""},
		{"postgres without url", map[string]any{"patients.backend": "postgres"}, "patients.postgres_url"},
		{"bad provider url", map[string]any{"provider.openfda_url": "not a url"}, "invalid provider URL"},
		{"bad log format", map[string]any{"logging.format": "xml"}, "invalid logging format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewSettingsService(memory.NewConfigStore(tt.seed))

			err := service.Validate()

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
