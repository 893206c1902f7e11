package domain

import "time"

const unknownDescription = "Unknown"

// CacheBackend selects where lookup results are cached.
type CacheBackend string

// Available cache backends.
const (
	// CacheBackendMemory is an in-process LRU with TTL sweep.
	CacheBackendMemory CacheBackend = "memory"

	// CacheBackendRedis shares the cache across processes.
	CacheBackendRedis CacheBackend = "redis"
)

// IsValid returns true if the backend is recognised.
func (b CacheBackend) IsValid() bool {
	switch b {
	case CacheBackendMemory, CacheBackendRedis:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b CacheBackend) String() string {
	return string(b)
}

// Description returns a human-readable description of the backend.
func (b CacheBackend) Description() string {
	switch b {
	case CacheBackendMemory:
		return "Memory (in-process)"
	case CacheBackendRedis:
		return "Redis (shared)"
	default:
		return unknownDescription
	}
}

// PatientBackend selects the read-only patient snapshot source.
type PatientBackend string

// Available patient backends.
const (
	PatientBackendMemory   PatientBackend = "memory"
	PatientBackendSQLite   PatientBackend = "sqlite"
	PatientBackendPostgres PatientBackend = "postgres"
)

// IsValid returns true if the backend is recognised.
func (b PatientBackend) IsValid() bool {
	switch b {
	case PatientBackendMemory, PatientBackendSQLite, PatientBackendPostgres:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b PatientBackend) String() string {
	return string(b)
}

// Description returns a human-readable description of the backend.
func (b PatientBackend) Description() string {
	switch b {
	case PatientBackendMemory:
		return "Memory (fixtures only)"
	case PatientBackendSQLite:
		return "SQLite (local snapshot)"
	case PatientBackendPostgres:
		return "PostgreSQL"
	default:
		return unknownDescription
	}
}

// PipelineSettings bounds orchestrator execution.
type PipelineSettings struct {
	// Timeout is the top-level deadline for one request.
	Timeout time.Duration

	// StageTimeout is the per-task deadline inside each stage.
	StageTimeout time.Duration

	// MaxRetries is the shared per-request retry ceiling.
	MaxRetries int

	// CorroborateKnown queries the provider even for known-table pairs.
	CorroborateKnown bool
}

// CacheSettings configures the lookup cache.
type CacheSettings struct {
	Backend       CacheBackend
	TTL           time.Duration
	HighWater     int
	SweepInterval time.Duration
	RedisURL      string
}

// ProviderSettings configures the external drug data sources.
type ProviderSettings struct {
	RxNormURL     string
	OpenFDAURL    string
	OpenFDAAPIKey string
	Timeout       time.Duration
}

// RateLimitSettings configures per-source request rates.
type RateLimitSettings struct {
	RxNormRPS  float64
	OpenFDARPS float64
	Burst      int
}

// PatientSettings configures the patient snapshot source.
type PatientSettings struct {
	Backend     PatientBackend
	SQLiteDir   string
	PostgresURL string
}

// LoggingSettings configures log output.
type LoggingSettings struct {
	// Format is "text" or "json".
	Format string
}

// MetricsSettings configures the Prometheus endpoint.
type MetricsSettings struct {
	// Addr is the listen address; empty disables the endpoint.
	Addr string
}

// AppSettings holds all application settings.
type AppSettings struct {
	Pipeline  PipelineSettings
	Cache     CacheSettings
	Provider  ProviderSettings
	RateLimit RateLimitSettings
	Patients  PatientSettings
	Logging   LoggingSettings
	Metrics   MetricsSettings
}

// Default values.
const (
	DefaultPipelineTimeout = 5000 * time.Millisecond
	DefaultStageTimeout    = 3000 * time.Millisecond
	DefaultMaxRetries      = 2
	DefaultCacheTTL        = 24 * time.Hour
	DefaultCacheHighWater  = 1000
	DefaultSweepInterval   = 10 * time.Minute
	DefaultRxNormURL       = "https://rxnav.nlm.nih.gov/REST"
	DefaultOpenFDAURL      = "https://api.fda.gov"
	DefaultProviderTimeout = 4 * time.Second
)

// DefaultAppSettings returns settings with sensible defaults.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Pipeline: PipelineSettings{
			Timeout:      DefaultPipelineTimeout,
			StageTimeout: DefaultStageTimeout,
			MaxRetries:   DefaultMaxRetries,
		},
		Cache: CacheSettings{
			Backend:       CacheBackendMemory,
			TTL:           DefaultCacheTTL,
			HighWater:     DefaultCacheHighWater,
			SweepInterval: DefaultSweepInterval,
		},
		Provider: ProviderSettings{
			RxNormURL:  DefaultRxNormURL,
			OpenFDAURL: DefaultOpenFDAURL,
			Timeout:    DefaultProviderTimeout,
		},
		RateLimit: RateLimitSettings{
			RxNormRPS:  20, // NLM asks for at most 20 requests/second
			OpenFDARPS: 4,  // 240 requests/minute without a key
			Burst:      5,
		},
		Patients: PatientSettings{
			Backend: PatientBackendSQLite,
		},
		Logging: LoggingSettings{
			Format: "text",
		},
	}
}

// AllCacheBackends returns all available cache backends.
func AllCacheBackends() []CacheBackend {
	return []CacheBackend{CacheBackendMemory, CacheBackendRedis}
}

// AllPatientBackends returns all available patient backends.
func AllPatientBackends() []PatientBackend {
	return []PatientBackend{PatientBackendMemory, PatientBackendSQLite, PatientBackendPostgres}
}
