package driving

import "github.com/bivasb/medguard-ai-sub000/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// SetCacheBackend selects the cache backend.
	SetCacheBackend(backend domain.CacheBackend, redisURL string) error

	// SetPatientBackend selects the patient snapshot source.
	SetPatientBackend(backend domain.PatientBackend, location string) error

	// SetOpenFDAKey stores the OpenFDA API key.
	SetOpenFDAKey(key string) error

	// Validate checks if current settings are usable.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings
}
