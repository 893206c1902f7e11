package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure pipeline limits, the lookup cache, the patient
store and drug data provider access.

Settings live in ~/.medguard/config.toml and can be overridden with
MEDGUARD_* environment variables or a .env file next to it.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsCacheCmd = &cobra.Command{
	Use:   "cache [backend] [redis-url]",
	Short: "Select the lookup cache backend",
	Long: `Select where drug lookups are cached.

Available backends:
  memory - In-process LRU cache (default)
  redis  - Shared Redis cache (requires a redis:// URL)

Run without arguments to choose interactively.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runSettingsCache,
}

var settingsPatientsCmd = &cobra.Command{
	Use:   "patients [backend] [location]",
	Short: "Select the patient store",
	Long: `Select where patient snapshots are read from.

Available backends:
  memory   - Built-in demo patients
  sqlite   - Local database; location is the data directory (default)
  postgres - PostgreSQL; location is the connection URL

Run without arguments to choose interactively.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runSettingsPatients,
}

var settingsOpenFDAKeyCmd = &cobra.Command{
	Use:   "openfda-key [key]",
	Short: "Set the OpenFDA API key",
	Long: `Set the OpenFDA API key. Requests work without one but are held to a
lower daily quota. When no key is given it is read from the terminal without
echo.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSettingsOpenFDAKey,
}

var settingsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that current settings are usable",
	RunE:  runSettingsValidate,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsCacheCmd)
	settingsCmd.AddCommand(settingsPatientsCmd)
	settingsCmd.AddCommand(settingsOpenFDAKeyCmd)
	settingsCmd.AddCommand(settingsValidateCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Pipeline]")
	cmd.Printf("  Timeout: %s\n", settings.Pipeline.Timeout)
	cmd.Printf("  Stage timeout: %s\n", settings.Pipeline.StageTimeout)
	cmd.Printf("  Max retries: %d\n", settings.Pipeline.MaxRetries)
	cmd.Printf("  Corroborate known pairs: %t\n", settings.Pipeline.CorroborateKnown)
	cmd.Println()

	cmd.Println("[Cache]")
	cmd.Printf("  Backend: %s\n", settings.Cache.Backend.Description())
	cmd.Printf("  TTL: %s\n", settings.Cache.TTL)
	if settings.Cache.Backend == domain.CacheBackendRedis {
		cmd.Printf("  Redis URL: %s\n", settings.Cache.RedisURL)
	} else {
		cmd.Printf("  High water: %d\n", settings.Cache.HighWater)
		cmd.Printf("  Sweep interval: %s\n", settings.Cache.SweepInterval)
	}
	cmd.Println()

	cmd.Println("[Provider]")
	cmd.Printf("  RxNorm: %s\n", settings.Provider.RxNormURL)
	cmd.Printf("  OpenFDA: %s\n", settings.Provider.OpenFDAURL)
	if settings.Provider.OpenFDAAPIKey != "" {
		cmd.Printf("  OpenFDA API Key: %s\n", maskAPIKey(settings.Provider.OpenFDAAPIKey))
	} else {
		cmd.Printf("  OpenFDA API Key: (not set)\n")
	}
	cmd.Printf("  Timeout: %s\n", settings.Provider.Timeout)
	cmd.Printf("  Rate limits: rxnorm %.1f/s, openfda %.1f/s, burst %d\n",
		settings.RateLimit.RxNormRPS, settings.RateLimit.OpenFDARPS, settings.RateLimit.Burst)
	cmd.Println()

	cmd.Println("[Patients]")
	cmd.Printf("  Backend: %s\n", settings.Patients.Backend.Description())
	switch settings.Patients.Backend {
	case domain.PatientBackendSQLite:
		dir := settings.Patients.SQLiteDir
		if dir == "" {
			dir = "~/.medguard/data"
		}
		cmd.Printf("  Directory: %s\n", dir)
	case domain.PatientBackendPostgres:
		cmd.Printf("  URL: %s\n", settings.Patients.PostgresURL)
	}
	cmd.Println()

	cmd.Println("[Observability]")
	cmd.Printf("  Log format: %s\n", settings.Logging.Format)
	if settings.Metrics.Addr != "" {
		cmd.Printf("  Metrics: %s\n", settings.Metrics.Addr)
	} else {
		cmd.Printf("  Metrics: (disabled)\n")
	}

	return nil
}

func runSettingsCache(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	var backend domain.CacheBackend
	var redisURL string
	if len(args) > 0 {
		backend = domain.CacheBackend(args[0])
		if len(args) > 1 {
			redisURL = args[1]
		}
	} else {
		reader := bufio.NewReader(cmd.InOrStdin())
		backends := domain.AllCacheBackends()
		cmd.Println("Select cache backend:")
		for i, b := range backends {
			cmd.Printf("  [%d] %s\n", i+1, b.Description())
		}
		cmd.Print("Choice [1]: ")
		backend = backends[parseChoice(readLine(reader), len(backends), 1)-1]
		if backend == domain.CacheBackendRedis {
			cmd.Print("Redis URL: ")
			redisURL = readLine(reader)
		}
	}

	if err := settingsService.SetCacheBackend(backend, redisURL); err != nil {
		return fmt.Errorf("failed to set cache backend: %w", err)
	}

	cmd.Printf("Cache backend set to %s.\n", backend.Description())
	return nil
}

func runSettingsPatients(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	var backend domain.PatientBackend
	var location string
	if len(args) > 0 {
		backend = domain.PatientBackend(args[0])
		if len(args) > 1 {
			location = args[1]
		}
	} else {
		reader := bufio.NewReader(cmd.InOrStdin())
		backends := domain.AllPatientBackends()
		cmd.Println("Select patient store:")
		for i, b := range backends {
			cmd.Printf("  [%d] %s\n", i+1, b.Description())
		}
		cmd.Print("Choice [2]: ")
		backend = backends[parseChoice(readLine(reader), len(backends), 2)-1]
		switch backend {
		case domain.PatientBackendSQLite:
			cmd.Print("Data directory (empty for default): ")
			location = readLine(reader)
		case domain.PatientBackendPostgres:
			cmd.Print("Connection URL: ")
			location = readLine(reader)
		}
	}

	if err := settingsService.SetPatientBackend(backend, location); err != nil {
		return fmt.Errorf("failed to set patient backend: %w", err)
	}

	cmd.Printf("Patient store set to %s.\n", backend.Description())
	return nil
}

func runSettingsOpenFDAKey(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	var key string
	if len(args) > 0 {
		key = args[0]
	} else {
		cmd.Print("OpenFDA API key: ")
		key = readPassword()
		cmd.Println()
	}

	if err := settingsService.SetOpenFDAKey(strings.TrimSpace(key)); err != nil {
		return fmt.Errorf("failed to set API key: %w", err)
	}

	cmd.Println("OpenFDA API key saved.")
	return nil
}

func runSettingsValidate(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	if err := settingsService.Validate(); err != nil {
		return fmt.Errorf("settings are invalid: %w", err)
	}

	cmd.Println("Settings are valid.")
	return nil
}

// Helper functions

func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

func readPassword() string {
	// Try to read password without echo
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return string(password)
		}
	}
	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
