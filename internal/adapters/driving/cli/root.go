// Package cli provides the command-line interface for MedGuard.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bivasb/medguard-ai-sub000/internal/core/ports/driving"
	"github.com/bivasb/medguard-ai-sub000/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Services wired by the composition root.
var (
	interactionService driving.InteractionService
	patientService     driving.PatientService
	settingsService    driving.SettingsService
	serveHook          ServeHook
)

// ServeHook starts helpers that live as long as the MCP server, such as the
// config watcher and the metrics endpoint. The returned func stops them.
type ServeHook func(ctx context.Context) (stop func(), err error)

// Services groups the driving ports used by the commands.
type Services struct {
	Interaction driving.InteractionService
	Patient     driving.PatientService
	Settings    driving.SettingsService
	OnServe     ServeHook
}

// SetServices injects the driving ports. It must be called before Execute.
func SetServices(s Services) {
	interactionService = s.Interaction
	patientService = s.Patient
	settingsService = s.Settings
	serveHook = s.OnServe
}

// SetVersion overrides the reported version.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "medguard",
	Short: "Drug interaction checks with patient-aware risk assessment",
	Long: `MedGuard checks two or more medications for clinically significant
interactions. Drug names are resolved through RxNorm, interactions come from
a curated knowledge base corroborated by OpenFDA adverse event reports, and
the final risk level (SAFE, WARNING, DANGER) accounts for the patient's
age, conditions, labs and current medications when a patient id is given.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if verbose {
			logger.SetVerbose(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
