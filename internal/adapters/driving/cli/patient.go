package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
)

var patientJSON bool

var patientCmd = &cobra.Command{
	Use:   "patient",
	Short: "Inspect and import patient snapshots",
}

var patientListCmd = &cobra.Command{
	Use:   "list",
	Short: "List patient ids",
	RunE:  runPatientList,
}

var patientShowCmd = &cobra.Command{
	Use:   "show [patient-id]",
	Short: "Show derived patient context",
	Long: `Shows the patient context used during risk assessment: demographics,
active conditions, current medications with interaction potential, flagged
lab values and derived risk factors.`,
	Args: cobra.ExactArgs(1),
	RunE: runPatientShow,
}

var patientImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import patient records from a JSON file",
	Long: `Imports a JSON array of patient records into the configured patient
store. Use "-" to read from stdin. Existing records with the same id are
replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: runPatientImport,
}

func init() {
	patientShowCmd.Flags().BoolVar(&patientJSON, "json", false, "output as JSON")
	patientCmd.AddCommand(patientListCmd)
	patientCmd.AddCommand(patientShowCmd)
	patientCmd.AddCommand(patientImportCmd)
	rootCmd.AddCommand(patientCmd)
}

func runPatientList(cmd *cobra.Command, _ []string) error {
	if patientService == nil {
		return errors.New("patient service not configured")
	}

	ids, err := patientService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list patients: %w", err)
	}

	if len(ids) == 0 {
		cmd.Println("No patients found.")
		return nil
	}
	for _, id := range ids {
		cmd.Println(id)
	}
	return nil
}

func runPatientShow(cmd *cobra.Command, args []string) error {
	if patientService == nil {
		return errors.New("patient service not configured")
	}

	pc, err := patientService.Context(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to load patient: %w", err)
	}

	if patientJSON {
		data, err := json.MarshalIndent(pc, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal patient: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	renderPatientContext(cmd.OutOrStdout(), pc)
	return nil
}

func runPatientImport(cmd *cobra.Command, args []string) error {
	if patientService == nil {
		return errors.New("patient service not configured")
	}

	var r io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close()
		r = f
	}

	var records []domain.PatientRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return fmt.Errorf("failed to parse patient records: %w", err)
	}

	n, err := patientService.Import(cmd.Context(), records)
	if err != nil {
		return fmt.Errorf("import failed after %d records: %w", n, err)
	}

	cmd.Printf("Imported %d patient(s).\n", n)
	return nil
}
