package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
)

var (
	checkPatientID string
	checkJSON      bool
)

var checkCmd = &cobra.Command{
	Use:   "check [drug] [drug...]",
	Short: "Check drugs for interactions",
	Long: `Resolves each drug name, checks every pair for interactions and
assesses the overall risk. Pass --patient to personalise the assessment with
the patient's demographics, conditions, labs and current medications.

Examples:
  medguard check warfarin aspirin
  medguard check Coumadin ibuprofen --patient P001
  medguard check lisinopril spironolactone potassium --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&checkPatientID, "patient", "p", "", "patient id for personalised risk")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "output the full result as JSON")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	if interactionService == nil {
		return errors.New("interaction service not configured")
	}

	result, err := interactionService.CheckInteraction(cmd.Context(), domain.CheckRequest{
		Drugs:     args,
		PatientID: checkPatientID,
	})
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	if checkJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		cmd.Println(string(data))
	} else {
		renderCheckResult(cmd.OutOrStdout(), result)
	}

	if result.Assessment.RiskLevel == domain.RiskError {
		reason := strings.Join(result.Errors, "; ")
		if reason == "" {
			reason = result.Assessment.Explanation
		}
		return fmt.Errorf("check failed: %s", reason)
	}
	return nil
}
