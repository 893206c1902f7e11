package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var normalizeJSON bool

var normalizeCmd = &cobra.Command{
	Use:   "normalize [name]",
	Short: "Resolve a drug name",
	Long: `Resolves a brand, generic or misspelled drug name to its generic name
and RxNorm concept identifier.`,
	Args: cobra.ExactArgs(1),
	RunE: runNormalize,
}

func init() {
	normalizeCmd.Flags().BoolVar(&normalizeJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(normalizeCmd)
}

func runNormalize(cmd *cobra.Command, args []string) error {
	if interactionService == nil {
		return errors.New("interaction service not configured")
	}

	drug, err := interactionService.NormalizeDrug(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("normalize failed: %w", err)
	}

	if normalizeJSON {
		data, err := json.MarshalIndent(drug, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal drug: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("%s -> %s\n", drug.OriginalInput, styleBold.Render(drug.GenericName))
	cmd.Printf("  RxCUI: %s", drug.RxCUI)
	if drug.Synthetic {
		cmd.Print(" (unverified)")
	}
	cmd.Println()
	if len(drug.BrandNames) > 0 {
		cmd.Printf("  Brands: %s\n", strings.Join(drug.BrandNames, ", "))
	}
	if len(drug.ActiveIngredients) > 0 {
		cmd.Printf("  Ingredients: %s\n", strings.Join(drug.ActiveIngredients, ", "))
	}
	cmd.Printf("  Confidence: %.2f\n", drug.Confidence)
	return nil
}
