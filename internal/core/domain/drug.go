package domain

import "strings"

// NormalizedDrug is a free-text drug name resolved to a canonical identifier.
// It is produced once per distinct input per request and never mutated.
type NormalizedDrug struct {
	// OriginalInput is the name as supplied by the caller (trimmed, lower-cased).
	OriginalInput string `json:"original_input"`

	// RxCUI is the RxNorm concept identifier, or a synthetic identifier when
	// the provider was unavailable.
	RxCUI string `json:"rxcui"`

	// Synthetic is true when RxCUI was generated locally.
	Synthetic bool `json:"synthetic,omitempty"`

	// GenericName is the canonical generic name; the cross-stage join key.
	GenericName string `json:"generic_name"`

	// BrandNames lists known brand aliases.
	BrandNames []string `json:"brand_names"`

	// ActiveIngredients lists the active ingredients.
	ActiveIngredients []string `json:"active_ingredients"`

	// Confidence is the resolution confidence in [0.3, 1].
	Confidence float64 `json:"confidence"`
}

// Key returns the case-insensitive join key used across stages.
func (d NormalizedDrug) Key() string {
	return DrugKey(d.GenericName)
}

// Kind identifies the task type producing this output.
func (*NormalizedDrug) Kind() TaskType { return TaskTypeNormalize }

// DrugKey normalises a drug name into a join key.
func DrugKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SyntheticID builds a stable local identifier for a generic name.
func SyntheticID(generic string) string {
	return "synthetic:" + strings.ReplaceAll(DrugKey(generic), " ", "-")
}
