package driven

import (
	"context"
	"encoding/json"
)

// DrugDataProvider is the external drug data boundary (RxNorm, OpenFDA).
// Every method returns the provider-native JSON payload; callers in the
// core validate its shape. Network failures, non-success statuses and
// malformed payloads should all be reported as errors wrapping
// domain.ErrProvider.
type DrugDataProvider interface {
	// NormalizeApproximate runs an approximate (fuzzy) term match.
	NormalizeApproximate(ctx context.Context, name string) (json.RawMessage, error)

	// NormalizeExact looks up concept identifiers by exact name.
	NormalizeExact(ctx context.Context, name string) (json.RawMessage, error)

	// SpellingSuggestions returns spelling suggestions for a name.
	SpellingSuggestions(ctx context.Context, name string) (json.RawMessage, error)

	// Properties returns concept properties for an identifier.
	Properties(ctx context.Context, id string) (json.RawMessage, error)

	// RelatedNames returns related concepts (brand names, ingredients).
	RelatedNames(ctx context.Context, id string) (json.RawMessage, error)

	// AdverseEvents returns adverse-event reports mentioning both drugs.
	AdverseEvents(ctx context.Context, nameA, nameB string, limit int) (json.RawMessage, error)

	// LabelInteractionText returns label records whose interaction
	// sections mention both drugs.
	LabelInteractionText(ctx context.Context, nameA, nameB string) (json.RawMessage, error)
}
