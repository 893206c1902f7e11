package driving

import (
	"context"

	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
)

// InteractionService checks drugs for clinically significant interactions.
type InteractionService interface {
	// CheckInteraction runs the full pipeline for a drug list and optional
	// patient id. Pipeline failures are reported as an ERROR risk level in
	// the result; only validation failures are returned as errors.
	CheckInteraction(ctx context.Context, req domain.CheckRequest) (*domain.CheckResult, error)

	// NormalizeDrug resolves a single free-text drug name.
	NormalizeDrug(ctx context.Context, name string) (*domain.NormalizedDrug, error)
}
