package driving

import (
	"context"

	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
)

// PatientService exposes derived patient context for inspection.
type PatientService interface {
	// Context loads a patient snapshot and computes derived risk fields.
	Context(ctx context.Context, patientID string) (*domain.PatientContext, error)

	// List returns all known patient ids.
	List(ctx context.Context) ([]string, error)

	// Import stores snapshots in a writable backend and returns how many
	// were saved.
	Import(ctx context.Context, records []domain.PatientRecord) (int, error)
}
