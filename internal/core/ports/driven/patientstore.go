package driven

import (
	"context"

	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
)

// PatientStore supplies read-only patient snapshots.
type PatientStore interface {
	// Get returns the snapshot for id, or an error wrapping
	// domain.ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (*domain.PatientRecord, error)

	// List returns all patient ids in ascending order.
	List(ctx context.Context) ([]string, error)
}

// PatientWriter is implemented by stores that accept imported snapshots.
// Stores fed by an external system (PostgreSQL) do not implement it.
type PatientWriter interface {
	Save(ctx context.Context, record domain.PatientRecord) error
}
