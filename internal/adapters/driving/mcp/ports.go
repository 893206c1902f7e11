package mcp

import (
	"github.com/bivasb/medguard-ai-sub000/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Interaction runs the interaction pipeline and single-drug normalisation.
	Interaction driving.InteractionService

	// Patient exposes derived patient context. Optional.
	Patient driving.PatientService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Interaction == nil {
		return ErrMissingInteractionService
	}
	return nil
}
