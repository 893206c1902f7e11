// Package domain defines the core business entities for MedGuard.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - NormalizedDrug: A free-text drug name resolved to a canonical identifier
//   - Interaction: The checked outcome for one unordered drug pair
//   - PatientContext: The derived patient snapshot used during assessment
//   - RiskAssessment: The terminal SAFE/WARNING/DANGER/ERROR classification
//   - Task, TaskResult: The envelope exchanged between orchestrator and subagents
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
