// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The interaction pipeline is split into stateless subagents (normalizer,
// patient context, interaction checker, risk assessor) that the
// Orchestrator drives through an explicit state machine.
//
// Services are pure Go with no CGO and talk to infrastructure only through
// driven ports.
package services
