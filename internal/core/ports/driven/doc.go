// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - DrugDataProvider: RxNorm/OpenFDA lookups returning provider-native JSON
//   - ClinicalKnowledgeBase: Static clinical facts keyed by generic name
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - PatientStore: Without it, every request is assessed context-free.
//   - Cache: Without it, every lookup goes to the provider.
//   - PipelineObserver: Without it, no telemetry is recorded.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
