// Package sqlite provides the SQLite-backed patient snapshot store.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements driven.PatientStore and
// driven.PatientWriter, so `medguard patient import` can load snapshots that the
// pipeline later reads.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// A snapshot is one row in patients plus ordered child rows for allergies,
// conditions, medications, lab results and adverse reactions.
//
// # Data Location
//
// By default, the database is stored at ~/.medguard/data/patients.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
