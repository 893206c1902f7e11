// Package postgres provides a read-only patient snapshot store backed by
// PostgreSQL through a pgx connection pool.
//
// The store expects an externally maintained table:
//
//	CREATE TABLE medguard_patients (
//	    id       TEXT PRIMARY KEY,
//	    snapshot JSONB NOT NULL
//	);
//
// where snapshot holds a domain.PatientRecord in its JSON form. MedGuard
// never writes to this table, so the store does not implement
// driven.PatientWriter.
package postgres
