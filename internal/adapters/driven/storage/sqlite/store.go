package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/bivasb/medguard-ai-sub000/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
	"github.com/bivasb/medguard-ai-sub000/internal/core/ports/driven"
)

var (
	_ driven.PatientStore  = (*Store)(nil)
	_ driven.PatientWriter = (*Store)(nil)
)

// Store is a SQLite-backed patient snapshot store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.medguard/data/patients.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".medguard", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "patients.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_patients.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}

		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("getting schema version: %w", err)
	}
	return v, nil
}

// ==================== Patient Snapshots ====================

// Save stores or replaces a patient snapshot. Child rows are rewritten in
// a single transaction so readers never observe a partial snapshot.
func (s *Store) Save(ctx context.Context, record domain.PatientRecord) error {
	if record.ID == "" {
		return fmt.Errorf("%w: patient id is required", domain.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `
		INSERT INTO patients (id, age, gender, weight_kg, height_cm, history_unavailable, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			age = excluded.age,
			gender = excluded.gender,
			weight_kg = excluded.weight_kg,
			height_cm = excluded.height_cm,
			history_unavailable = excluded.history_unavailable,
			updated_at = excluded.updated_at
	`, record.ID, record.Age, record.Gender, record.WeightKg, record.HeightCm,
		boolToInt(record.HistoryUnavailable), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving patient: %w", err)
	}

	for _, table := range []string{
		"patient_allergies", "patient_conditions", "patient_medications",
		"patient_labs", "patient_adverse_reactions",
	} {
		//nolint:gosec // table names come from the fixed list above
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE patient_id = ?", record.ID); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	for i, a := range record.Allergies {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO patient_allergies (patient_id, position, allergen) VALUES (?, ?, ?)",
			record.ID, i, a); err != nil {
			return fmt.Errorf("saving allergy: %w", err)
		}
	}

	for i, c := range record.Conditions {
		status := c.Status
		if status == "" {
			status = "active"
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO patient_conditions (patient_id, position, condition, status) VALUES (?, ?, ?, ?)",
			record.ID, i, c.Condition, status); err != nil {
			return fmt.Errorf("saving condition: %w", err)
		}
	}

	for i, m := range record.Medications {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO patient_medications (patient_id, position, drug_name, dose, frequency, duration_days)
			VALUES (?, ?, ?, ?, ?, ?)
		`, record.ID, i, m.DrugName, m.Dose, m.Frequency, m.DurationDays); err != nil {
			return fmt.Errorf("saving medication: %w", err)
		}
	}

	for i, l := range record.LabResults {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO patient_labs (patient_id, position, name, value, unit, measured_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, record.ID, i, l.Name, l.Value, l.Unit, nullTime(l.Date)); err != nil {
			return fmt.Errorf("saving lab result: %w", err)
		}
	}

	for i, r := range record.AdverseReactions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO patient_adverse_reactions (patient_id, position, drug_name, reaction, severity)
			VALUES (?, ?, ?, ?, ?)
		`, record.ID, i, r.DrugName, r.Reaction, r.Severity); err != nil {
			return fmt.Errorf("saving adverse reaction: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing patient: %w", err)
	}
	return nil
}

// Get retrieves a patient snapshot by ID.
func (s *Store) Get(ctx context.Context, id string) (*domain.PatientRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, age, gender, weight_kg, height_cm, history_unavailable
		FROM patients WHERE id = ?
	`, id)

	var record domain.PatientRecord
	var historyUnavailable int
	if err := row.Scan(&record.ID, &record.Age, &record.Gender, &record.WeightKg,
		&record.HeightCm, &historyUnavailable); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrPatientNotFound, id)
		}
		return nil, fmt.Errorf("scanning patient: %w", err)
	}
	record.HistoryUnavailable = historyUnavailable != 0

	var err error
	if record.Allergies, err = s.allergies(ctx, id); err != nil {
		return nil, err
	}
	if record.Conditions, err = s.conditions(ctx, id); err != nil {
		return nil, err
	}
	if record.Medications, err = s.medications(ctx, id); err != nil {
		return nil, err
	}
	if record.LabResults, err = s.labs(ctx, id); err != nil {
		return nil, err
	}
	if record.AdverseReactions, err = s.adverseReactions(ctx, id); err != nil {
		return nil, err
	}

	return &record, nil
}

// List returns all patient IDs in ascending order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM patients ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying patients: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning patient id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating patients: %w", err)
	}
	return ids, nil
}

// Delete removes a patient snapshot and its child rows.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM patients WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting patient: %w", err)
	}
	return nil
}

func (s *Store) allergies(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT allergen FROM patient_allergies WHERE patient_id = ? ORDER BY position", id)
	if err != nil {
		return nil, fmt.Errorf("querying allergies: %w", err)
	}
	defer rows.Close()

	var out []string //nolint:prealloc // size unknown from query
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scanning allergy: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) conditions(ctx context.Context, id string) ([]domain.Condition, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT condition, status FROM patient_conditions WHERE patient_id = ? ORDER BY position", id)
	if err != nil {
		return nil, fmt.Errorf("querying conditions: %w", err)
	}
	defer rows.Close()

	var out []domain.Condition //nolint:prealloc // size unknown from query
	for rows.Next() {
		var c domain.Condition
		if err := rows.Scan(&c.Condition, &c.Status); err != nil {
			return nil, fmt.Errorf("scanning condition: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) medications(ctx context.Context, id string) ([]domain.MedicationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT drug_name, dose, frequency, duration_days
		FROM patient_medications WHERE patient_id = ? ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying medications: %w", err)
	}
	defer rows.Close()

	var out []domain.MedicationRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		var m domain.MedicationRecord
		if err := rows.Scan(&m.DrugName, &m.Dose, &m.Frequency, &m.DurationDays); err != nil {
			return nil, fmt.Errorf("scanning medication: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) labs(ctx context.Context, id string) ([]domain.LabResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, value, unit, measured_at
		FROM patient_labs WHERE patient_id = ? ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying labs: %w", err)
	}
	defer rows.Close()

	var out []domain.LabResult //nolint:prealloc // size unknown from query
	for rows.Next() {
		var l domain.LabResult
		var measured sql.NullTime
		if err := rows.Scan(&l.Name, &l.Value, &l.Unit, &measured); err != nil {
			return nil, fmt.Errorf("scanning lab: %w", err)
		}
		if measured.Valid {
			l.Date = measured.Time.UTC()
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) adverseReactions(ctx context.Context, id string) ([]domain.AdverseReaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT drug_name, reaction, severity
		FROM patient_adverse_reactions WHERE patient_id = ? ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying adverse reactions: %w", err)
	}
	defer rows.Close()

	var out []domain.AdverseReaction //nolint:prealloc // size unknown from query
	for rows.Next() {
		var r domain.AdverseReaction
		if err := rows.Scan(&r.DrugName, &r.Reaction, &r.Severity); err != nil {
			return nil, fmt.Errorf("scanning adverse reaction: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Helper functions

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
