package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
	"github.com/bivasb/medguard-ai-sub000/internal/core/ports/driven"
)

// Ensure PatientStore implements the interfaces.
var (
	_ driven.PatientStore  = (*PatientStore)(nil)
	_ driven.PatientWriter = (*PatientStore)(nil)
)

// PatientStore is an in-memory implementation of driven.PatientStore.
type PatientStore struct {
	mu       sync.RWMutex
	patients map[string]domain.PatientRecord
}

// NewPatientStore creates an in-memory patient store holding records.
func NewPatientStore(records ...domain.PatientRecord) *PatientStore {
	s := &PatientStore{patients: make(map[string]domain.PatientRecord, len(records))}
	for _, r := range records {
		s.patients[r.ID] = r
	}
	return s
}

// Get retrieves a patient snapshot by ID.
func (s *PatientStore) Get(_ context.Context, id string) (*domain.PatientRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.patients[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPatientNotFound, id)
	}
	return &r, nil
}

// List returns all patient IDs in ascending order.
func (s *PatientStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.patients))
	for id := range s.patients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Save stores or replaces a snapshot.
func (s *PatientStore) Save(_ context.Context, record domain.PatientRecord) error {
	if record.ID == "" {
		return fmt.Errorf("%w: patient id is required", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients[record.ID] = record
	return nil
}

// DemoPatients returns the built-in fixture snapshots used when no patient
// database is configured.
func DemoPatients() []domain.PatientRecord {
	labDate := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	return []domain.PatientRecord{
		{
			ID:       "demo-elderly",
			Age:      70,
			Gender:   "female",
			WeightKg: 68,
			HeightCm: 162,
			Conditions: []domain.Condition{
				{Condition: "major depressive disorder", Status: "active"},
				{Condition: "osteoarthritis", Status: "active"},
			},
			Medications: []domain.MedicationRecord{
				{DrugName: "sertraline", Dose: "50 mg", Frequency: "daily", DurationDays: 400},
			},
			LabResults: []domain.LabResult{
				{Name: "eGFR", Value: 78, Unit: "mL/min/1.73m2", Date: labDate},
			},
		},
		{
			ID:        "demo-penicillin-allergy",
			Age:       34,
			Gender:    "male",
			WeightKg:  82,
			HeightCm:  180,
			Allergies: []string{"penicillin"},
			Conditions: []domain.Condition{
				{Condition: "seasonal allergic rhinitis", Status: "active"},
			},
		},
		{
			ID:        "demo-anticoagulated",
			Age:       78,
			Gender:    "male",
			WeightKg:  74,
			HeightCm:  172,
			Allergies: []string{"sulfa"},
			Conditions: []domain.Condition{
				{Condition: "atrial fibrillation", Status: "active"},
				{Condition: "chronic kidney disease stage 3", Status: "active"},
				{Condition: "gastrointestinal bleed", Status: "resolved"},
			},
			Medications: []domain.MedicationRecord{
				{DrugName: "warfarin", Dose: "5 mg", Frequency: "daily", DurationDays: 900},
				{DrugName: "lisinopril", Dose: "10 mg", Frequency: "daily", DurationDays: 700},
				{DrugName: "atorvastatin", Dose: "20 mg", Frequency: "nightly", DurationDays: 1200},
			},
			LabResults: []domain.LabResult{
				{Name: "INR", Value: 3.4, Unit: "ratio", Date: labDate},
				{Name: "eGFR", Value: 42, Unit: "mL/min/1.73m2", Date: labDate},
				{Name: "potassium", Value: 5.1, Unit: "mmol/L", Date: labDate},
			},
			AdverseReactions: []domain.AdverseReaction{
				{DrugName: "naproxen", Reaction: "gastrointestinal bleeding", Severity: "severe"},
			},
		},
		{
			ID:       "demo-polypharmacy",
			Age:      82,
			Gender:   "female",
			WeightKg: 59,
			HeightCm: 155,
			Conditions: []domain.Condition{
				{Condition: "type 2 diabetes", Status: "active"},
				{Condition: "heart failure", Status: "active"},
				{Condition: "insomnia", Status: "active"},
			},
			Medications: []domain.MedicationRecord{
				{DrugName: "metformin", Dose: "500 mg", Frequency: "twice daily"},
				{DrugName: "digoxin", Dose: "125 mcg", Frequency: "daily"},
				{DrugName: "furosemide", Dose: "40 mg", Frequency: "daily"},
				{DrugName: "lisinopril", Dose: "5 mg", Frequency: "daily"},
				{DrugName: "diazepam", Dose: "2 mg", Frequency: "nightly"},
				{DrugName: "omeprazole", Dose: "20 mg", Frequency: "daily"},
			},
			LabResults: []domain.LabResult{
				{Name: "eGFR", Value: 28, Unit: "mL/min/1.73m2", Date: labDate},
				{Name: "ALT", Value: 35, Unit: "U/L", Date: labDate},
			},
		},
		{
			ID:                 "demo-no-history",
			Age:                45,
			Gender:             "female",
			HistoryUnavailable: true,
		},
	}
}
