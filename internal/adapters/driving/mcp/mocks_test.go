package mcp

import (
	"context"
	"fmt"

	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
)

// mockInteractionService is a mock implementation of driving.InteractionService.
type mockInteractionService struct {
	result *domain.CheckResult
	drug   *domain.NormalizedDrug
	err    error

	lastRequest domain.CheckRequest
	lastName    string
}

func (m *mockInteractionService) CheckInteraction(_ context.Context, req domain.CheckRequest) (*domain.CheckResult, error) {
	m.lastRequest = req
	return m.result, m.err
}

func (m *mockInteractionService) NormalizeDrug(_ context.Context, name string) (*domain.NormalizedDrug, error) {
	m.lastName = name
	return m.drug, m.err
}

// mockPatientService is a mock implementation of driving.PatientService.
type mockPatientService struct {
	contexts map[string]*domain.PatientContext
	ids      []string
	err      error
}

func (m *mockPatientService) Context(_ context.Context, patientID string) (*domain.PatientContext, error) {
	if m.err != nil {
		return nil, m.err
	}
	pc, ok := m.contexts[patientID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPatientNotFound, patientID)
	}
	return pc, nil
}

func (m *mockPatientService) List(_ context.Context) ([]string, error) {
	return m.ids, m.err
}

func (m *mockPatientService) Import(_ context.Context, records []domain.PatientRecord) (int, error) {
	return len(records), m.err
}
