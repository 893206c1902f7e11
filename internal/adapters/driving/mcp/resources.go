package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for MedGuard resources.
	uriScheme = "medguard://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "patients",
		Name:        "patients",
		Description: "Identifiers of all known patients",
		MIMEType:    "application/json",
	}, s.handlePatientsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "patients/{patientId}/context",
		Name:        "patient-context",
		Description: "Derived clinical context for a patient: demographics, medications, labs and risk factors",
		MIMEType:    "application/json",
	}, s.handlePatientContextResource)
}

// handlePatientsResource returns the list of patient ids.
func (s *Server) handlePatientsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Patient == nil {
		return jsonResult(req.Params.URI, "[]"), nil
	}

	ids, err := s.ports.Patient.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing patients: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}

	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling patients: %w", err)
	}
	return jsonResult(req.Params.URI, string(data)), nil
}

// handlePatientContextResource returns the derived context for one patient.
func (s *Server) handlePatientContextResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Patient == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// Extract patientId from URI: medguard://patients/{patientId}/context
	patientID := extractPatientID(req.Params.URI)
	if patientID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	pc, err := s.ports.Patient.Context(ctx, patientID)
	if errors.Is(err, domain.ErrPatientNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("loading patient context: %w", err)
	}

	data, err := json.MarshalIndent(pc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling patient context: %w", err)
	}
	return jsonResult(req.Params.URI, string(data)), nil
}

func jsonResult(uri, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     text,
		}},
	}
}

// extractPatientID extracts the patient ID from a URI like medguard://patients/{patientId}/context.
func extractPatientID(uri string) string {
	const prefix = uriScheme + "patients/"
	const suffix = "/context"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	uri = strings.TrimPrefix(uri, prefix)
	if !strings.HasSuffix(uri, suffix) {
		return ""
	}

	return strings.TrimSuffix(uri, suffix)
}
