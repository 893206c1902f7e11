// Package mcp provides an MCP (Model Context Protocol) server adapter for MedGuard.
// It lets AI assistants check drug interactions, normalise drug names and
// read derived patient context.
package mcp

import "errors"

// ErrMissingInteractionService is returned when the interaction service is not provided.
var ErrMissingInteractionService = errors.New("mcp: interaction service is required")
