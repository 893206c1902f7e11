package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Version is the MCP server version.
const Version = "0.1.0"

// Server is the MCP server for MedGuard.
type Server struct {
	ports  *Ports
	server *mcp.Server
}

// NewServer creates a new MCP server with the given ports.
func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	impl := &mcp.Implementation{
		Name:    "medguard",
		Title:   "MedGuard drug interaction checker",
		Version: Version,
	}

	s := &Server{
		ports: ports,
		server: mcp.NewServer(impl, &mcp.ServerOptions{
			Instructions: instructions(ports),
			HasResources: true,
		}),
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// instructions tells clients how to drive the checker. Patient resources
// are only advertised when a patient store is wired.
func instructions(ports *Ports) string {
	var b strings.Builder
	b.WriteString("Call check_interaction with two or more drug names (brand or generic) ")
	b.WriteString("to get a risk level of SAFE, WARNING, DANGER or ERROR with an explanation and recommendations. ")
	b.WriteString("ERROR means the check could not be completed and must not be read as safe. ")
	b.WriteString("Use normalize_drug to see how a single name resolves.")
	if ports.Patient != nil {
		b.WriteString(" Pass patient_id to apply a patient's age, organ function, allergies and current medications; ")
		b.WriteString("list ids with " + uriScheme + "patients and read " + uriScheme + "patients/{patientId}/context.")
	}
	return b.String()
}

// Run starts the MCP server over stdio.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP starts the MCP server over HTTP on the specified address.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background()) //nolint:errcheck
	}()

	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
