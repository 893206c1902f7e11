package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bivasb/medguard-ai-sub000/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

By default, the server communicates over stdio using JSON-RPC and can be
used with Claude Desktop and other MCP-compatible AI assistants.

Tools:
  check_interaction  check two or more drugs, optionally for a patient
  normalize_drug     resolve a drug name

Resources:
  medguard://patients                     patient ids
  medguard://patients/{patientId}/context derived patient context

Use --port to start an HTTP server instead, which enables:
  - Testing with MCP Inspector web UI
  - Remote access via HTTP

While serving, edits to config.toml are picked up without a restart and
Prometheus metrics are exposed when metrics.addr is set.

Examples:
  # Stdio mode (default, for Claude Desktop)
  medguard mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  medguard mcp serve --port 8080`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	if interactionService == nil {
		return errors.New("interaction service not configured")
	}

	ports := &mcp.Ports{
		Interaction: interactionService,
		Patient:     patientService,
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if serveHook != nil {
		stop, err := serveHook(ctx)
		if err != nil {
			return fmt.Errorf("starting background services: %w", err)
		}
		defer stop()
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(ctx, addr)
	}

	return server.Run(ctx)
}
