// ABOUTME: MCP command starts the Model Context Protocol server
// ABOUTME: Lets LLM agents like Claude chat with companions via stdio
package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harper/companion/internal/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs Companion as an MCP (Model Context Protocol) server, enabling
LLM agents like Claude to list roles, hold conversations, fetch reply
suggestions and manage favorites via stdio.

Every tool acts on behalf of COMPANION_USER_ID (default "local").`,
		RunE: runMCP,
		Example: `  # Start MCP server (typically called by Claude Desktop)
  companion mcp

  # Configure in claude_desktop_config.json:
  # {
  #   "mcpServers": {
  #     "companion": {
  #       "command": "companion",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}

	return cmd
}

// runMCP starts the MCP server
func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}

	server := mcpserver.NewMCPServer("Companion", versionInfo.Version)
	mcp.RegisterTools(server, a.conversations, a.favorites, a.roles, a.cfg.UserID, a.log)

	if !quiet {
		log.Println("Companion MCP server starting on stdio...")
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-ctx.Done():
		if !quiet {
			log.Println("Shutdown signal received, gracefully shutting down...")
		}
		if err := a.Close(); err != nil {
			log.Printf("Warning: Error closing storage: %v", err)
		}
		if !quiet {
			log.Println("Shutdown complete")
		}

	case err := <-serverErr:
		_ = a.Close()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	return nil
}
