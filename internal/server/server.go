// Package server wraps the MCP server that exposes the capture pipeline.
package server

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/dictate-go/internal/tools"
)

// Name is reported to clients during initialization.
const Name = "dictate"

// Server wraps the MCP server with its logger and background jobs.
type Server struct {
	mcp    *mcp.Server
	logger *slog.Logger
	deps   *tools.Dependencies
}

// New creates an MCP server with request logging and all tools registered.
func New(version string, deps *tools.Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
		deps.Logger = logger
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    Name,
		Version: version,
	}, nil)
	mcpServer.AddReceivingMiddleware(LoggingMiddleware(logger))
	tools.RegisterAll(mcpServer, deps)

	return &Server{
		mcp:    mcpServer,
		logger: logger,
		deps:   deps,
	}
}

// Run serves on stdio and blocks until the client disconnects or ctx is
// canceled. Background captures still running are awaited before returning
// so their records and audit entries are written.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, &mcp.StdioTransport{})
}

// Serve runs the server on transport.
func (s *Server) Serve(ctx context.Context, transport mcp.Transport) error {
	s.logger.Info("starting MCP server", "name", Name)
	err := s.mcp.Run(ctx, transport)
	if s.deps.Jobs != nil {
		s.logger.Info("waiting for background captures", "jobs", len(s.deps.Jobs.ListJobs()))
		s.deps.Jobs.Wait()
	}
	return err
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}
