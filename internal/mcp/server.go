package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/ctxgraph/internal/engine"
)

// ServerName is the MCP server name
const ServerName = "ctxgraph"

// Server exposes an Engine as MCP tools
type Server struct {
	mcp     *server.MCPServer
	engine  *engine.Engine
	logger  *slog.Logger
	version string
}

// NewServer creates a new MCP server instance around eng
func NewServer(eng *engine.Engine, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcp: server.NewMCPServer(
			ServerName,
			version,
			server.WithToolCapabilities(false),
		),
		engine:  eng,
		logger:  logger,
		version: version,
	}
	s.registerTools()
	return s
}

// Serve runs the MCP protocol on stdio until ctx is cancelled or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	s.logger.Info("MCP server started", "name", ServerName, "version", s.version, "root", s.engine.Root())
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexCodebaseTool(), s.handleIndexCodebase)
	s.mcp.AddTool(searchTool(), s.handleSearch)
	s.mcp.AddTool(assembleContextTool(), s.handleAssembleContext)
	s.mcp.AddTool(graphNeighborhoodTool(), s.handleGraphNeighborhood)
	s.mcp.AddTool(graphPathsTool(), s.handleGraphPaths)
	s.mcp.AddTool(graphStatsTool(), s.handleGraphStats)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
