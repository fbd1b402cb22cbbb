// Package mcp provides an MCP (Model Context Protocol) server exposing trace
// analysis as tools.
package mcp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/tracelens/pkg/analysis"
	"github.com/papercomputeco/tracelens/pkg/storage"
	"github.com/papercomputeco/tracelens/pkg/utils"
)

type Config struct {
	// Driver loads stored trace snapshots
	Driver storage.Driver

	// Engine runs analyses. Defaults to analysis.NewEngine().
	Engine *analysis.Engine

	// Noop for empty MCP server
	Noop bool

	// Logger is the configured slog logger
	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the trace analysis tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	// Create the MCP server
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "tracelens",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if !c.Noop {
		if c.Driver == nil {
			return nil, errors.New("storage driver is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}
		if s.config.Engine == nil {
			s.config.Engine = analysis.NewEngine()
		}

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        analyzeToolName,
			Description: analyzeDescription,
		}, s.handleAnalyzeTrace)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        listToolName,
			Description: listDescription,
		}, s.handleListTraces)
	}

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}
