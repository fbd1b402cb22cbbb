package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/tracelens/api/mcp"
	"github.com/papercomputeco/tracelens/pkg/analysis"
	"github.com/papercomputeco/tracelens/pkg/storage"
)

// maxBodySize bounds uploaded trace snapshots.
const maxBodySize = 32 * 1024 * 1024

// Server is the API server for ingesting and analyzing agent traces
type Server struct {
	config Config
	driver storage.Driver
	logger *slog.Logger
	app    *fiber.App
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer creates a new API server.
// The driver is injected to allow sharing with the worker pool.
func NewServer(config Config, driver storage.Driver, logger *slog.Logger) (*Server, error) {
	if driver == nil {
		return nil, errors.New("storage driver is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if config.Engine == nil {
		config.Engine = analysis.NewEngine()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             maxBodySize,
	})

	s := &Server{
		config: config,
		driver: driver,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/v1/analyze", s.handleAnalyze)

	traces := app.Group("/v1/traces")
	traces.Post("/", s.handleCreateTrace)
	traces.Get("/", s.handleListTraces)
	traces.Get("/:id", s.handleGetTrace)
	traces.Delete("/:id", s.handleDeleteTrace)
	traces.Get("/:id/analysis", s.handleGetAnalysis)
	traces.Get("/:id/jobs", s.handleGetJobs)
	traces.Post("/:id/metrics", s.handleAddMetrics)

	if !config.DisableMCP {
		mcpServer, err := mcp.NewServer(mcp.Config{
			Driver: driver,
			Engine: config.Engine,
			Logger: logger,
		})
		if err != nil {
			return nil, err
		}
		app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
