package api

import (
	"bytes"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/papercomputeco/tracelens/pkg/analysis"
	"github.com/papercomputeco/tracelens/pkg/groundedness"
	"github.com/papercomputeco/tracelens/pkg/storage"
	"github.com/papercomputeco/tracelens/pkg/worker"
)

// Reasons attached to enqueued analysis jobs.
const (
	reasonIngest  = "ingest"
	reasonMetrics = "metrics"
)

// TraceListResponse is the body of GET /v1/traces.
type TraceListResponse struct {
	Count  int               `json:"count"`
	Traces []storage.Summary `json:"traces"`
}

// JobsResponse is the body of GET /v1/traces/:id/jobs.
type JobsResponse struct {
	TraceID string             `json:"trace_id"`
	Jobs    []groundedness.Job `json:"jobs"`
}

// AddMetricsResponse is the body of POST /v1/traces/:id/metrics.
type AddMetricsResponse struct {
	TraceID string `json:"trace_id"`
	Added   int    `json:"added"`
	Queued  bool   `json:"queued"`
}

// CreateTraceResponse is the body of POST /v1/traces.
type CreateTraceResponse struct {
	TraceID      string `json:"trace_id"`
	Observations int    `json:"observations"`
	Metrics      int    `json:"metrics"`
	Queued       bool   `json:"queued"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleAnalyze handles POST /v1/analyze. The snapshot in the body is
// analyzed without being stored.
func (s *Server) handleAnalyze(c *fiber.Ctx) error {
	snapshot, err := analysis.DecodeSnapshot(c.Body(), "")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(s.config.Engine.Analyze(snapshot))
}

// handleCreateTrace handles POST /v1/traces.
func (s *Server) handleCreateTrace(c *fiber.Ctx) error {
	snapshot, err := analysis.DecodeSnapshot(c.Body(), "")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	if err := s.driver.Put(c.Context(), snapshot); err != nil {
		s.logger.Error("failed to store snapshot",
			"trace_id", snapshot.Trace.ID,
			"error", err,
		)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to store trace"})
	}

	s.logger.Info("trace stored",
		"trace_id", snapshot.Trace.ID,
		"observations", len(snapshot.Trace.Observations),
	)

	return c.Status(fiber.StatusCreated).JSON(CreateTraceResponse{
		TraceID:      snapshot.Trace.ID,
		Observations: len(snapshot.Trace.Observations),
		Metrics:      len(snapshot.Metrics),
		Queued:       s.enqueue(snapshot.Trace.ID, reasonIngest),
	})
}

// handleListTraces handles GET /v1/traces.
func (s *Server) handleListTraces(c *fiber.Ctx) error {
	summaries, err := s.driver.List(c.Context())
	if err != nil {
		s.logger.Error("failed to list snapshots", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list traces"})
	}

	return c.JSON(TraceListResponse{
		Count:  len(summaries),
		Traces: summaries,
	})
}

// handleGetTrace handles GET /v1/traces/:id.
func (s *Server) handleGetTrace(c *fiber.Ctx) error {
	snapshot, err := s.loadSnapshot(c)
	if err != nil || snapshot == nil {
		return err
	}

	return c.JSON(snapshot)
}

// handleDeleteTrace handles DELETE /v1/traces/:id.
func (s *Server) handleDeleteTrace(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := s.driver.Delete(c.Context(), id); err != nil {
		if storage.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "trace not found"})
		}
		s.logger.Error("failed to delete snapshot", "trace_id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to delete trace"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// handleGetAnalysis handles GET /v1/traces/:id/analysis. The analysis is
// recomputed from the stored snapshot on every request.
func (s *Server) handleGetAnalysis(c *fiber.Ctx) error {
	snapshot, err := s.loadSnapshot(c)
	if err != nil || snapshot == nil {
		return err
	}

	return c.JSON(s.config.Engine.Analyze(snapshot))
}

// handleGetJobs handles GET /v1/traces/:id/jobs.
func (s *Server) handleGetJobs(c *fiber.Ctx) error {
	snapshot, err := s.loadSnapshot(c)
	if err != nil || snapshot == nil {
		return err
	}

	jobs := s.config.Engine.PlanJobs(snapshot)
	if jobs == nil {
		jobs = []groundedness.Job{}
	}

	return c.JSON(JobsResponse{
		TraceID: snapshot.Trace.ID,
		Jobs:    jobs,
	})
}

// handleAddMetrics handles POST /v1/traces/:id/metrics. The body is either
// a JSON array of metrics or an object with a "metrics" array.
func (s *Server) handleAddMetrics(c *fiber.Ctx) error {
	// The id outlives the request in the worker queue.
	id := utils.CopyString(c.Params("id"))

	metrics, err := decodeMetricsBody(c.Body())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	if err := s.driver.AddMetrics(c.Context(), id, metrics); err != nil {
		if storage.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "trace not found"})
		}
		s.logger.Error("failed to add metrics", "trace_id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to add metrics"})
	}

	return c.JSON(AddMetricsResponse{
		TraceID: id,
		Added:   len(metrics),
		Queued:  s.enqueue(id, reasonMetrics),
	})
}

// loadSnapshot fetches the snapshot named by the :id route parameter. When
// it returns a nil snapshot the error response has already been written.
func (s *Server) loadSnapshot(c *fiber.Ctx) (*analysis.Snapshot, error) {
	id := c.Params("id")

	snapshot, err := s.driver.Get(c.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "trace not found"})
		}
		s.logger.Error("failed to load snapshot", "trace_id", id, "error", err)
		return nil, c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to load trace"})
	}

	return snapshot, nil
}

func (s *Server) enqueue(traceID, reason string) bool {
	if s.config.Enqueuer == nil {
		return false
	}
	return s.config.Enqueuer.Enqueue(worker.Job{TraceID: traceID, Reason: reason})
}

func decodeMetricsBody(body []byte) ([]groundedness.Metric, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			Metrics json.RawMessage `json:"metrics"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, err
		}
		trimmed = wrapped.Metrics
	}

	return analysis.DecodeMetrics(trimmed)
}
