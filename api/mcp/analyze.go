package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/tracelens/pkg/analysis"
	"github.com/papercomputeco/tracelens/pkg/storage"
)

var (
	analyzeToolName    = "analyze_trace"
	analyzeDescription = "Reconstruct the execution graph of a stored agent trace and report, per observation, its resolved parent, depth, leak risk and dominant groundedness label, plus the root-cause observation of the run."

	listToolName    = "list_traces"
	listDescription = "List the stored agent traces that can be analyzed, newest first."
)

// AnalyzeTraceInput represents the input arguments for the analyze_trace tool.
type AnalyzeTraceInput struct {
	TraceID string `json:"trace_id" jsonschema:"the id of the stored trace to analyze"`
}

// ObservationRisk is the risk summary of one observation.
type ObservationRisk struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	Name        string   `json:"name,omitempty"`
	ParentID    string   `json:"parent_id"`
	Depth       int      `json:"depth"`
	Rule        string   `json:"rule"`
	LeakLevel   string   `json:"leak_level"`
	LeakSources []string `json:"leak_sources"`

	// Groundedness is the dominant label, empty when unscored.
	Groundedness string `json:"groundedness,omitempty"`
}

// AnalyzeTraceOutput represents the output of the analyze_trace tool.
type AnalyzeTraceOutput struct {
	TraceID                string            `json:"trace_id"`
	MaxLeakLevel           string            `json:"max_leak_level"`
	RootCauseObservationID string            `json:"root_cause_observation_id,omitempty"`
	UserQuestion           string            `json:"user_question,omitempty"`
	FinalAnswer            string            `json:"final_answer,omitempty"`
	Observations           []ObservationRisk `json:"observations"`
}

// ListTracesInput takes no arguments.
type ListTracesInput struct{}

// TraceSummary describes one stored trace.
type TraceSummary struct {
	TraceID      string `json:"trace_id"`
	Name         string `json:"name,omitempty"`
	Observations int    `json:"observations"`
	Metrics      int    `json:"metrics"`
	UpdatedAt    string `json:"updated_at"`
}

// ListTracesOutput represents the output of the list_traces tool.
type ListTracesOutput struct {
	Traces []TraceSummary `json:"traces"`
	Count  int            `json:"count"`
}

// handleAnalyzeTrace processes an analyze_trace request.
func (s *Server) handleAnalyzeTrace(ctx context.Context, _ *mcp.CallToolRequest, input AnalyzeTraceInput) (*mcp.CallToolResult, AnalyzeTraceOutput, error) {
	logger := s.config.Logger

	traceID := strings.TrimSpace(input.TraceID)
	if traceID == "" {
		return errorResult("trace_id is required"), AnalyzeTraceOutput{}, nil
	}

	logger.Debug("MCP analyze request", "trace_id", traceID)

	snapshot, err := s.config.Driver.Get(ctx, traceID)
	if err != nil {
		if storage.IsNotFound(err) {
			return errorResult(fmt.Sprintf("Trace %q not found", traceID)), AnalyzeTraceOutput{}, nil
		}
		logger.Error("failed to load snapshot", "trace_id", traceID, "error", err)
		return errorResult(fmt.Sprintf("Failed to load trace: %v", err)), AnalyzeTraceOutput{}, nil
	}

	result := s.config.Engine.Analyze(snapshot)
	output := AnalyzeTraceOutput{
		TraceID:                result.TraceID,
		MaxLeakLevel:           result.MaxLeak().String(),
		RootCauseObservationID: result.RootCauseObservationID,
		UserQuestion:           result.Narrative.UserQuestion,
		FinalAnswer:            result.Narrative.FinalAnswer,
		Observations:           buildObservationRisks(result.Report()),
	}

	return textResult(output), output, nil
}

// handleListTraces processes a list_traces request.
func (s *Server) handleListTraces(ctx context.Context, _ *mcp.CallToolRequest, _ ListTracesInput) (*mcp.CallToolResult, ListTracesOutput, error) {
	summaries, err := s.config.Driver.List(ctx)
	if err != nil {
		s.config.Logger.Error("failed to list snapshots", "error", err)
		return errorResult(fmt.Sprintf("Failed to list traces: %v", err)), ListTracesOutput{}, nil
	}

	traces := make([]TraceSummary, 0, len(summaries))
	for _, sum := range summaries {
		traces = append(traces, TraceSummary{
			TraceID:      sum.TraceID,
			Name:         sum.Name,
			Observations: sum.Observations,
			Metrics:      sum.Metrics,
			UpdatedAt:    sum.UpdatedAt.Format(time.RFC3339),
		})
	}

	output := ListTracesOutput{Traces: traces, Count: len(traces)}
	return textResult(output), output, nil
}

func buildObservationRisks(rows []analysis.ObservationReport) []ObservationRisk {
	risks := make([]ObservationRisk, 0, len(rows))
	for _, row := range rows {
		risk := ObservationRisk{
			ID:          row.ID,
			Kind:        row.Kind,
			Name:        row.Name,
			ParentID:    row.ParentID,
			Depth:       row.Depth,
			Rule:        row.Rule,
			LeakLevel:   row.Leak.Level.String(),
			LeakSources: row.Leak.Sources,
		}
		if risk.LeakSources == nil {
			risk.LeakSources = []string{}
		}
		if row.Groundedness != nil {
			risk.Groundedness = string(row.Groundedness.Label)
		}
		risks = append(risks, risk)
	}
	return risks
}

// textResult serializes structured output as JSON for the text field, for
// clients that do not read structured content.
func textResult(output any) *mcp.CallToolResult {
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to serialize results: %v", err))
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
