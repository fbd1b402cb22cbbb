package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/papercomputeco/tracelens/pkg/groundedness"
	"github.com/papercomputeco/tracelens/pkg/observation"
)

// DefaultTraceID is assigned to trace exports that carry no id.
const DefaultTraceID = "trace"

// Snapshot is the immutable input of one analysis: a trace plus the
// externally supplied artefacts and groundedness metrics.
type Snapshot struct {
	Trace     observation.Trace      `json:"trace"`
	Artefacts []observation.Artefact `json:"artefacts,omitempty"`
	Metrics   []groundedness.Metric  `json:"metrics,omitempty"`
}

// DecodeSnapshot decodes a snapshot document. A document without a "trace"
// member is read as a bare trace export. A trace without an id gets
// defaultID, or DefaultTraceID when defaultID is empty.
func DecodeSnapshot(data []byte, defaultID string) (*Snapshot, error) {
	if defaultID == "" {
		defaultID = DefaultTraceID
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("decoding snapshot: empty document")
	}

	var s Snapshot
	if trimmed[0] == '{' {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return nil, fmt.Errorf("decoding snapshot: %w", err)
		}
		if _, ok := probe["trace"]; ok {
			if err := json.Unmarshal(trimmed, &s); err != nil {
				return nil, fmt.Errorf("decoding snapshot: %w", err)
			}
			if s.Trace.ID == "" {
				s.Trace.ID = defaultID
			}
			return &s, nil
		}
	}

	trace, err := observation.DecodeTrace(trimmed, defaultID)
	if err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	s.Trace = *trace
	return &s, nil
}

// DecodeArtefacts decodes a JSON array of artefact records.
func DecodeArtefacts(data []byte) ([]observation.Artefact, error) {
	var artefacts []observation.Artefact
	if err := json.Unmarshal(data, &artefacts); err != nil {
		return nil, fmt.Errorf("decoding artefacts: %w", err)
	}
	return artefacts, nil
}

// DecodeMetrics decodes a JSON array of groundedness metric records.
func DecodeMetrics(data []byte) ([]groundedness.Metric, error) {
	var metrics []groundedness.Metric
	if err := json.Unmarshal(data, &metrics); err != nil {
		return nil, fmt.Errorf("decoding metrics: %w", err)
	}
	return metrics, nil
}
