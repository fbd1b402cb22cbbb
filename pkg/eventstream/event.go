package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/tracelens/pkg/analysis"
	"github.com/papercomputeco/tracelens/pkg/failure"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeAnalysisCompleted is emitted after a stored trace is analyzed.
	EventTypeAnalysisCompleted = "tracelens.analysis.completed"
)

// AnalysisCompletedEvent is a transport-neutral summary of one analysis run.
type AnalysisCompletedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	TraceID          string `json:"trace_id"`
	ObservationCount int    `json:"observation_count"`
	MaxLeakLevel     string `json:"max_leak_level"`

	LeakingObservations      []string `json:"leaking_observations"`
	ContradictedObservations []string `json:"contradicted_observations"`
	RootCauseObservationID   string   `json:"root_cause_observation_id,omitempty"`

	FailureCodes []failure.Code `json:"failure_codes"`
}

// NewAnalysisCompletedEvent builds the event for an analysis result.
func NewAnalysisCompletedEvent(result *analysis.Result, emittedAt time.Time) *AnalysisCompletedEvent {
	return &AnalysisCompletedEvent{
		SchemaVersion:            SchemaVersionV1,
		EventType:                EventTypeAnalysisCompleted,
		EventID:                  uuid.NewString(),
		EmittedAt:                emittedAt.UTC(),
		TraceID:                  result.TraceID,
		ObservationCount:         len(result.Order),
		MaxLeakLevel:             result.MaxLeak().String(),
		LeakingObservations:      result.Leaking(),
		ContradictedObservations: result.Contradicted(),
		RootCauseObservationID:   result.RootCauseObservationID,
		FailureCodes:             result.Failures.Codes(),
	}
}
