// Package storage persists trace snapshots submitted for analysis.
package storage

import (
	"context"
	"time"

	"github.com/papercomputeco/tracelens/pkg/analysis"
	"github.com/papercomputeco/tracelens/pkg/groundedness"
)

// Driver defines the interface for persisting and retrieving snapshots in a
// storage backend. Snapshots are keyed by trace id. Drivers hand out copies:
// mutating a returned snapshot never changes what is stored.
type Driver interface {
	// Put stores a snapshot, replacing any snapshot with the same trace id.
	Put(ctx context.Context, snapshot *analysis.Snapshot) error

	// Get retrieves a snapshot by trace id.
	Get(ctx context.Context, traceID string) (*analysis.Snapshot, error)

	// List returns a summary of every stored snapshot, most recently
	// updated first.
	List(ctx context.Context) ([]Summary, error)

	// AddMetrics appends externally computed groundedness metrics to a
	// stored snapshot.
	AddMetrics(ctx context.Context, traceID string, metrics []groundedness.Metric) error

	// Delete removes a snapshot.
	Delete(ctx context.Context, traceID string) error

	// Close closes the store and releases any resources.
	Close() error
}

// Summary describes a stored snapshot without its content.
type Summary struct {
	TraceID      string    `json:"trace_id"`
	Name         string    `json:"name,omitempty"`
	Observations int       `json:"observations"`
	Metrics      int       `json:"metrics"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Summarize builds the summary of a snapshot.
func Summarize(s *analysis.Snapshot, createdAt, updatedAt time.Time) Summary {
	return Summary{
		TraceID:      s.Trace.ID,
		Name:         s.Trace.Name,
		Observations: len(s.Trace.Observations),
		Metrics:      len(s.Metrics),
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}
}

// Validate checks that a snapshot can be stored.
func Validate(s *analysis.Snapshot) error {
	if s == nil {
		return ErrNilSnapshot
	}
	if s.Trace.ID == "" {
		return ErrMissingTraceID
	}
	return nil
}
