// Package observation defines the observation records produced by an agent
// run and a read-only, indexed view over one trace's observation set.
//
// Records are decoded from loosely structured tracing exports. Absent or
// malformed fields never fail decoding of the whole trace; they degrade to
// zero values.
package observation

import (
	"strings"
	"time"
)

// Kind is the fixed tag set an observation is recorded with.
type Kind string

const (
	KindSpan       Kind = "SPAN"
	KindTool       Kind = "TOOL"
	KindGeneration Kind = "GENERATION"
	KindAgent      Kind = "AGENT"
	KindChain      Kind = "CHAIN"
	KindOther      Kind = "OTHER"
)

// ParseKind normalizes a raw kind tag. Unknown tags map to KindOther.
func ParseKind(raw string) Kind {
	switch k := Kind(strings.ToUpper(strings.TrimSpace(raw))); k {
	case KindSpan, KindTool, KindGeneration, KindAgent, KindChain:
		return k
	default:
		return KindOther
	}
}

// Observation is one recorded step of an agent execution.
type Observation struct {
	// ID is unique within a trace.
	ID string `json:"id"`

	// TraceID is the owning trace, if the export carried it.
	TraceID string `json:"trace_id,omitempty"`

	Kind Kind `json:"kind"`

	// Name is an optional human label used for heuristic classification.
	Name string `json:"name,omitempty"`

	// RecordedParentID is the parent pointer as recorded by the tracing
	// framework. It may be absent, dangling, or semantically wrong.
	RecordedParentID string `json:"recorded_parent_id,omitempty"`

	// MetadataParentID is an alternate parent pointer found in metadata.
	// Same trust level as RecordedParentID.
	MetadataParentID string `json:"metadata_parent_id,omitempty"`

	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
	Input    any            `json:"input,omitempty"`
	Output   any            `json:"output,omitempty"`
}

// LowerName returns the trimmed, lower-cased name.
func (o *Observation) LowerName() string {
	return strings.ToLower(strings.TrimSpace(o.Name))
}

// MetadataString returns the first non-empty string value stored under any
// of the given metadata keys.
func (o *Observation) MetadataString(keys ...string) string {
	if o.Metadata == nil {
		return ""
	}

	for _, key := range keys {
		if s, ok := o.Metadata[key].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}

	return ""
}

// Trace is the root owner of an ordered set of observations. Its ID is used
// as the synthetic root node of the reconstructed graph.
type Trace struct {
	ID           string        `json:"id"`
	Name         string        `json:"name,omitempty"`
	Observations []Observation `json:"observations"`
}
