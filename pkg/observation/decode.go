package observation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// EpochFallback is the start time assigned to observations whose timestamp is
// missing or unparsable. It sorts before every real timestamp.
var EpochFallback = time.Unix(0, 0).UTC()

// Historically used key spellings for the fields of an observation record.
var (
	idKeys             = []string{"id"}
	traceIDKeys        = []string{"trace_id", "traceId"}
	kindKeys           = []string{"kind", "type"}
	recordedParentKeys = []string{"recorded_parent_id", "parentObservationId", "parent_observation_id", "parentId"}
	startKeys          = []string{"start_time", "startTime", "timestamp"}
	endKeys            = []string{"end_time", "endTime"}

	// MetadataParentKeys are the metadata keys that may carry an alternate
	// parent pointer, in lookup order.
	MetadataParentKeys = []string{
		"parent_observation_id",
		"parentObservationId",
		"parent_id",
		"parentId",
		"parent_run_id",
	}
)

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON decodes an observation from any of the known export shapes.
// Only a document that is not a JSON object is an error.
func (o *Observation) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding observation: %w", err)
	}

	*o = FromMap(raw)
	return nil
}

// FromMap builds an observation from a generic decoded record.
func FromMap(raw map[string]any) Observation {
	o := Observation{
		ID:               firstString(raw, idKeys),
		TraceID:          firstString(raw, traceIDKeys),
		Kind:             ParseKind(firstString(raw, kindKeys)),
		Name:             strings.TrimSpace(stringValue(raw["name"])),
		RecordedParentID: firstString(raw, recordedParentKeys),
		Metadata:         metadataValue(raw["metadata"]),
		Input:            raw["input"],
		Output:           raw["output"],
	}

	o.MetadataParentID = stringValue(raw["metadata_parent_id"])
	if o.MetadataParentID == "" {
		o.MetadataParentID = o.MetadataString(MetadataParentKeys...)
	}

	o.StartTime = ParseTime(firstValue(raw, startKeys))
	if v := firstValue(raw, endKeys); v != nil {
		if end, ok := parseTime(v); ok {
			o.EndTime = &end
		}
	}

	return o
}

// UnmarshalJSON accepts either a trace object with an "observations" array
// or a bare array of observations. For a bare array the trace id is taken
// from the first observation that carries one.
func (t *Trace) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return errors.New("decoding trace: empty document")
	}

	if trimmed[0] == '[' {
		var observations []Observation
		if err := json.Unmarshal(trimmed, &observations); err != nil {
			return fmt.Errorf("decoding trace: %w", err)
		}

		*t = Trace{Observations: observations}
		for i := range observations {
			if observations[i].TraceID != "" {
				t.ID = observations[i].TraceID
				break
			}
		}
		return nil
	}

	// Alias drops the method set so decoding does not recurse.
	type alias Trace
	var a alias
	if err := json.Unmarshal(trimmed, &a); err != nil {
		return fmt.Errorf("decoding trace: %w", err)
	}

	*t = Trace(a)
	return nil
}

// DecodeTrace decodes a trace export. A trace without an id is assigned
// defaultID.
func DecodeTrace(data []byte, defaultID string) (*Trace, error) {
	var t Trace
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}

	if t.ID == "" {
		t.ID = defaultID
	}

	return &t, nil
}

// ParseTime parses an RFC 3339 string or a unix timestamp in seconds or
// milliseconds. Anything else yields EpochFallback.
func ParseTime(v any) time.Time {
	t, ok := parseTime(v)
	if !ok {
		return EpochFallback
	}
	return t
}

func parseTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) || val < 0 {
			return time.Time{}, false
		}
		// Values past 1e12 cannot be seconds in any plausible trace.
		if val >= 1e12 {
			return time.UnixMilli(int64(val)).UTC(), true
		}
		sec, frac := math.Modf(val)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return parseTime(f)
		}
	}

	return time.Time{}, false
}

func metadataValue(v any) map[string]any {
	switch val := v.(type) {
	case map[string]any:
		return val
	case string:
		// Some exporters serialize metadata as a JSON string.
		var m map[string]any
		if err := json.Unmarshal([]byte(val), &m); err == nil {
			return m
		}
	}
	return nil
}

func firstValue(raw map[string]any, keys []string) any {
	for _, key := range keys {
		if v, ok := raw[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(raw map[string]any, keys []string) string {
	for _, key := range keys {
		if s := stringValue(raw[key]); s != "" {
			return s
		}
	}
	return ""
}

func stringValue(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
