// Package analysis composes trace reconstruction and risk annotation into a
// single pure pass over a Snapshot.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/papercomputeco/tracelens/pkg/failure"
	"github.com/papercomputeco/tracelens/pkg/groundedness"
	"github.com/papercomputeco/tracelens/pkg/leak"
	"github.com/papercomputeco/tracelens/pkg/logger"
	"github.com/papercomputeco/tracelens/pkg/narrative"
	"github.com/papercomputeco/tracelens/pkg/observation"
	"github.com/papercomputeco/tracelens/pkg/tracegraph"
)

// Result is the analysis of one trace. All maps are keyed by observation id.
type Result struct {
	TraceID string `json:"trace_id"`

	// Order lists observation ids in temporal order.
	Order []string `json:"order"`

	Parents      tracegraph.ParentMap           `json:"parents"`
	Depths       tracegraph.DepthMap            `json:"depths"`
	Leaks        map[string]leak.Detection      `json:"leaks"`
	Groundedness map[string]groundedness.Metric `json:"groundedness"`

	Graph     *tracegraph.Graph   `json:"graph"`
	Narrative narrative.Narrative `json:"narrative"`
	Failures  failure.Summary     `json:"failures"`

	RootCauseObservationID string `json:"root_cause_observation_id,omitempty"`
}

// MaxLeak returns the highest leak level in the trace.
func (r *Result) MaxLeak() observation.Level {
	return leak.Max(r.Leaks)
}

// Leaking returns, in temporal order, the ids of observations with a leak
// level above none.
func (r *Result) Leaking() []string {
	ids := []string{}
	for _, id := range r.Order {
		if r.Leaks[id].Level > observation.LevelNone {
			ids = append(ids, id)
		}
	}
	return ids
}

// Contradicted returns, in temporal order, the ids of observations whose
// dominant groundedness metric is CONTRADICTED.
func (r *Result) Contradicted() []string {
	ids := []string{}
	for _, id := range r.Order {
		if m, ok := r.Groundedness[id]; ok && m.Label == groundedness.LabelContradicted {
			ids = append(ids, id)
		}
	}
	return ids
}

// Engine runs analyses. It holds configuration only and is safe for
// concurrent use.
type Engine struct {
	annotator *leak.Annotator
	detector  *failure.Detector
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*engineConfig)

type engineConfig struct {
	leakOpts    []leak.Option
	failureOpts []failure.Option
	logger      *slog.Logger
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *engineConfig) {
		c.logger = l
	}
}

// WithLateStageNames overrides the name fragments marking late-stage steps
// for leak detection. An empty list keeps the defaults.
func WithLateStageNames(names []string) Option {
	return func(c *engineConfig) {
		if len(names) > 0 {
			c.leakOpts = append(c.leakOpts, leak.WithLateStageNames(names))
		}
	}
}

// WithLeakPatterns overrides the leak content detectors.
func WithLeakPatterns(patterns []leak.Pattern) Option {
	return func(c *engineConfig) {
		c.leakOpts = append(c.leakOpts, leak.WithPatterns(patterns))
	}
}

// WithFailureOptions configures failure detection.
func WithFailureOptions(opts ...failure.Option) Option {
	return func(c *engineConfig) {
		c.failureOpts = append(c.failureOpts, opts...)
	}
}

// NewEngine returns an Engine.
func NewEngine(opts ...Option) *Engine {
	c := &engineConfig{logger: logger.Nop()}
	for _, opt := range opts {
		opt(c)
	}

	return &Engine{
		annotator: leak.NewAnnotator(c.leakOpts...),
		detector:  failure.NewDetector(c.failureOpts...),
		logger:    c.logger,
	}
}

// Analyze reconstructs the graph of a snapshot's trace and annotates every
// observation. It never fails: malformed or foreign data degrades locally.
func (e *Engine) Analyze(s *Snapshot) *Result {
	store := observation.NewStore(&s.Trace)
	seq := tracegraph.Order(store)
	res := tracegraph.Resolve(store, seq, tracegraph.BuildToolIndex(seq))
	depths := tracegraph.Depths(res.Parents, res.RootID)
	graph := tracegraph.Assemble(seq, res, depths)

	ordered := seq.Observations()

	metrics := knownMetrics(store, s.Metrics)
	artefacts := observation.NewArtefactSet(s.Artefacts)

	result := &Result{
		TraceID:                store.RootID(),
		Order:                  seq.IDs(),
		Parents:                res.Parents,
		Depths:                 depths,
		Leaks:                  e.annotator.DetectAll(ordered, artefacts),
		Groundedness:           groundedness.Merge(metrics),
		Graph:                  graph,
		Narrative:              narrative.Extract(ordered),
		RootCauseObservationID: groundedness.RootCause(metrics),
	}
	result.Failures = e.detector.Detect(result.TraceID, ordered, result.Leaks, len(artefacts))

	if e.logger.Enabled(context.Background(), slog.LevelDebug) {
		e.logger.Debug("analyzed trace",
			"trace_id", result.TraceID,
			"observations", seq.Len(),
			"rules", ruleCounts(res.Rules),
			"fan_in_edges", len(graph.FanIn()),
			"leaking", len(result.Leaking()),
			"max_leak", result.MaxLeak().String(),
			"contradicted", len(result.Contradicted()),
			"failures", result.Failures.Signals.Failures,
		)
	}

	return result
}

// PlanJobs returns the groundedness scoring jobs for a snapshot's trace.
func (e *Engine) PlanJobs(s *Snapshot) []groundedness.Job {
	store := observation.NewStore(&s.Trace)
	seq := tracegraph.Order(store)

	ordered := seq.Observations()
	return groundedness.PlanJobs(ordered, narrative.UserQuestion(ordered))
}

// knownMetrics drops metrics that reference observations outside the trace.
func knownMetrics(store *observation.Store, metrics []groundedness.Metric) []groundedness.Metric {
	out := make([]groundedness.Metric, 0, len(metrics))
	for _, m := range metrics {
		if store.Has(m.ObservationID) {
			out = append(out, m)
		}
	}
	return out
}

func ruleCounts(rules map[string]tracegraph.Rule) []string {
	counts := make(map[tracegraph.Rule]int)
	for _, r := range rules {
		counts[r]++
	}

	out := make([]string, 0, len(counts))
	for r, n := range counts {
		out = append(out, fmt.Sprintf("%s=%d", r, n))
	}
	slices.Sort(out)
	return out
}
