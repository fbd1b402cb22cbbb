// Package leak flags observations whose content may expose sensitive data.
//
// Each observation gets a risk level on the none < low < medium < high
// lattice plus the set of signals that produced it. Detection is pure: the
// same observation and artefact set always yield the same Detection.
package leak

import (
	"strings"

	"github.com/papercomputeco/tracelens/pkg/observation"
)

// DefaultLateStageNames are the name fragments that mark an observation as a
// late-stage, output-bearing step.
var DefaultLateStageNames = []string{"final", "answer", "respond", "response", "output"}

// Detection is the leak risk of one observation.
type Detection struct {
	Level   observation.Level `json:"level"`
	Sources []string          `json:"sources"`
}

// Annotator scans observations for leak risk.
type Annotator struct {
	patterns  []Pattern
	lateStage []string
}

// Option configures an Annotator.
type Option func(*Annotator)

// WithPatterns replaces the content detectors.
func WithPatterns(patterns []Pattern) Option {
	return func(a *Annotator) {
		a.patterns = patterns
	}
}

// WithLateStageNames replaces the name fragments that mark late-stage steps.
// Matching is case-insensitive.
func WithLateStageNames(names []string) Option {
	return func(a *Annotator) {
		a.lateStage = a.lateStage[:0]
		for _, n := range names {
			if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
				a.lateStage = append(a.lateStage, n)
			}
		}
	}
}

// NewAnnotator returns an Annotator using DefaultPatterns and
// DefaultLateStageNames unless overridden.
func NewAnnotator(opts ...Option) *Annotator {
	a := &Annotator{
		patterns:  DefaultPatterns(),
		lateStage: append([]string(nil), DefaultLateStageNames...),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// InspectsText reports whether the content of obs is scanned by the pattern
// detectors: generations, agents, and late-stage steps identified by name or
// by a recorded final answer.
func (a *Annotator) InspectsText(obs *observation.Observation) bool {
	switch obs.Kind {
	case observation.KindGeneration, observation.KindAgent:
		return true
	}

	if FinalAnswer(obs) != "" {
		return true
	}

	name := obs.LowerName()
	for _, hint := range a.lateStage {
		if strings.Contains(name, hint) {
			return true
		}
	}
	return false
}

// Detect computes the leak risk of a single observation.
func (a *Annotator) Detect(obs *observation.Observation, artefacts observation.ArtefactSet) Detection {
	candidates := textCandidates(obs)
	verdict, judged := JudgeVerdict(obs)
	probed := ProbeLeaked(obs)

	if len(candidates) == 0 && !judged && !probed {
		return Detection{Level: observation.LevelNone, Sources: []string{}}
	}

	acc := newAccumulator()

	if len(candidates) > 0 && a.InspectsText(obs) {
		text := strings.Join(candidates, "\n")
		for _, p := range a.patterns {
			if p.Expr.MatchString(text) {
				acc.raise(p.Level, p.Name)
			}
		}
	}

	if judged {
		acc.raise(verdict.Risk, verdict.Sources...)
	}

	if probed {
		acc.raise(observation.LevelHigh, SourceLeakageProbe)
	}

	if acc.level > observation.LevelNone {
		for _, id := range obs.VisibleArtefactIDs() {
			artefact, known := artefacts[id]
			if !known {
				acc.raise(observation.LevelNone, id)
				continue
			}
			acc.raise(artefact.Sensitivity, id)
		}
	}

	return acc.detection()
}

// DetectAll computes the leak risk of every observation, keyed by id.
func (a *Annotator) DetectAll(observations []*observation.Observation, artefacts observation.ArtefactSet) map[string]Detection {
	out := make(map[string]Detection, len(observations))
	for _, obs := range observations {
		out[obs.ID] = a.Detect(obs, artefacts)
	}
	return out
}

// Max returns the highest level among detections.
func Max(detections map[string]Detection) observation.Level {
	level := observation.LevelNone
	for _, d := range detections {
		level = level.Merge(d.Level)
	}
	return level
}

type accumulator struct {
	level   observation.Level
	sources []string
	seen    map[string]struct{}
}

func newAccumulator() *accumulator {
	return &accumulator{sources: []string{}, seen: make(map[string]struct{})}
}

// raise merges level into the running level and records sources in first
// seen order.
func (a *accumulator) raise(level observation.Level, sources ...string) {
	a.level = a.level.Merge(level)
	for _, s := range sources {
		if _, ok := a.seen[s]; ok {
			continue
		}
		a.seen[s] = struct{}{}
		a.sources = append(a.sources, s)
	}
}

func (a *accumulator) detection() Detection {
	return Detection{Level: a.level, Sources: a.sources}
}
