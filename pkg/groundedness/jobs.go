package groundedness

import (
	"fmt"
	"strings"

	"github.com/papercomputeco/tracelens/pkg/narrative"
	"github.com/papercomputeco/tracelens/pkg/observation"
)

// evidenceWindow is the number of most recent tool results used as premise.
const evidenceWindow = 6

// Subjects scored by a Job.
const (
	SubjectReasoning   = "reasoning"
	SubjectFinalAnswer = "final_answer"
)

// Job is one premise/hypothesis pair for an external NLI scorer. Scoring a
// Job yields a Metric for the same observation, metric and subject.
type Job struct {
	ObservationID string `json:"observation_id"`
	Metric        string `json:"metric"`
	Subject       string `json:"subject"`
	Premise       string `json:"premise"`
	Hypothesis    string `json:"hypothesis"`
}

// PlanJobs derives the groundedness jobs of a trace from observations in
// temporal order. Before any tool has run, an AGENT or GENERATION's
// reasoning is checked against the user question alone. Afterwards its
// reasoning and its answer are checked against the question plus the latest
// tool results.
func PlanJobs(observations []*observation.Observation, userQuestion string) []Job {
	var (
		jobs    []Job
		history []string
	)

	base := "User request: (not captured)"
	if q := strings.TrimSpace(userQuestion); q != "" {
		base = "User asked: " + q
	}

	for _, obs := range observations {
		switch obs.Kind {
		case observation.KindTool:
			history = append(history, toolEvidence(obs))
			continue
		case observation.KindAgent, observation.KindGeneration:
		default:
			continue
		}

		reasoning := narrative.ReasoningText(obs)
		if len(history) == 0 {
			if reasoning != "" {
				jobs = append(jobs, Job{
					ObservationID: obs.ID,
					Metric:        MetricValidityWithQuery,
					Subject:       SubjectReasoning,
					Premise:       base,
					Hypothesis:    reasoning,
				})
			}
			continue
		}

		premise := evidencePremise(base, history)
		if reasoning != "" {
			jobs = append(jobs, Job{
				ObservationID: obs.ID,
				Metric:        MetricGroundednessWithEvidence,
				Subject:       SubjectReasoning,
				Premise:       premise,
				Hypothesis:    reasoning,
			})
		}
		if answer := narrative.AssistantContent(obs); answer != "" {
			jobs = append(jobs, Job{
				ObservationID: obs.ID,
				Metric:        MetricGroundednessWithEvidence,
				Subject:       SubjectFinalAnswer,
				Premise:       premise,
				Hypothesis:    answer,
			})
		}
	}

	return jobs
}

func toolEvidence(obs *observation.Observation) string {
	name := obs.Name
	if name == "" {
		name = "tool"
	}
	return fmt.Sprintf("%s: %s", name, narrative.OutputLine(obs))
}

func evidencePremise(base string, history []string) string {
	recent := history[max(0, len(history)-evidenceWindow):]

	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\nTool evidence:")
	for _, h := range recent {
		b.WriteString("\n- ")
		b.WriteString(h)
	}
	return b.String()
}
