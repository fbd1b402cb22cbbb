// Package narrative extracts a human-readable execution narrative from a
// trace: the question asked, the tools planned and executed, and the final
// answer.
package narrative

import (
	"strings"

	"github.com/papercomputeco/tracelens/pkg/observation"
	"github.com/papercomputeco/tracelens/pkg/utils"
)

const (
	summaryLimit = 200
	noOutput     = "(no output)"
)

// ToolSummary is the first line of one executed tool's output.
type ToolSummary struct {
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

// Narrative is the execution story of one trace.
type Narrative struct {
	UserQuestion  string        `json:"user_question,omitempty"`
	PlanningTools []string      `json:"planning_tools"`
	ToolsExecuted []ToolSummary `json:"tools_executed"`
	FinalAnswer   string        `json:"final_answer,omitempty"`
}

// Extract builds the narrative of observations given in temporal order.
func Extract(observations []*observation.Observation) Narrative {
	executed := ToolsExecuted(observations)
	return Narrative{
		UserQuestion:  UserQuestion(observations),
		PlanningTools: PlanningTools(observations, executed),
		ToolsExecuted: executed,
		FinalAnswer:   FinalAnswer(observations),
	}
}

// UserQuestion returns the content of the first user message found in any
// observation input.
func UserQuestion(observations []*observation.Observation) string {
	for _, obs := range observations {
		for _, msg := range observation.Messages(obs.Input) {
			if role, _ := msg["role"].(string); role != "user" {
				continue
			}
			if content := stringContent(msg); content != "" {
				return content
			}
		}
	}
	return ""
}

// ToolsExecuted returns each distinct TOOL name once, in execution order,
// with a one-line summary of its first output.
func ToolsExecuted(observations []*observation.Observation) []ToolSummary {
	summaries := []ToolSummary{}
	seen := make(map[string]struct{})

	for _, obs := range observations {
		if obs.Kind != observation.KindTool || obs.Name == "" {
			continue
		}
		if _, ok := seen[obs.Name]; ok {
			continue
		}
		seen[obs.Name] = struct{}{}
		summaries = append(summaries, ToolSummary{Name: obs.Name, Summary: OutputLine(obs)})
	}

	return summaries
}

// PlanningTools returns the executed tool names mentioned in the reasoning
// of the first AGENT, GENERATION or SPAN whose reasoning mentions any.
func PlanningTools(observations []*observation.Observation, executed []ToolSummary) []string {
	for _, obs := range observations {
		switch obs.Kind {
		case observation.KindAgent, observation.KindGeneration, observation.KindSpan:
		default:
			continue
		}

		reasoning := ReasoningText(obs)
		if reasoning == "" {
			continue
		}

		planned := []string{}
		for _, tool := range executed {
			if strings.Contains(reasoning, tool.Name) {
				planned = append(planned, tool.Name)
			}
		}
		if len(planned) > 0 {
			return planned
		}
	}
	return []string{}
}

// FinalAnswer scans AGENT and GENERATION observations from the last one
// backwards and returns the first non-empty string output, or the content of
// the last assistant message of an output.
func FinalAnswer(observations []*observation.Observation) string {
	for i := len(observations) - 1; i >= 0; i-- {
		obs := observations[i]
		if obs.Kind != observation.KindAgent && obs.Kind != observation.KindGeneration {
			continue
		}

		if s, ok := obs.Output.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}

		messages := observation.Messages(obs.Output)
		for j := len(messages) - 1; j >= 0; j-- {
			if role, _ := messages[j]["role"].(string); role != "assistant" {
				continue
			}
			if content := stringContent(messages[j]); content != "" {
				return content
			}
		}
	}
	return ""
}

// ReasoningText returns output.additional_kwargs.reasoning_content.
func ReasoningText(obs *observation.Observation) string {
	out, ok := obs.Output.(map[string]any)
	if !ok {
		return ""
	}
	kwargs, ok := out["additional_kwargs"].(map[string]any)
	if !ok {
		return ""
	}
	s, _ := kwargs["reasoning_content"].(string)
	return strings.TrimSpace(s)
}

// AssistantContent returns the first non-empty message content of an
// output, or the output itself when it is a string.
func AssistantContent(obs *observation.Observation) string {
	for _, msg := range observation.Messages(obs.Output) {
		if content := stringContent(msg); content != "" {
			return content
		}
	}
	if s, ok := obs.Output.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// OutputLine returns the first line of an observation's rendered output,
// truncated to 200 characters, or "(no output)".
func OutputLine(obs *observation.Observation) string {
	line := utils.Truncate(utils.FirstLine(observation.RenderPayload(obs.Output)), summaryLimit)
	if line == "" {
		return noOutput
	}
	return line
}

func stringContent(msg map[string]any) string {
	s, _ := msg["content"].(string)
	return strings.TrimSpace(s)
}
