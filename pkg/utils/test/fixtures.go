// Package testutils holds shared trace fixtures for tests.
package testutils

import (
	"github.com/papercomputeco/tracelens/pkg/analysis"
)

// Observation ids of the support agent fixture.
const (
	SupportTraceID  = "trace-support"
	SupportAgent    = "obs-agent"
	SupportPlan     = "obs-plan"
	SupportTools    = "obs-tools"
	SupportLookup   = "obs-lookup"
	SupportModel    = "obs-model"
	SupportAnswer   = "obs-answer"
	SupportArtefact = "art-crm-042"
)

// SupportSnapshotJSON is a langfuse-style export of a customer support agent
// run. The lookup tool is recorded under a generic "tools" dispatcher, and
// the final answer leaks a customer email address from a highly sensitive
// CRM record.
const SupportSnapshotJSON = `{
  "trace": {
    "id": "trace-support",
    "name": "support-agent",
    "observations": [
      {
        "id": "obs-agent",
        "type": "AGENT",
        "name": "support_agent",
        "startTime": "2025-05-01T09:00:00.000Z",
        "input": {"messages": [{"role": "user", "content": "How do I reach the account owner?"}]}
      },
      {
        "id": "obs-plan",
        "type": "GENERATION",
        "name": "ChatOllama",
        "parentObservationId": "obs-agent",
        "startTime": "2025-05-01T09:00:01.000Z",
        "metadata": {"langgraph_node": "model"},
        "output": {
          "content": "",
          "additional_kwargs": {"reasoning_content": "I need lookup_customer to find the owner."},
          "tool_calls": [{"name": "lookup_customer", "args": {"account": "acme"}}]
        }
      },
      {
        "id": "obs-tools",
        "type": "CHAIN",
        "name": "tools",
        "parentObservationId": "obs-agent",
        "startTime": "2025-05-01T09:00:02.000Z",
        "metadata": {"langgraph_node": "tools"}
      },
      {
        "id": "obs-lookup",
        "type": "TOOL",
        "name": "lookup_customer",
        "parentObservationId": "obs-tools",
        "startTime": "2025-05-01T09:00:03.000Z",
        "metadata": {"visible_data": ["art-crm-042"]},
        "output": "owner: Jane Doe\nemail: jane@acme.example"
      },
      {
        "id": "obs-model",
        "type": "CHAIN",
        "name": "call_model",
        "parentObservationId": "obs-agent",
        "startTime": "2025-05-01T09:00:04.000Z",
        "metadata": {"langgraph_node": "model"}
      },
      {
        "id": "obs-answer",
        "type": "GENERATION",
        "name": "ChatOllama",
        "parentObservationId": "obs-model",
        "startTime": "2025-05-01T09:00:05.000Z",
        "metadata": {"visible_data": ["art-crm-042"]},
        "output": {"role": "assistant", "content": "You can email Jane at jane@acme.example."}
      }
    ]
  },
  "artefacts": [
    {"id": "art-crm-042", "kind": "crm_record", "source_tool": "lookup_customer", "sensitivity": "high", "tags": ["pii"]}
  ],
  "metrics": [
    {"observationId": "obs-answer", "metric": "groundedness_with_evidence", "subject": "final_answer", "entailment": 0.9, "contradiction": 0.05, "neutral": 0.05, "label": "ENTAILED"},
    {"observationId": "obs-answer", "metric": "groundedness_with_evidence", "subject": "reasoning", "entailment": 0.1, "contradiction": 0.7, "neutral": 0.2, "label": "CONTRADICTED"}
  ]
}`

// SupportSnapshot decodes SupportSnapshotJSON.
func SupportSnapshot() *analysis.Snapshot {
	s, err := analysis.DecodeSnapshot([]byte(SupportSnapshotJSON), "")
	if err != nil {
		panic(err)
	}
	return s
}

// MinimalTraceJSON is a bare observation array without a trace id.
const MinimalTraceJSON = `[
  {"id": "a", "type": "SPAN", "name": "root", "startTime": "2025-05-01T10:00:00Z"},
  {"id": "b", "type": "GENERATION", "parentObservationId": "a", "startTime": "2025-05-01T10:00:01Z", "output": "hello"}
]`
