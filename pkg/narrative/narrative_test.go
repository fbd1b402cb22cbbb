package narrative_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tracelens/pkg/narrative"
	"github.com/papercomputeco/tracelens/pkg/observation"
)

var _ = Describe("Extract", func() {
	var observations []*observation.Observation

	BeforeEach(func() {
		observations = []*observation.Observation{
			{
				ID:   "agent",
				Kind: observation.KindAgent,
				Input: map[string]any{"messages": []any{
					map[string]any{"role": "system", "content": "be helpful"},
					map[string]any{"role": "user", "content": "  What is my balance?  "},
				}},
			},
			{
				ID:   "gen",
				Kind: observation.KindGeneration,
				Output: map[string]any{
					"content":           "",
					"additional_kwargs": map[string]any{"reasoning_content": "I should call lookup_account first."},
				},
			},
			{ID: "t1", Kind: observation.KindTool, Name: "lookup_account", Output: map[string]any{"balance": 12}},
			{ID: "t2", Kind: observation.KindTool, Name: "lookup_account", Output: "second call"},
			{ID: "t3", Kind: observation.KindTool, Name: "notify", Output: "line one\nline two"},
			{ID: "t4", Kind: observation.KindTool, Name: "audit"},
			{
				ID:   "final",
				Kind: observation.KindGeneration,
				Output: map[string]any{"messages": []any{
					map[string]any{"role": "assistant", "content": "draft"},
					map[string]any{"role": "assistant", "content": "Your balance is 12."},
				}},
			},
		}
	})

	It("finds the first user question", func() {
		Expect(narrative.Extract(observations).UserQuestion).To(Equal("What is my balance?"))
	})

	It("summarizes each distinct tool once", func() {
		Expect(narrative.Extract(observations).ToolsExecuted).To(Equal([]narrative.ToolSummary{
			{Name: "lookup_account", Summary: `{"balance":12}`},
			{Name: "notify", Summary: "line one"},
			{Name: "audit", Summary: "(no output)"},
		}))
	})

	It("lists executed tools mentioned in the planning reasoning", func() {
		Expect(narrative.Extract(observations).PlanningTools).To(Equal([]string{"lookup_account"}))
	})

	It("takes the last assistant message as the final answer", func() {
		Expect(narrative.Extract(observations).FinalAnswer).To(Equal("Your balance is 12."))
	})

	It("prefers a string output when scanning for the final answer", func() {
		observations = append(observations, &observation.Observation{ID: "end", Kind: observation.KindAgent, Output: "Done."})
		Expect(narrative.FinalAnswer(observations)).To(Equal("Done."))
	})

	It("truncates long summaries", func() {
		obs := &observation.Observation{Kind: observation.KindTool, Name: "dump", Output: strings.Repeat("x", 250)}
		line := narrative.OutputLine(obs)
		Expect([]rune(line)).To(HaveLen(198))
		Expect(line).To(HaveSuffix("…"))
	})

	It("degrades to empty fields for an empty trace", func() {
		n := narrative.Extract(nil)
		Expect(n.UserQuestion).To(BeEmpty())
		Expect(n.ToolsExecuted).To(BeEmpty())
		Expect(n.PlanningTools).To(BeEmpty())
		Expect(n.FinalAnswer).To(BeEmpty())
	})
})
