package leak_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tracelens/pkg/leak"
	"github.com/papercomputeco/tracelens/pkg/observation"
)

func generation(output any, metadata map[string]any) *observation.Observation {
	return &observation.Observation{
		ID:       "gen",
		Kind:     observation.KindGeneration,
		Output:   output,
		Metadata: metadata,
	}
}

var _ = Describe("Annotator", func() {
	var annotator *leak.Annotator

	BeforeEach(func() {
		annotator = leak.NewAnnotator()
	})

	It("returns none for an observation without content or verdict", func() {
		d := annotator.Detect(&observation.Observation{ID: "x", Kind: observation.KindGeneration}, nil)
		Expect(d.Level).To(Equal(observation.LevelNone))
		Expect(d.Sources).To(BeEmpty())
	})

	It("flags an email address as medium", func() {
		d := annotator.Detect(generation("Contact me at jane@example.com", nil), nil)
		Expect(d.Level).To(Equal(observation.LevelMedium))
		Expect(d.Sources).To(ContainElement(leak.SourceEmailAddress))
	})

	It("escalates a card number with a visible high-sensitivity artefact", func() {
		artefacts := observation.NewArtefactSet([]observation.Artefact{
			{ID: "art-cards", Sensitivity: observation.LevelHigh},
		})
		obs := generation(
			map[string]any{"content": "Your card is 4111111111111111"},
			map[string]any{"visible_data": []any{"art-cards"}},
		)

		d := annotator.Detect(obs, artefacts)
		Expect(d.Level).To(Equal(observation.LevelHigh))
		Expect(d.Sources).To(ContainElements(leak.SourceCreditCard, "art-cards"))
	})

	DescribeTable("built-in detectors",
		func(text string, level observation.Level, source string) {
			d := annotator.Detect(generation(text, nil), nil)
			Expect(d.Level).To(Equal(level))
			Expect(d.Sources).To(ContainElement(source))
		},
		Entry("national id", "ssn 123-45-6789", observation.LevelHigh, leak.SourceSSN),
		Entry("spaced card number", "4111 1111 1111 1111", observation.LevelHigh, leak.SourceCreditCard),
		Entry("phone number", "call 555-123-4567 today", observation.LevelMedium, leak.SourcePhoneNumber),
		Entry("account keyword", "wire it to ACCT-99812", observation.LevelLow, leak.SourceAccountIdentifier),
		Entry("routing keyword", "the Routing Number is on file", observation.LevelLow, leak.SourceAccountIdentifier),
	)

	It("ignores content of steps that do not surface output", func() {
		obs := &observation.Observation{ID: "t", Kind: observation.KindTool, Name: "db.query", Output: "jane@example.com"}
		Expect(annotator.Detect(obs, nil).Level).To(Equal(observation.LevelNone))
	})

	It("inspects late-stage steps by name or final answer", func() {
		named := &observation.Observation{ID: "s", Kind: observation.KindSpan, Name: "Final Response", Output: "jane@example.com"}
		Expect(annotator.Detect(named, nil).Level).To(Equal(observation.LevelMedium))

		answered := &observation.Observation{ID: "c", Kind: observation.KindChain, Metadata: map[string]any{
			"final_answer": "reach jane@example.com",
		}}
		Expect(annotator.Detect(answered, nil).Sources).To(Equal([]string{leak.SourceEmailAddress}))
	})

	It("honors configured late-stage names", func() {
		custom := leak.NewAnnotator(leak.WithLateStageNames([]string{"Summarize"}))
		obs := &observation.Observation{ID: "s", Kind: observation.KindSpan, Name: "summarize_results", Output: "jane@example.com"}
		Expect(custom.Detect(obs, nil).Level).To(Equal(observation.LevelMedium))

		final := &observation.Observation{ID: "f", Kind: observation.KindSpan, Name: "final", Output: "jane@example.com"}
		Expect(custom.Detect(final, nil).Level).To(Equal(observation.LevelNone))
	})

	It("merges a judge verdict regardless of kind", func() {
		obs := &observation.Observation{ID: "t", Kind: observation.KindTool, Metadata: map[string]any{
			"leak_judge": map[string]any{"risk": "HIGH", "sources": []any{"customer_record", " ", 3}},
		}}
		d := annotator.Detect(obs, nil)
		Expect(d.Level).To(Equal(observation.LevelHigh))
		Expect(d.Sources).To(Equal([]string{"customer_record"}))
	})

	It("reads an unknown judge risk as none", func() {
		obs := generation(nil, map[string]any{"leak_judge": map[string]any{"risk": "catastrophic"}})
		Expect(annotator.Detect(obs, nil).Level).To(Equal(observation.LevelNone))
	})

	It("raises to high on a leaking probe", func() {
		obs := generation(nil, map[string]any{"leakage_probe": map[string]any{"leaks": float64(2), "total": float64(10)}})
		d := annotator.Detect(obs, nil)
		Expect(d.Level).To(Equal(observation.LevelHigh))
		Expect(d.Sources).To(Equal([]string{leak.SourceLeakageProbe}))

		clean := generation(nil, map[string]any{"leak_probe": map[string]any{"num_leaks": float64(0), "num_attacks": float64(10)}})
		Expect(annotator.Detect(clean, nil).Level).To(Equal(observation.LevelNone))
	})

	It("records unknown visible artefacts without escalating", func() {
		artefacts := observation.NewArtefactSet([]observation.Artefact{
			{ID: "art-low", Sensitivity: observation.LevelLow},
		})
		obs := generation("jane@example.com", map[string]any{"visible_data": []any{"art-low", "art-ghost"}})

		d := annotator.Detect(obs, artefacts)
		Expect(d.Level).To(Equal(observation.LevelMedium))
		Expect(d.Sources).To(Equal([]string{leak.SourceEmailAddress, "art-low", "art-ghost"}))
	})

	It("does not escalate when nothing was detected", func() {
		artefacts := observation.NewArtefactSet([]observation.Artefact{
			{ID: "art-high", Sensitivity: observation.LevelHigh},
		})
		obs := generation("all good", map[string]any{"visible_data": []any{"art-high"}})

		d := annotator.Detect(obs, artefacts)
		Expect(d.Level).To(Equal(observation.LevelNone))
		Expect(d.Sources).To(BeEmpty())
	})

	It("is idempotent", func() {
		artefacts := observation.NewArtefactSet([]observation.Artefact{{ID: "a", Sensitivity: observation.LevelHigh}})
		obs := generation("jane@example.com 123-45-6789", map[string]any{"visible_data": []any{"a"}})

		first := annotator.DetectAll([]*observation.Observation{obs}, artefacts)
		second := annotator.DetectAll([]*observation.Observation{obs}, artefacts)
		Expect(second).To(Equal(first))
		Expect(leak.Max(first)).To(Equal(observation.LevelHigh))
	})
})
