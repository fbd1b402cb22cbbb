package groundedness_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tracelens/pkg/groundedness"
)

var _ = Describe("Metric", func() {
	DescribeTable("LabelFromScores",
		func(contradiction, entailment float64, expected groundedness.Label) {
			Expect(groundedness.LabelFromScores(contradiction, entailment)).To(Equal(expected))
		},
		Entry("contradiction at threshold", 0.5, 0.9, groundedness.LabelContradicted),
		Entry("entailment at threshold", 0.49, 0.6, groundedness.LabelEntailed),
		Entry("neither", 0.3, 0.4, groundedness.LabelNeutral),
	)

	It("decodes camel-cased records and clamps scores", func() {
		var m groundedness.Metric
		Expect(json.Unmarshal([]byte(`{
			"observationId": "gen-1",
			"metric": "groundedness_with_evidence",
			"subject": "final_answer",
			"entailment": 1.4,
			"contradiction": -0.2,
			"neutral": 0.1,
			"label": "entailed"
		}`), &m)).To(Succeed())

		Expect(m).To(Equal(groundedness.Metric{
			ObservationID: "gen-1",
			Metric:        groundedness.MetricGroundednessWithEvidence,
			Subject:       groundedness.SubjectFinalAnswer,
			Entailment:    1,
			Contradiction: 0,
			Neutral:       0.1,
			Label:         groundedness.LabelEntailed,
		}))
	})

	It("derives a missing label and neutral score", func() {
		var m groundedness.Metric
		Expect(json.Unmarshal([]byte(`{"observation_id":"x","entailment":0.25,"contradiction":0.5,"label":"WHATEVER"}`), &m)).To(Succeed())
		Expect(m.Label).To(Equal(groundedness.LabelContradicted))
		Expect(m.Neutral).To(BeNumerically("~", 0.25, 1e-9))
	})

	It("rejects a record that is not an object", func() {
		var m groundedness.Metric
		Expect(json.Unmarshal([]byte(`[1,2]`), &m)).NotTo(Succeed())
	})
})
