package observation_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tracelens/pkg/observation"
)

var _ = Describe("Level", func() {
	levels := []observation.Level{
		observation.LevelNone,
		observation.LevelLow,
		observation.LevelMedium,
		observation.LevelHigh,
	}

	It("never decreases when merged", func() {
		for _, a := range levels {
			for _, b := range levels {
				merged := a.Merge(b)
				Expect(merged.AtLeast(a)).To(BeTrue())
				Expect(merged.AtLeast(b)).To(BeTrue())
				Expect(merged).To(Equal(b.Merge(a)))
			}
		}
	})

	DescribeTable("ParseLevel",
		func(raw string, expected observation.Level) {
			Expect(observation.ParseLevel(raw)).To(Equal(expected))
		},
		Entry("none", "none", observation.LevelNone),
		Entry("low", "LOW", observation.LevelLow),
		Entry("medium", " medium ", observation.LevelMedium),
		Entry("high", "high", observation.LevelHigh),
		Entry("public classification", "PUBLIC", observation.LevelNone),
		Entry("internal classification", "INTERNAL", observation.LevelLow),
		Entry("sensitive classification", "SENSITIVE", observation.LevelMedium),
		Entry("highly sensitive classification", "HIGHLY_SENSITIVE", observation.LevelHigh),
		Entry("unknown", "critical", observation.LevelNone),
	)

	It("encodes as its name", func() {
		data, err := json.Marshal(observation.LevelMedium)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(`"medium"`))
	})

	It("decodes non-string values as none", func() {
		var a observation.Artefact
		Expect(json.Unmarshal([]byte(`{"id":"x","sensitivity":3}`), &a)).To(Succeed())
		Expect(a.Sensitivity).To(Equal(observation.LevelNone))
	})
})
