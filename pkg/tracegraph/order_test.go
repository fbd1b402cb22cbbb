package tracegraph_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tracelens/pkg/observation"
	"github.com/papercomputeco/tracelens/pkg/tracegraph"
)

var _ = Describe("Order", func() {
	It("sorts by start time and keeps input order for ties", func() {
		seq := tracegraph.Order(newStore(
			observation.Observation{ID: "late", StartTime: at(5)},
			observation.Observation{ID: "tie-1", StartTime: at(1)},
			observation.Observation{ID: "tie-2", StartTime: at(1)},
			observation.Observation{ID: "unparsed", StartTime: observation.EpochFallback},
		))

		Expect(seq.IDs()).To(Equal([]string{"unparsed", "tie-1", "tie-2", "late"}))

		pos, ok := seq.Position("tie-2")
		Expect(ok).To(BeTrue())
		Expect(pos).To(Equal(2))
	})

	Describe("Nearest", func() {
		var seq *tracegraph.Sequence

		BeforeEach(func() {
			seq = tracegraph.Order(newStore(
				observation.Observation{ID: "g1", Kind: observation.KindGeneration, StartTime: at(1)},
				observation.Observation{ID: "t1", Kind: observation.KindTool, StartTime: at(2)},
				observation.Observation{ID: "g2", Kind: observation.KindGeneration, StartTime: at(3)},
				observation.Observation{ID: "t2", Kind: observation.KindTool, StartTime: at(4)},
			))
		})

		isGen := func(o *observation.Observation) bool { return o.Kind == observation.KindGeneration }

		It("scans backward excluding the start position", func() {
			Expect(seq.Nearest(2, tracegraph.Backward, isGen).ID).To(Equal("g1"))
			Expect(seq.Nearest(3, tracegraph.Backward, isGen).ID).To(Equal("g2"))
		})

		It("scans forward", func() {
			Expect(seq.Nearest(0, tracegraph.Forward, isGen).ID).To(Equal("g2"))
		})

		It("returns nil when nothing matches", func() {
			Expect(seq.Nearest(0, tracegraph.Backward, isGen)).To(BeNil())
			Expect(seq.Nearest(2, tracegraph.Forward, isGen)).To(BeNil())
		})
	})
})
