package tracegraph_test

import (
	"fmt"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tracelens/pkg/observation"
	"github.com/papercomputeco/tracelens/pkg/tracegraph"
)

func resolve(store *observation.Store) *tracegraph.Resolution {
	seq := tracegraph.Order(store)
	return tracegraph.Resolve(store, seq, tracegraph.BuildToolIndex(seq))
}

var _ = Describe("Resolve", func() {
	It("anchors the first observation at the root regardless of its pointers", func() {
		res := resolve(newStore(
			observation.Observation{ID: "a", Kind: observation.KindTool, Name: "x", RecordedParentID: "b", StartTime: at(0)},
			observation.Observation{ID: "b", Kind: observation.KindSpan, Name: "tools", StartTime: at(1)},
		))

		Expect(res.Parents["a"]).To(Equal("trace"))
		Expect(res.Rules["a"]).To(Equal(tracegraph.RuleFirst))
	})

	Context("a TOOL", func() {
		It("keeps a tool container parent ahead of a requesting generation", func() {
			res := resolve(newStore(
				observation.Observation{ID: "gen", Kind: observation.KindGeneration, Output: requesting("db.query"), StartTime: at(1)},
				observation.Observation{ID: "tools", Kind: observation.KindSpan, Name: "tools", StartTime: at(2)},
				observation.Observation{ID: "call", Kind: observation.KindTool, Name: "db.query", RecordedParentID: "tools", StartTime: at(3)},
			))

			Expect(res.Parents["call"]).To(Equal("tools"))
			Expect(res.Rules["call"]).To(Equal(tracegraph.RuleToolContainerParent))
			Expect(res.Parents["tools"]).To(Equal("gen"))
			Expect(res.Rules["tools"]).To(Equal(tracegraph.RuleContainerRequestingGen))
		})

		It("anchors under the requesting generation when it has no parent", func() {
			res := resolve(newStore(
				observation.Observation{ID: "gen", Kind: observation.KindGeneration, Output: requesting("db.query"), StartTime: at(1)},
				observation.Observation{ID: "tools", Kind: observation.KindSpan, Name: "tools", StartTime: at(2)},
				observation.Observation{ID: "call", Kind: observation.KindTool, Name: "db.query", StartTime: at(3)},
			))

			Expect(res.Parents["call"]).To(Equal("gen"))
			Expect(res.Rules["call"]).To(Equal(tracegraph.RuleToolRequestingGen))
		})

		It("prefers the requesting generation over a nearer one", func() {
			res := resolve(newStore(
				observation.Observation{ID: "g1", Kind: observation.KindGeneration, Output: requesting("search"), StartTime: at(1)},
				observation.Observation{ID: "g2", Kind: observation.KindGeneration, Output: "thinking", StartTime: at(2)},
				observation.Observation{ID: "call", Kind: observation.KindTool, Name: "search", StartTime: at(3)},
			))

			Expect(res.Parents["call"]).To(Equal("g1"))
		})

		It("keeps a generation parent when no generation requested it", func() {
			res := resolve(newStore(
				observation.Observation{ID: "g1", Kind: observation.KindGeneration, StartTime: at(1)},
				observation.Observation{ID: "g2", Kind: observation.KindGeneration, StartTime: at(2)},
				observation.Observation{ID: "call", Kind: observation.KindTool, Name: "search", RecordedParentID: "g1", StartTime: at(3)},
			))

			Expect(res.Parents["call"]).To(Equal("g1"))
			Expect(res.Rules["call"]).To(Equal(tracegraph.RuleToolGenerationParent))
		})

		It("falls back to the nearest preceding generation", func() {
			res := resolve(newStore(
				observation.Observation{ID: "g1", Kind: observation.KindGeneration, StartTime: at(1)},
				observation.Observation{ID: "span", Kind: observation.KindSpan, Name: "dispatcher", StartTime: at(2)},
				observation.Observation{ID: "call", Kind: observation.KindTool, Name: "search", RecordedParentID: "span", StartTime: at(3)},
			))

			Expect(res.Parents["call"]).To(Equal("g1"))
			Expect(res.Rules["call"]).To(Equal(tracegraph.RuleToolPrecedingGeneration))
		})

		It("falls back to the nearest preceding non-tool", func() {
			res := resolve(newStore(
				observation.Observation{ID: "span", Kind: observation.KindSpan, Name: "agent", StartTime: at(1)},
				observation.Observation{ID: "t1", Kind: observation.KindTool, Name: "a", StartTime: at(2)},
				observation.Observation{ID: "t2", Kind: observation.KindTool, Name: "b", StartTime: at(3)},
			))

			Expect(res.Parents["t2"]).To(Equal("span"))
			Expect(res.Rules["t2"]).To(Equal(tracegraph.RuleToolPrecedingNonTool))
		})

		It("uses the default rule when only tools precede it", func() {
			res := resolve(newStore(
				observation.Observation{ID: "t1", Kind: observation.KindTool, Name: "a", StartTime: at(1)},
				observation.Observation{ID: "t2", Kind: observation.KindTool, Name: "b", StartTime: at(2)},
			))

			Expect(res.Parents["t2"]).To(Equal("t1"))
			Expect(res.Rules["t2"]).To(Equal(tracegraph.RulePrevious))
		})
	})

	Context("a tool container", func() {
		It("anchors under the nearest generation when no tool points at it", func() {
			res := resolve(newStore(
				observation.Observation{ID: "g1", Kind: observation.KindGeneration, StartTime: at(1)},
				observation.Observation{ID: "other", Kind: observation.KindSpan, StartTime: at(2)},
				observation.Observation{ID: "tools", Kind: observation.KindChain, Name: "tools", RecordedParentID: "other", StartTime: at(3)},
			))

			Expect(res.Parents["tools"]).To(Equal("g1"))
			Expect(res.Rules["tools"]).To(Equal(tracegraph.RuleContainerPrecedingGeneration))
		})

		It("uses the default rule when no generation precedes it", func() {
			res := resolve(newStore(
				observation.Observation{ID: "root-span", Kind: observation.KindSpan, StartTime: at(1)},
				observation.Observation{ID: "tools", Kind: observation.KindSpan, Name: "tools", RecordedParentID: "root-span", StartTime: at(2)},
			))

			Expect(res.Parents["tools"]).To(Equal("root-span"))
			Expect(res.Rules["tools"]).To(Equal(tracegraph.RuleRecordedParent))
		})
	})

	Context("a model step", func() {
		It("keeps a TOOL parent", func() {
			res := resolve(newStore(
				observation.Observation{ID: "g", Kind: observation.KindGeneration, StartTime: at(1)},
				observation.Observation{ID: "t1", Kind: observation.KindTool, Name: "a", StartTime: at(2)},
				observation.Observation{ID: "t2", Kind: observation.KindTool, Name: "b", StartTime: at(3)},
				observation.Observation{ID: "step", Kind: observation.KindChain, Name: "call_model", MetadataParentID: "t1", StartTime: at(4)},
			))

			Expect(res.Parents["step"]).To(Equal("t1"))
			Expect(res.Rules["step"]).To(Equal(tracegraph.RuleModelStepToolParent))
		})

		It("anchors under the nearest preceding tool", func() {
			res := resolve(newStore(
				observation.Observation{ID: "g", Kind: observation.KindGeneration, StartTime: at(1)},
				observation.Observation{ID: "t1", Kind: observation.KindTool, Name: "a", StartTime: at(2)},
				observation.Observation{ID: "step", Kind: observation.KindChain, Name: "call_model", RecordedParentID: "g", StartTime: at(3)},
			))

			Expect(res.Parents["step"]).To(Equal("t1"))
			Expect(res.Rules["step"]).To(Equal(tracegraph.RuleModelStepPrecedingTool))
		})

		It("anchors under a preceding container, then a generation", func() {
			withContainer := resolve(newStore(
				observation.Observation{ID: "g", Kind: observation.KindGeneration, StartTime: at(1)},
				observation.Observation{ID: "tools", Kind: observation.KindSpan, Name: "tools", StartTime: at(2)},
				observation.Observation{ID: "step", Kind: observation.KindChain, Name: "model", StartTime: at(3)},
			))
			Expect(withContainer.Parents["step"]).To(Equal("tools"))
			Expect(withContainer.Rules["step"]).To(Equal(tracegraph.RuleModelStepPrecedingContainer))

			withGeneration := resolve(newStore(
				observation.Observation{ID: "g", Kind: observation.KindGeneration, StartTime: at(1)},
				observation.Observation{ID: "step", Kind: observation.KindChain, Name: "model", StartTime: at(2)},
			))
			Expect(withGeneration.Parents["step"]).To(Equal("g"))
			Expect(withGeneration.Rules["step"]).To(Equal(tracegraph.RuleModelStepPrecedingGeneration))
		})
	})

	Context("any other observation", func() {
		It("keeps a known recorded parent", func() {
			res := resolve(newStore(
				observation.Observation{ID: "a", StartTime: at(1)},
				observation.Observation{ID: "b", StartTime: at(2)},
				observation.Observation{ID: "c", RecordedParentID: "a", StartTime: at(3)},
			))
			Expect(res.Parents["c"]).To(Equal("a"))
		})

		It("accepts the trace root as a parent", func() {
			res := resolve(newStore(
				observation.Observation{ID: "a", StartTime: at(1)},
				observation.Observation{ID: "b", RecordedParentID: "trace", StartTime: at(2)},
			))
			Expect(res.Parents["b"]).To(Equal("trace"))
			Expect(res.Rules["b"]).To(Equal(tracegraph.RuleRecordedParent))
		})

		It("falls back to the metadata parent when the recorded one dangles", func() {
			res := resolve(newStore(
				observation.Observation{ID: "a", StartTime: at(1)},
				observation.Observation{ID: "b", StartTime: at(2)},
				observation.Observation{ID: "c", RecordedParentID: "ghost", MetadataParentID: "a", StartTime: at(3)},
			))
			Expect(res.Parents["c"]).To(Equal("a"))
			Expect(res.Rules["c"]).To(Equal(tracegraph.RuleMetadataParent))
		})

		It("falls back to the previous observation", func() {
			res := resolve(newStore(
				observation.Observation{ID: "a", StartTime: at(1)},
				observation.Observation{ID: "b", StartTime: at(2)},
				observation.Observation{ID: "c", RecordedParentID: "ghost", MetadataParentID: "c", StartTime: at(3)},
			))
			Expect(res.Parents["c"]).To(Equal("b"))
			Expect(res.Rules["c"]).To(Equal(tracegraph.RulePrevious))
		})
	})

	It("breaks cycles formed by kept parent pointers", func() {
		res := resolve(newStore(
			observation.Observation{ID: "a", StartTime: at(1)},
			observation.Observation{ID: "b", RecordedParentID: "c", StartTime: at(2)},
			observation.Observation{ID: "c", RecordedParentID: "b", StartTime: at(3)},
		))

		Expect(res.Parents["b"]).To(Equal("a"))
		Expect(res.Rules["b"]).To(Equal(tracegraph.RuleCycleBreak))
		Expect(res.Parents["c"]).To(Equal("b"))
	})

	It("reaches the root from every observation of arbitrary traces", func() {
		rng := rand.New(rand.NewSource(42))
		kinds := []observation.Kind{
			observation.KindSpan, observation.KindTool, observation.KindGeneration,
			observation.KindAgent, observation.KindChain, observation.KindOther,
		}
		names := []string{"tools", "call_model", "db.query", "search", "agent", ""}

		for round := 0; round < 200; round++ {
			n := 1 + rng.Intn(25)
			observations := make([]observation.Observation, n)
			for i := range observations {
				observations[i] = observation.Observation{
					ID:        fmt.Sprintf("o%d", i),
					Kind:      kinds[rng.Intn(len(kinds))],
					Name:      names[rng.Intn(len(names))],
					StartTime: at(rng.Intn(10)),
				}
				if rng.Intn(2) == 0 {
					observations[i].RecordedParentID = fmt.Sprintf("o%d", rng.Intn(n+2))
				}
				if rng.Intn(3) == 0 {
					observations[i].MetadataParentID = fmt.Sprintf("o%d", rng.Intn(n+2))
				}
				if observations[i].Kind == observation.KindGeneration {
					observations[i].Output = requesting(names[rng.Intn(len(names))])
				}
			}

			store := newStore(observations...)
			res := resolve(store)
			Expect(res.Parents).To(HaveLen(n))

			for id := range res.Parents {
				current, steps := id, 0
				for current != "trace" {
					parent, ok := res.Parents[current]
					Expect(ok).To(BeTrue(), "parent %q of %q is unknown", current, id)
					current = parent
					steps++
					Expect(steps).To(BeNumerically("<=", n), "chain from %q does not terminate", id)
				}
			}

			Expect(resolve(store).Parents).To(Equal(res.Parents))
		}
	})
})
