package observation_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tracelens/pkg/observation"
)

var _ = Describe("Store", func() {
	It("indexes observations by id and keeps the first duplicate", func() {
		store := observation.NewStore(&observation.Trace{
			ID: "trace",
			Observations: []observation.Observation{
				{ID: "a", Name: "first"},
				{ID: ""},
				{ID: "a", Name: "second"},
				{ID: "b"},
			},
		})

		Expect(store.RootID()).To(Equal("trace"))
		Expect(store.Len()).To(Equal(2))
		Expect(store.Get("a").Name).To(Equal("first"))
		Expect(store.Has("b")).To(BeTrue())
		Expect(store.Get("missing")).To(BeNil())
	})

	It("tables recorded and metadata parent candidates", func() {
		store := observation.NewStore(&observation.Trace{
			ID: "trace",
			Observations: []observation.Observation{
				{ID: "a", RecordedParentID: "p", MetadataParentID: "m"},
				{ID: "b", RecordedParentID: "p", MetadataParentID: "p"},
				{ID: "c", MetadataParentID: "m"},
				{ID: "d"},
			},
		})

		Expect(store.ParentCandidates("a")).To(Equal([]string{"p", "m"}))
		Expect(store.ParentCandidates("b")).To(Equal([]string{"p"}))
		Expect(store.ParentCandidates("c")).To(Equal([]string{"m"}))
		Expect(store.ParentCandidates("d")).To(BeEmpty())
	})

	It("tolerates a nil trace", func() {
		store := observation.NewStore(nil)
		Expect(store.Len()).To(Equal(0))
		Expect(store.All()).To(BeEmpty())
	})

	It("lists visible artefact ids without blanks or duplicates", func() {
		obs := observation.Observation{Metadata: map[string]any{
			"visible_data": []any{"art-1", "", "art-2", "art-1", 7},
		}}
		Expect(obs.VisibleArtefactIDs()).To(Equal([]string{"art-1", "art-2"}))
	})
})
