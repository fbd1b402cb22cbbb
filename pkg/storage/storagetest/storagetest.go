// Package storagetest holds the behaviour every storage.Driver must share,
// as ginkgo specs that driver packages include in their suites.
package storagetest

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tracelens/pkg/analysis"
	"github.com/papercomputeco/tracelens/pkg/groundedness"
	"github.com/papercomputeco/tracelens/pkg/observation"
	"github.com/papercomputeco/tracelens/pkg/storage"
	testutils "github.com/papercomputeco/tracelens/pkg/utils/test"
)

// DescribeDriver registers the shared driver specs. newDriver is called
// before each test and the driver is closed after it.
func DescribeDriver(newDriver func(ctx context.Context) storage.Driver) {
	var (
		ctx    context.Context
		driver storage.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver(ctx)
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
		}
	})

	It("stores and retrieves a snapshot", func() {
		snapshot := testutils.SupportSnapshot()
		Expect(driver.Put(ctx, snapshot)).To(Succeed())

		got, err := driver.Get(ctx, testutils.SupportTraceID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Trace.Name).To(Equal("support-agent"))
		Expect(got.Trace.Observations).To(HaveLen(6))
		Expect(got.Artefacts[0].Sensitivity).To(Equal(observation.LevelHigh))
		Expect(got.Metrics).To(Equal(snapshot.Metrics))

		lookup := got.Trace.Observations[3]
		Expect(lookup.ID).To(Equal(testutils.SupportLookup))
		Expect(lookup.RecordedParentID).To(Equal(testutils.SupportTools))
		Expect(lookup.StartTime).To(BeTemporally("==", snapshot.Trace.Observations[3].StartTime))
	})

	It("analyzes a stored snapshot like the original", func() {
		snapshot := testutils.SupportSnapshot()
		Expect(driver.Put(ctx, snapshot)).To(Succeed())

		got, err := driver.Get(ctx, testutils.SupportTraceID)
		Expect(err).NotTo(HaveOccurred())

		engine := analysis.NewEngine()
		Expect(engine.Analyze(got).Parents).To(Equal(engine.Analyze(snapshot).Parents))
	})

	It("returns a NotFoundError for unknown traces", func() {
		_, err := driver.Get(ctx, "missing")
		Expect(storage.IsNotFound(err)).To(BeTrue())

		Expect(storage.IsNotFound(driver.Delete(ctx, "missing"))).To(BeTrue())
		Expect(storage.IsNotFound(driver.AddMetrics(ctx, "missing", nil))).To(BeTrue())
	})

	It("rejects invalid snapshots", func() {
		Expect(driver.Put(ctx, nil)).To(MatchError(storage.ErrNilSnapshot))
		Expect(driver.Put(ctx, &analysis.Snapshot{})).To(MatchError(storage.ErrMissingTraceID))
	})

	It("replaces a snapshot with the same trace id", func() {
		snapshot := testutils.SupportSnapshot()
		Expect(driver.Put(ctx, snapshot)).To(Succeed())

		snapshot.Trace.Name = "renamed"
		snapshot.Trace.Observations = snapshot.Trace.Observations[:2]
		Expect(driver.Put(ctx, snapshot)).To(Succeed())

		summaries, err := driver.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(summaries).To(HaveLen(1))
		Expect(summaries[0].Name).To(Equal("renamed"))
		Expect(summaries[0].Observations).To(Equal(2))
	})

	It("lists summaries", func() {
		Expect(driver.Put(ctx, testutils.SupportSnapshot())).To(Succeed())
		minimal, err := analysis.DecodeSnapshot([]byte(testutils.MinimalTraceJSON), "minimal")
		Expect(err).NotTo(HaveOccurred())
		Expect(driver.Put(ctx, minimal)).To(Succeed())

		summaries, err := driver.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(summaries).To(HaveLen(2))

		byID := map[string]storage.Summary{}
		for _, s := range summaries {
			byID[s.TraceID] = s
		}
		Expect(byID[testutils.SupportTraceID].Metrics).To(Equal(2))
		Expect(byID["minimal"].Observations).To(Equal(2))
		Expect(byID["minimal"].CreatedAt.IsZero()).To(BeFalse())
	})

	It("appends metrics", func() {
		Expect(driver.Put(ctx, testutils.SupportSnapshot())).To(Succeed())
		extra := groundedness.Metric{
			ObservationID: testutils.SupportPlan,
			Metric:        groundedness.MetricValidityWithQuery,
			Subject:       groundedness.SubjectReasoning,
			Entailment:    0.8,
			Label:         groundedness.LabelEntailed,
		}
		Expect(driver.AddMetrics(ctx, testutils.SupportTraceID, []groundedness.Metric{extra})).To(Succeed())

		got, err := driver.Get(ctx, testutils.SupportTraceID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Metrics).To(HaveLen(3))
		Expect(got.Metrics[2]).To(Equal(extra))

		summaries, err := driver.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(summaries[0].Metrics).To(Equal(3))
	})

	It("deletes a snapshot", func() {
		Expect(driver.Put(ctx, testutils.SupportSnapshot())).To(Succeed())
		Expect(driver.Delete(ctx, testutils.SupportTraceID)).To(Succeed())

		_, err := driver.Get(ctx, testutils.SupportTraceID)
		Expect(storage.IsNotFound(err)).To(BeTrue())
	})

	It("hands out copies", func() {
		Expect(driver.Put(ctx, testutils.SupportSnapshot())).To(Succeed())

		got, err := driver.Get(ctx, testutils.SupportTraceID)
		Expect(err).NotTo(HaveOccurred())
		got.Trace.Observations[0].Name = "mutated"

		again, err := driver.Get(ctx, testutils.SupportTraceID)
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Trace.Observations[0].Name).To(Equal("support_agent"))
	})
}
