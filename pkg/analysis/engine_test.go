package analysis_test

import (
	"bytes"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tracelens/pkg/analysis"
	"github.com/papercomputeco/tracelens/pkg/failure"
	"github.com/papercomputeco/tracelens/pkg/groundedness"
	"github.com/papercomputeco/tracelens/pkg/leak"
	"github.com/papercomputeco/tracelens/pkg/logger"
	"github.com/papercomputeco/tracelens/pkg/observation"
	"github.com/papercomputeco/tracelens/pkg/tracegraph"
	testutils "github.com/papercomputeco/tracelens/pkg/utils/test"
)

var _ = Describe("Engine", func() {
	var (
		engine *analysis.Engine
		result *analysis.Result
	)

	BeforeEach(func() {
		engine = analysis.NewEngine()
		result = engine.Analyze(testutils.SupportSnapshot())
	})

	It("orders observations and re-anchors the tool dispatcher", func() {
		Expect(result.TraceID).To(Equal(testutils.SupportTraceID))
		Expect(result.Order).To(Equal([]string{
			testutils.SupportAgent, testutils.SupportPlan, testutils.SupportTools,
			testutils.SupportLookup, testutils.SupportModel, testutils.SupportAnswer,
		}))

		Expect(result.Parents).To(Equal(tracegraph.ParentMap{
			testutils.SupportAgent:  testutils.SupportTraceID,
			testutils.SupportPlan:   testutils.SupportAgent,
			testutils.SupportTools:  testutils.SupportPlan,
			testutils.SupportLookup: testutils.SupportTools,
			testutils.SupportModel:  testutils.SupportLookup,
			testutils.SupportAnswer: testutils.SupportModel,
		}))
		Expect(result.Depths[testutils.SupportAnswer]).To(Equal(6))
	})

	It("flags the leaking answer and escalates on the visible artefact", func() {
		Expect(result.Leaks[testutils.SupportAnswer]).To(Equal(leak.Detection{
			Level:   observation.LevelHigh,
			Sources: []string{leak.SourceEmailAddress, testutils.SupportArtefact},
		}))
		Expect(result.Leaks[testutils.SupportLookup].Level).To(Equal(observation.LevelNone))
		Expect(result.Leaking()).To(Equal([]string{testutils.SupportAnswer}))
		Expect(result.MaxLeak()).To(Equal(observation.LevelHigh))
	})

	It("selects the contradicted metric and root cause", func() {
		dominant := result.Groundedness[testutils.SupportAnswer]
		Expect(dominant.Label).To(Equal(groundedness.LabelContradicted))
		Expect(dominant.Subject).To(Equal(groundedness.SubjectReasoning))
		Expect(result.Contradicted()).To(Equal([]string{testutils.SupportAnswer}))
		Expect(result.RootCauseObservationID).To(Equal(testutils.SupportAnswer))
	})

	It("extracts the narrative", func() {
		Expect(result.Narrative.UserQuestion).To(Equal("How do I reach the account owner?"))
		Expect(result.Narrative.PlanningTools).To(Equal([]string{"lookup_customer"}))
		Expect(result.Narrative.ToolsExecuted).To(HaveLen(1))
		Expect(result.Narrative.ToolsExecuted[0].Summary).To(Equal("owner: Jane Doe"))
		Expect(result.Narrative.FinalAnswer).To(Equal("You can email Jane at jane@acme.example."))
	})

	It("is idempotent", func() {
		again := engine.Analyze(testutils.SupportSnapshot())
		Expect(again.Parents).To(Equal(result.Parents))
		Expect(again.Depths).To(Equal(result.Depths))
		Expect(again.Leaks).To(Equal(result.Leaks))
		Expect(again.Groundedness).To(Equal(result.Groundedness))

		first, err := json.Marshal(result)
		Expect(err).NotTo(HaveOccurred())
		second, err := json.Marshal(again)
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(MatchJSON(first))
	})

	It("ignores metrics for observations outside the trace", func() {
		snapshot := testutils.SupportSnapshot()
		snapshot.Metrics = append(snapshot.Metrics, groundedness.Metric{
			ObservationID: "foreign",
			Metric:        groundedness.MetricGroundednessWithEvidence,
			Label:         groundedness.LabelContradicted,
		})
		snapshot.Metrics = append([]groundedness.Metric{snapshot.Metrics[2]}, snapshot.Metrics[:2]...)

		r := engine.Analyze(snapshot)
		Expect(r.Groundedness).NotTo(HaveKey("foreign"))
		Expect(r.RootCauseObservationID).To(Equal(testutils.SupportAnswer))
	})

	It("handles an empty trace", func() {
		r := engine.Analyze(&analysis.Snapshot{Trace: observation.Trace{ID: "empty"}})
		Expect(r.Order).To(BeEmpty())
		Expect(r.Parents).To(BeEmpty())
		Expect(r.Graph.Root.ID).To(Equal("empty"))
		Expect(r.MaxLeak()).To(Equal(observation.LevelNone))
		Expect(r.Failures.HasFailure).To(BeFalse())
	})

	It("reports the leaking answer as a failure", func() {
		Expect(result.Failures.TraceID).To(Equal(testutils.SupportTraceID))
		Expect(result.Failures.HasFailure).To(BeTrue())
		Expect(result.Failures.Codes()).To(ContainElement(failure.CodeDataLeakage))
		Expect(result.Failures.Signals.Observations).To(Equal(6))
		Expect(result.Failures.Signals.Artefacts).To(Equal(1))
		Expect(result.Failures.Signals.LeakageFailures).To(Equal(len(result.Leaking())))
	})

	It("passes failure options to the detector", func() {
		snapshot := &analysis.Snapshot{Trace: observation.Trace{ID: "t", Observations: []observation.Observation{
			{ID: "a", Kind: observation.KindTool, Name: "search", Input: "q"},
			{ID: "b", Kind: observation.KindTool, Name: "search", Input: "q"},
		}}}

		Expect(engine.Analyze(snapshot).Failures.Codes()).NotTo(ContainElement(failure.CodeToolLoop))

		looser := analysis.NewEngine(analysis.WithFailureOptions(failure.WithLoopThreshold(2)))
		Expect(looser.Analyze(snapshot).Failures.Codes()).To(ContainElement(failure.CodeToolLoop))
	})

	It("honors configured late-stage names", func() {
		snapshot := &analysis.Snapshot{Trace: observation.Trace{ID: "t", Observations: []observation.Observation{
			{ID: "s", Kind: observation.KindSpan, Name: "compose_reply", Output: "mail jane@example.com"},
		}}}

		Expect(engine.Analyze(snapshot).Leaks["s"].Level).To(Equal(observation.LevelNone))

		custom := analysis.NewEngine(analysis.WithLateStageNames([]string{"reply"}))
		Expect(custom.Analyze(snapshot).Leaks["s"].Level).To(Equal(observation.LevelMedium))
	})

	It("logs a debug summary", func() {
		var buf bytes.Buffer
		verbose := analysis.NewEngine(analysis.WithLogger(logger.New(logger.WithWriter(&buf), logger.WithDebug(true))))
		verbose.Analyze(testutils.SupportSnapshot())

		Expect(buf.String()).To(ContainSubstring("analyzed trace"))
		Expect(buf.String()).To(ContainSubstring("tool.container_parent=1"))
	})

	It("plans groundedness jobs", func() {
		jobs := engine.PlanJobs(testutils.SupportSnapshot())
		Expect(jobs).NotTo(BeEmpty())
		Expect(jobs[0].ObservationID).To(Equal(testutils.SupportPlan))
		Expect(jobs[0].Metric).To(Equal(groundedness.MetricValidityWithQuery))
	})
})
