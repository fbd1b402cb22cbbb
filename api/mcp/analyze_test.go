package mcp

import (
	"context"
	"encoding/json"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tracelens/pkg/logger"
	"github.com/papercomputeco/tracelens/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/tracelens/pkg/utils/test"
)

func resultText(res *gomcp.CallToolResult) string {
	Expect(res.Content).To(HaveLen(1))
	text, ok := res.Content[0].(*gomcp.TextContent)
	Expect(ok).To(BeTrue())
	return text.Text
}

var _ = Describe("analyze_trace tool", func() {
	var (
		server *Server
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver := inmemory.NewDriver()
		Expect(driver.Put(ctx, testutils.SupportSnapshot())).To(Succeed())

		var err error
		server, err = NewServer(Config{Driver: driver, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
	})

	It("reports per-observation risk", func() {
		res, out, err := server.handleAnalyzeTrace(ctx, nil, AnalyzeTraceInput{TraceID: testutils.SupportTraceID})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.IsError).To(BeFalse())

		Expect(out.TraceID).To(Equal(testutils.SupportTraceID))
		Expect(out.MaxLeakLevel).To(Equal("high"))
		Expect(out.RootCauseObservationID).To(Equal(testutils.SupportAnswer))
		Expect(out.UserQuestion).To(Equal("How do I reach the account owner?"))
		Expect(out.Observations).To(HaveLen(6))

		answer := out.Observations[5]
		Expect(answer.ParentID).To(Equal(testutils.SupportModel))
		Expect(answer.LeakLevel).To(Equal("high"))
		Expect(answer.LeakSources).To(ContainElements("email_address", testutils.SupportArtefact))
		Expect(answer.Groundedness).To(Equal("CONTRADICTED"))

		Expect(out.Observations[0].LeakSources).NotTo(BeNil())
	})

	It("mirrors the output as JSON text", func() {
		res, out, err := server.handleAnalyzeTrace(ctx, nil, AnalyzeTraceInput{TraceID: testutils.SupportTraceID})
		Expect(err).NotTo(HaveOccurred())

		var decoded map[string]any
		Expect(json.Unmarshal([]byte(resultText(res)), &decoded)).To(Succeed())
		Expect(decoded["trace_id"]).To(Equal(out.TraceID))
		Expect(decoded["observations"]).To(HaveLen(6))
	})

	It("requires a trace id", func() {
		res, _, err := server.handleAnalyzeTrace(ctx, nil, AnalyzeTraceInput{TraceID: "  "})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.IsError).To(BeTrue())
		Expect(resultText(res)).To(ContainSubstring("trace_id is required"))
	})

	It("reports unknown traces as tool errors", func() {
		res, _, err := server.handleAnalyzeTrace(ctx, nil, AnalyzeTraceInput{TraceID: "missing"})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.IsError).To(BeTrue())
		Expect(resultText(res)).To(ContainSubstring("not found"))
	})
})

var _ = Describe("list_traces tool", func() {
	It("lists stored traces", func() {
		ctx := context.Background()
		driver := inmemory.NewDriver()
		Expect(driver.Put(ctx, testutils.SupportSnapshot())).To(Succeed())

		server, err := NewServer(Config{Driver: driver, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())

		res, out, err := server.handleListTraces(ctx, nil, ListTracesInput{})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.IsError).To(BeFalse())
		Expect(out.Count).To(Equal(1))
		Expect(out.Traces[0].TraceID).To(Equal(testutils.SupportTraceID))
	})
})
