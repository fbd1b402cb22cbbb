package submitcmder_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/charmbracelet/x/ansi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tracelens/api"
	submitcmder "github.com/papercomputeco/tracelens/cmd/tracelens/submit"
	testutils "github.com/papercomputeco/tracelens/pkg/utils/test"
)

var _ = Describe("SubmitAPI", func() {
	var (
		server   *httptest.Server
		received []byte
		status   int
	)

	BeforeEach(func() {
		received = nil
		status = http.StatusCreated

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.Method).To(Equal(http.MethodPost))
			Expect(r.URL.Path).To(Equal("/v1/traces"))

			var err error
			received, err = io.ReadAll(r.Body)
			Expect(err).NotTo(HaveOccurred())

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			if status == http.StatusCreated {
				_ = json.NewEncoder(w).Encode(api.CreateTraceResponse{
					TraceID:      testutils.SupportTraceID,
					Observations: 6,
					Metrics:      2,
					Queued:       true,
				})
				return
			}
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "decoding snapshot: empty document"})
		}))
		DeferCleanup(server.Close)
	})

	It("posts the export and parses the response", func() {
		resp, err := submitcmder.SubmitAPI(context.Background(), server.URL, []byte(testutils.SupportSnapshotJSON))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.TraceID).To(Equal(testutils.SupportTraceID))
		Expect(resp.Observations).To(Equal(6))
		Expect(resp.Queued).To(BeTrue())
		Expect(received).To(MatchJSON(testutils.SupportSnapshotJSON))
	})

	It("surfaces API errors", func() {
		status = http.StatusBadRequest

		_, err := submitcmder.SubmitAPI(context.Background(), server.URL, []byte(" "))
		Expect(err).To(MatchError(ContainSubstring("HTTP 400")))
		Expect(err).To(MatchError(ContainSubstring("empty document")))
	})

	It("rejects invalid targets", func() {
		_, err := submitcmder.SubmitAPI(context.Background(), "://nope", nil)
		Expect(err).To(MatchError(ContainSubstring("invalid API target URL")))
	})

	It("prints the stored trace id with --quiet", func() {
		path := filepath.Join(GinkgoT().TempDir(), "support.json")
		Expect(os.WriteFile(path, []byte(testutils.SupportSnapshotJSON), 0o600)).To(Succeed())

		var out bytes.Buffer
		cmd := submitcmder.NewSubmitCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{path, "--api-target", server.URL, "--quiet"})
		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(Equal(testutils.SupportTraceID + "\n"))
	})

	It("reports progress on stderr and the result on stdout", func() {
		path := filepath.Join(GinkgoT().TempDir(), "support.json")
		Expect(os.WriteFile(path, []byte(testutils.SupportSnapshotJSON), 0o600)).To(Succeed())

		var out, errOut bytes.Buffer
		cmd := submitcmder.NewSubmitCmd()
		cmd.SetOut(&out)
		cmd.SetErr(&errOut)
		cmd.SetArgs([]string{path, "--api-target", server.URL})
		Expect(cmd.Execute()).To(Succeed())

		Expect(ansi.Strip(errOut.String())).To(ContainSubstring("✓ Submitting support.json"))
		Expect(ansi.Strip(out.String())).To(ContainSubstring("Stored " + testutils.SupportTraceID))
		Expect(ansi.Strip(out.String())).To(ContainSubstring("queued for analysis"))
	})
})
