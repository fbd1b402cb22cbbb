package worker

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tracelens/pkg/analysis"
	"github.com/papercomputeco/tracelens/pkg/eventstream"
	"github.com/papercomputeco/tracelens/pkg/logger"
	"github.com/papercomputeco/tracelens/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/tracelens/pkg/utils/test"
)

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.AnalysisCompletedEvent
	err    error
}

func (r *recordingPublisher) PublishAnalysis(_ context.Context, event *eventstream.AnalysisCompletedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) Events() []*eventstream.AnalysisCompletedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*eventstream.AnalysisCompletedEvent(nil), r.events...)
}

var _ = Describe("Worker Pool", func() {
	var (
		driver    *inmemory.Driver
		publisher *recordingPublisher
		ctx       context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
		publisher = &recordingPublisher{}
		Expect(driver.Put(ctx, testutils.SupportSnapshot())).To(Succeed())
	})

	newPool := func(c *Config) *Pool {
		c.Driver = driver
		c.Publisher = publisher
		wp, err := NewPool(c)
		Expect(err).NotTo(HaveOccurred())
		return wp
	}

	Describe("NewPool", func() {
		It("requires a driver", func() {
			_, err := NewPool(&Config{})
			Expect(err).To(MatchError(ErrNoDriver))
		})

		It("applies defaults", func() {
			c := &Config{}
			wp := newPool(c)
			defer wp.Close()

			Expect(c.NumWorkers).To(Equal(defaultNumWorkers))
			Expect(c.QueueSize).To(Equal(defaultJobQueueSize))
			Expect(c.Engine).NotTo(BeNil())
			Expect(c.Logger).NotTo(BeNil())
		})
	})

	Describe("Enqueue", func() {
		It("returns true when the queue has capacity", func() {
			wp := newPool(&Config{})
			Expect(wp.Enqueue(Job{TraceID: testutils.SupportTraceID})).To(BeTrue())
			wp.Close()
		})

		It("drops jobs when the queue is full", func() {
			// Built by hand so no worker drains the queue.
			wp := &Pool{
				config: &Config{Driver: driver},
				queue:  make(chan Job, 1),
				logger: logger.Nop(),
			}
			Expect(wp.Enqueue(Job{TraceID: "a"})).To(BeTrue())
			Expect(wp.Enqueue(Job{TraceID: "b"})).To(BeFalse())
		})
	})

	Describe("processing", func() {
		It("publishes one event per analyzed trace", func() {
			var (
				mu      sync.Mutex
				results []*analysis.Result
			)
			wp := newPool(&Config{
				OnResult: func(r *analysis.Result) {
					mu.Lock()
					defer mu.Unlock()
					results = append(results, r)
				},
			})

			wp.Enqueue(Job{TraceID: testutils.SupportTraceID, Reason: "ingest"})
			wp.Close()

			events := publisher.Events()
			Expect(events).To(HaveLen(1))
			Expect(events[0].TraceID).To(Equal(testutils.SupportTraceID))
			Expect(events[0].MaxLeakLevel).To(Equal("high"))
			Expect(events[0].RootCauseObservationID).To(Equal(testutils.SupportAnswer))

			Expect(results).To(HaveLen(1))
			Expect(results[0].Parents[testutils.SupportLookup]).To(Equal(testutils.SupportTools))
		})

		It("skips traces that are not stored", func() {
			wp := newPool(&Config{})
			wp.Enqueue(Job{TraceID: "missing"})
			wp.Close()

			Expect(publisher.Events()).To(BeEmpty())
		})

		It("keeps working when publishing fails", func() {
			publisher.err = errors.New("stream down")
			wp := newPool(&Config{NumWorkers: 1})
			wp.Enqueue(Job{TraceID: testutils.SupportTraceID})
			wp.Enqueue(Job{TraceID: testutils.SupportTraceID})
			wp.Close()

			Expect(publisher.Events()).To(HaveLen(2))
		})
	})

	It("can be closed twice", func() {
		wp := newPool(&Config{})
		wp.Close()
		Expect(wp.Close).NotTo(Panic())
	})
})
