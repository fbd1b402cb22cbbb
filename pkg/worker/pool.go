// Package worker provides an asynchronous worker pool that analyzes stored
// trace snapshots and publishes an analysis event for each one.
//
// The pool decouples analysis from the API's HTTP hot path: ingesting a
// trace only stores it and enqueues its id.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/tracelens/pkg/analysis"
	"github.com/papercomputeco/tracelens/pkg/eventstream"
	"github.com/papercomputeco/tracelens/pkg/eventstream/nop"
	"github.com/papercomputeco/tracelens/pkg/logger"
	"github.com/papercomputeco/tracelens/pkg/storage"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// ErrNoDriver is returned by NewPool when no storage driver is configured.
var ErrNoDriver = errors.New("worker: storage driver is required")

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	// TraceID is the id of the stored snapshot to analyze.
	TraceID string

	// Reason says what triggered the job, e.g. "ingest" or "metrics".
	Reason string
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend snapshots are loaded from.
	Driver storage.Driver

	// Engine runs the analysis. Defaults to analysis.NewEngine().
	Engine *analysis.Engine

	// Publisher receives one event per completed analysis. Defaults to a
	// no-op publisher.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided slog logger
	Logger *slog.Logger

	// OnResult, if set, is called with each completed analysis.
	OnResult func(*analysis.Result)
}

// Pool processes analysis jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	closeOnce sync.Once
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, ErrNoDriver
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Engine == nil {
		c.Engine = analysis.NewEngine()
	}
	if c.Publisher == nil {
		c.Publisher = nop.NewPublisher()
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"trace_id", job.TraceID,
			"reason", job.Reason,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"trace_id", job.TraceID,
			"reason", job.Reason,
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the API server has stopped.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.queue)
	})
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("analysis worker stopped", "worker_id", id)
}

// processJob loads, analyzes and publishes one snapshot. Failures are logged
// and the job is dropped.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	result, err := p.analyze(ctx, job.TraceID)
	if err != nil {
		p.logger.Error("async analysis failed",
			"trace_id", job.TraceID,
			"error", err,
		)
		return
	}

	p.logger.Info("trace analyzed",
		"trace_id", result.TraceID,
		"observations", len(result.Order),
		"max_leak", result.MaxLeak().String(),
		"root_cause", result.RootCauseObservationID,
	)

	if p.config.OnResult != nil {
		p.config.OnResult(result)
	}

	event := eventstream.NewAnalysisCompletedEvent(result, time.Now())
	if err := p.config.Publisher.PublishAnalysis(ctx, event); err != nil {
		p.logger.Warn("failed to publish analysis event",
			"trace_id", result.TraceID,
			"event_id", event.EventID,
			"error", err,
		)
	}
}

func (p *Pool) analyze(ctx context.Context, traceID string) (*analysis.Result, error) {
	snapshot, err := p.config.Driver.Get(ctx, traceID)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	return p.config.Engine.Analyze(snapshot), nil
}
