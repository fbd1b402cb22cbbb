// Package watch re-runs trace analysis whenever a trace export in a
// directory is created or rewritten.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/papercomputeco/tracelens/pkg/analysis"
)

// DefaultDebounce is how long a file must stay quiet before it is analyzed.
const DefaultDebounce = 200 * time.Millisecond

// Event reports one analysis of a trace export. Err is set, and Result is
// nil, when the file could not be read or decoded.
type Event struct {
	Path   string
	Result *analysis.Result
	Err    error
}

// Callback receives every Event. It runs on the watch loop and should
// return promptly.
type Callback func(Event)

type options struct {
	debounce time.Duration
	initial  bool
}

// Option configures Watch.
type Option func(*options)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithoutInitialScan skips analyzing the exports already present when the
// watch starts.
func WithoutInitialScan() Option {
	return func(o *options) {
		o.initial = false
	}
}

// Watch analyzes the *.json exports in dir, then watches dir and analyzes
// every export again after it changes. It blocks until ctx is cancelled.
func Watch(ctx context.Context, dir string, engine *analysis.Engine, logger *slog.Logger, cb Callback, opts ...Option) error {
	o := &options{debounce: DefaultDebounce, initial: true}
	for _, opt := range opts {
		opt(o)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	logger.Info("watcher: started", slog.String("dir", dir))

	if o.initial {
		existing, err := filepath.Glob(filepath.Join(dir, "*.json"))
		if err != nil {
			return fmt.Errorf("listing trace exports: %w", err)
		}
		slices.Sort(existing)
		for _, path := range existing {
			cb(AnalyzeFile(engine, path))
		}
	}

	ready := make(chan string)
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	schedule := func(path string) {
		if t, ok := timers[path]; ok {
			t.Reset(o.debounce)
			return
		}
		timers[path] = time.AfterFunc(o.debounce, func() {
			select {
			case ready <- path:
			case <-ctx.Done():
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped", slog.String("dir", dir))
			return nil

		case path := <-ready:
			delete(timers, path)
			ev := AnalyzeFile(engine, path)
			if ev.Err != nil {
				logger.Warn("watcher: analysis failed",
					slog.String("path", path),
					slog.String("error", ev.Err.Error()))
			} else {
				logger.Debug("watcher: analyzed",
					slog.String("path", path),
					slog.String("trace_id", ev.Result.TraceID))
			}
			cb(ev)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isTraceExport(ev.Name) {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				if t, ok := timers[ev.Name]; ok {
					t.Stop()
					delete(timers, ev.Name)
				}
				logger.Debug("watcher: export removed", slog.String("path", ev.Name))

			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				schedule(ev.Name)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// AnalyzeFile reads and analyzes one trace export. A trace without an id
// takes the file name, minus its extension, as its id.
func AnalyzeFile(engine *analysis.Engine, path string) Event {
	data, err := os.ReadFile(path)
	if err != nil {
		return Event{Path: path, Err: fmt.Errorf("reading trace export: %w", err)}
	}

	snapshot, err := analysis.DecodeSnapshot(data, traceIDFromPath(path))
	if err != nil {
		return Event{Path: path, Err: err}
	}

	return Event{Path: path, Result: engine.Analyze(snapshot)}
}

func isTraceExport(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, ".json") && !strings.HasPrefix(base, ".")
}

func traceIDFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
