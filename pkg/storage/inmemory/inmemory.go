// Package inmemory provides a map-backed storage driver.
package inmemory

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/papercomputeco/tracelens/pkg/analysis"
	"github.com/papercomputeco/tracelens/pkg/groundedness"
	"github.com/papercomputeco/tracelens/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu guards entries
	mu sync.RWMutex

	// entries holds encoded snapshots keyed by trace id
	entries map[string]*entry

	// now is the clock used for timestamps
	now func() time.Time
}

type entry struct {
	body      []byte
	summary   storage.Summary
	createdAt time.Time
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Put stores a snapshot, replacing any previous one with the same trace id.
func (d *Driver) Put(_ context.Context, snapshot *analysis.Snapshot) error {
	if err := storage.Validate(snapshot); err != nil {
		return err
	}

	body, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now().UTC()
	createdAt := now
	if prev, ok := d.entries[snapshot.Trace.ID]; ok {
		createdAt = prev.createdAt
	}

	d.entries[snapshot.Trace.ID] = &entry{
		body:      body,
		summary:   storage.Summarize(snapshot, createdAt, now),
		createdAt: createdAt,
	}
	return nil
}

// Get retrieves a copy of a snapshot by trace id.
func (d *Driver) Get(_ context.Context, traceID string) (*analysis.Snapshot, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.entries[traceID]
	if !ok {
		return nil, storage.NotFoundError{ID: traceID}
	}
	return decode(e.body)
}

// List returns all snapshot summaries, most recently updated first.
func (d *Driver) List(_ context.Context) ([]storage.Summary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]storage.Summary, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, e.summary)
	}

	slices.SortFunc(out, func(a, b storage.Summary) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.TraceID, b.TraceID)
	})
	return out, nil
}

// AddMetrics appends metrics to a stored snapshot.
func (d *Driver) AddMetrics(_ context.Context, traceID string, metrics []groundedness.Metric) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entries[traceID]
	if !ok {
		return storage.NotFoundError{ID: traceID}
	}

	snapshot, err := decode(e.body)
	if err != nil {
		return err
	}
	snapshot.Metrics = append(snapshot.Metrics, metrics...)

	body, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	e.body = body
	e.summary = storage.Summarize(snapshot, e.createdAt, d.now().UTC())
	return nil
}

// Delete removes a snapshot.
func (d *Driver) Delete(_ context.Context, traceID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.entries[traceID]; !ok {
		return storage.NotFoundError{ID: traceID}
	}
	delete(d.entries, traceID)
	return nil
}

// Count returns the number of stored snapshots.
func (d *Driver) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}

func decode(body []byte) (*analysis.Snapshot, error) {
	var s analysis.Snapshot
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &s, nil
}
