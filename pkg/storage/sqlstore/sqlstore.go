// Package sqlstore implements storage.Driver on top of database/sql. It is
// shared by the sqlite and postgres drivers, which differ only in their
// Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/tracelens/pkg/analysis"
	"github.com/papercomputeco/tracelens/pkg/groundedness"
	"github.com/papercomputeco/tracelens/pkg/storage"
)

// Dialect captures the SQL differences between backends.
type Dialect struct {
	// Name identifies the dialect in errors.
	Name string

	// Numbered selects $1, $2, ... placeholders instead of ?.
	Numbered bool

	// RowLock is appended to a SELECT that is followed by an UPDATE of the
	// same row within a transaction.
	RowLock string
}

var (
	SQLite   = Dialect{Name: "sqlite"}
	Postgres = Dialect{Name: "postgres", Numbered: true, RowLock: " FOR UPDATE"}
)

const schema = `CREATE TABLE IF NOT EXISTS snapshots (
	trace_id          TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	observation_count INTEGER NOT NULL,
	metric_count      INTEGER NOT NULL,
	body              TEXT NOT NULL,
	created_at        BIGINT NOT NULL,
	updated_at        BIGINT NOT NULL
)`

const summaryColumns = `trace_id, name, observation_count, metric_count, created_at, updated_at`

// Store implements storage.Driver on a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// New wraps an open database and creates the schema if needed. The Store
// owns db and closes it on Close.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("creating %s schema: %w", dialect.Name, err)
	}

	return &Store{db: db, dialect: dialect, now: time.Now}, nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Put stores a snapshot, replacing any previous one with the same trace id.
// The creation time of a replaced snapshot is kept.
func (s *Store) Put(ctx context.Context, snapshot *analysis.Snapshot) error {
	if err := storage.Validate(snapshot); err != nil {
		return err
	}

	body, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	now := s.now().UnixNano()
	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO snapshots
		(trace_id, name, observation_count, metric_count, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (trace_id) DO UPDATE SET
			name = excluded.name,
			observation_count = excluded.observation_count,
			metric_count = excluded.metric_count,
			body = excluded.body,
			updated_at = excluded.updated_at`),
		snapshot.Trace.ID,
		snapshot.Trace.Name,
		len(snapshot.Trace.Observations),
		len(snapshot.Metrics),
		string(body),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("storing snapshot %s: %w", snapshot.Trace.ID, err)
	}
	return nil
}

// Get retrieves a snapshot by trace id.
func (s *Store) Get(ctx context.Context, traceID string) (*analysis.Snapshot, error) {
	var body string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT body FROM snapshots WHERE trace_id = ?`), traceID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{ID: traceID}
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot %s: %w", traceID, err)
	}

	return decode(body)
}

// List returns all snapshot summaries, most recently updated first.
func (s *Store) List(ctx context.Context) ([]storage.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+summaryColumns+` FROM snapshots ORDER BY updated_at DESC, trace_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	out := []storage.Summary{}
	for rows.Next() {
		var (
			sum                  storage.Summary
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&sum.TraceID, &sum.Name, &sum.Observations, &sum.Metrics, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot summary: %w", err)
		}
		sum.CreatedAt = time.Unix(0, createdAt).UTC()
		sum.UpdatedAt = time.Unix(0, updatedAt).UTC()
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	return out, nil
}

// AddMetrics appends metrics to a stored snapshot inside a transaction.
func (s *Store) AddMetrics(ctx context.Context, traceID string, metrics []groundedness.Metric) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var body string
	err = tx.QueryRowContext(ctx, s.rebind(`SELECT body FROM snapshots WHERE trace_id = ?`+s.dialect.RowLock), traceID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.NotFoundError{ID: traceID}
	}
	if err != nil {
		return fmt.Errorf("loading snapshot %s: %w", traceID, err)
	}

	snapshot, err := decode(body)
	if err != nil {
		return err
	}
	snapshot.Metrics = append(snapshot.Metrics, metrics...)

	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	_, err = tx.ExecContext(ctx, s.rebind(`UPDATE snapshots SET body = ?, metric_count = ?, updated_at = ? WHERE trace_id = ?`),
		string(encoded), len(snapshot.Metrics), s.now().UnixNano(), traceID)
	if err != nil {
		return fmt.Errorf("updating snapshot %s: %w", traceID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing metrics for %s: %w", traceID, err)
	}
	return nil
}

// Delete removes a snapshot.
func (s *Store) Delete(ctx context.Context, traceID string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM snapshots WHERE trace_id = ?`), traceID)
	if err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", traceID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", traceID, err)
	}
	if n == 0 {
		return storage.NotFoundError{ID: traceID}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders for dialects with numbered placeholders.
// Queries never contain a literal question mark.
func (s *Store) rebind(query string) string {
	if !s.dialect.Numbered {
		return query
	}

	var (
		b strings.Builder
		n int
	)
	for _, r := range query {
		if r != '?' {
			b.WriteRune(r)
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

func decode(body string) (*analysis.Snapshot, error) {
	var snapshot analysis.Snapshot
	if err := json.Unmarshal([]byte(body), &snapshot); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &snapshot, nil
}
