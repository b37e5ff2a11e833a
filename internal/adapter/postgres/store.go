// Package postgres persists the latest computed metrics of each region so
// they can be served without replaying the output topic.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/couchcryptid/region-metrics-etl/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS region_latest_metrics (
	fips         TEXT PRIMARY KEY,
	level        TEXT NOT NULL,
	state        TEXT NOT NULL DEFAULT '',
	last_date    DATE,
	computed_at  TIMESTAMPTZ NOT NULL,
	run_id       TEXT NOT NULL,
	snapshot     JSONB,
	known_issues JSONB NOT NULL DEFAULT '[]',
	suppressed   TEXT[] NOT NULL DEFAULT '{}'
)`

// A row is only replaced by a result computed at the same time or later, so
// redelivered messages cannot roll a region back.
const upsertLatest = `
INSERT INTO region_latest_metrics
	(fips, level, state, last_date, computed_at, run_id, snapshot, known_issues, suppressed)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (fips) DO UPDATE SET
	level        = EXCLUDED.level,
	state        = EXCLUDED.state,
	last_date    = EXCLUDED.last_date,
	computed_at  = EXCLUDED.computed_at,
	run_id       = EXCLUDED.run_id,
	snapshot     = EXCLUDED.snapshot,
	known_issues = EXCLUDED.known_issues,
	suppressed   = EXCLUDED.suppressed
WHERE region_latest_metrics.computed_at <= EXCLUDED.computed_at`

const selectLatest = `
SELECT fips, level, state, computed_at, run_id, snapshot, known_issues, suppressed
FROM region_latest_metrics
WHERE fips = $1`

// Store reads and writes the region_latest_metrics table.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to the database at dsn and verifies the connection.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return New(db, logger), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// EnsureSchema creates the table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// LoadBatch upserts the latest metrics of every region in results within a
// single transaction.
func (s *Store) LoadBatch(ctx context.Context, results []domain.RegionMetrics) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertLatest)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range results {
		args, err := upsertArgs(results[i])
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("upsert region %s: %w", results[i].Region.FIPS, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug("stored latest metrics", "count", len(results))
	return nil
}

// Latest returns the stored snapshot of fips. The metrics frame is not
// persisted and is left empty. Returns domain.ErrRegionNotFound when the
// region has never been stored.
func (s *Store) Latest(ctx context.Context, fips string) (domain.RegionMetrics, error) {
	var (
		out         domain.RegionMetrics
		level       string
		snapshot    []byte
		knownIssues []byte
		suppressed  []string
	)
	err := s.db.QueryRowContext(ctx, selectLatest, fips).Scan(
		&out.Region.FIPS,
		&level,
		&out.Region.State,
		&out.ComputedAt,
		&out.RunID,
		&snapshot,
		&knownIssues,
		pq.Array(&suppressed),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RegionMetrics{}, domain.ErrRegionNotFound
	}
	if err != nil {
		return domain.RegionMetrics{}, fmt.Errorf("query latest %s: %w", fips, err)
	}
	out.Region.Level = domain.Level(level)
	out.ComputedAt = out.ComputedAt.UTC()

	if snapshot != nil {
		out.Latest = &domain.Snapshot{}
		if err := json.Unmarshal(snapshot, out.Latest); err != nil {
			return domain.RegionMetrics{}, fmt.Errorf("decode snapshot %s: %w", fips, err)
		}
		for _, name := range suppressed {
			m, err := domain.ParseMetricField(name)
			if err != nil {
				return domain.RegionMetrics{}, fmt.Errorf("decode suppressed %s: %w", fips, err)
			}
			out.Latest.Suppressed = append(out.Latest.Suppressed, m)
		}
	}
	if err := json.Unmarshal(knownIssues, &out.KnownIssues); err != nil {
		return domain.RegionMetrics{}, fmt.Errorf("decode known issues %s: %w", fips, err)
	}
	return out, nil
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres not ready: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func upsertArgs(r domain.RegionMetrics) ([]any, error) {
	var (
		lastDate   sql.NullString
		snapshot   any
		suppressed = []string{}
	)
	if !r.Metrics.Empty() {
		lastDate = sql.NullString{String: r.Metrics.LastDate().String(), Valid: true}
	}
	if r.Latest != nil {
		b, err := json.Marshal(r.Latest)
		if err != nil {
			return nil, fmt.Errorf("encode snapshot %s: %w", r.Region.FIPS, err)
		}
		snapshot = b
		for _, m := range r.Latest.Suppressed {
			suppressed = append(suppressed, m.String())
		}
	}

	issues := r.KnownIssues
	if issues == nil {
		issues = []domain.KnownIssue{}
	}
	knownIssues, err := json.Marshal(issues)
	if err != nil {
		return nil, fmt.Errorf("encode known issues %s: %w", r.Region.FIPS, err)
	}

	return []any{
		r.Region.FIPS,
		string(r.Region.Level),
		r.Region.State,
		lastDate,
		r.ComputedAt,
		r.RunID,
		snapshot,
		knownIssues,
		pq.Array(suppressed),
	}, nil
}
