package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/pingwatch/internal/model"
)

// PostgresSink stores probe results in PostgreSQL. It is optional:
// configure a DSN to enable it alongside the file and SQLite sinks.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects, verifies the connection, and ensures the
// result table exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := &PostgresSink{pool: pool}
	if err := s.createTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresSink) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ping_results (
			id BIGSERIAL PRIMARY KEY,
			host TEXT NOT NULL,
			success BOOLEAN NOT NULL,
			detail TEXT,
			job_name TEXT,
			timeout_seconds INT,
			ping_count INT,
			observed_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ping_results_host ON ping_results(host)`,
		`CREATE INDEX IF NOT EXISTS idx_ping_results_observed_at ON ping_results(observed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_ping_results_job_name ON ping_results(job_name)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create result tables: %w", err)
		}
	}
	return nil
}

// Append inserts one result row.
func (s *PostgresSink) Append(ctx context.Context, rec Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ping_results
		 (host, success, detail, job_name, timeout_seconds, ping_count, observed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.Result.Host, rec.Result.Reachable, rec.Result.Detail,
		rec.JobName, int(rec.Params.Timeout.Seconds()), rec.Params.Count,
		rec.Result.ObservedAt)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// ReadAllTallies sums the full result history per host.
func (s *PostgresSink) ReadAllTallies(ctx context.Context) ([]model.HostTally, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT host,
		        COUNT(*) FILTER (WHERE success),
		        COUNT(*) FILTER (WHERE NOT success)
		 FROM ping_results
		 GROUP BY host
		 ORDER BY host`)
	if err != nil {
		return nil, fmt.Errorf("read tallies: %w", err)
	}
	defer rows.Close()

	var tallies []model.HostTally
	for rows.Next() {
		var t model.HostTally
		if err := rows.Scan(&t.Host, &t.Successes, &t.Failures); err != nil {
			return nil, fmt.Errorf("scan tally: %w", err)
		}
		tallies = append(tallies, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read tallies: %w", err)
	}
	return tallies, nil
}

// Close releases the pool.
func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}
