package sink

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/user/pingwatch/internal/model"
)

// SQLiteSink stores probe results in an embedded SQLite database, one
// row per result.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the result database at path.
func OpenSQLite(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open result database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteSink{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSink) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ping_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			host TEXT NOT NULL,
			success INTEGER NOT NULL,
			detail TEXT,
			job_name TEXT,
			timeout_seconds INTEGER,
			ping_count INTEGER,
			observed_at DATETIME NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ping_results_host ON ping_results(host)`,
		`CREATE INDEX IF NOT EXISTS idx_ping_results_observed_at ON ping_results(observed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_ping_results_success ON ping_results(success)`,
		`CREATE INDEX IF NOT EXISTS idx_ping_results_job_name ON ping_results(job_name)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create result tables: %w", err)
		}
	}
	return nil
}

// Append inserts one result row.
func (s *SQLiteSink) Append(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ping_results
		 (host, success, detail, job_name, timeout_seconds, ping_count, observed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Result.Host, rec.Result.Reachable, rec.Result.Detail,
		rec.JobName, int(rec.Params.Timeout.Seconds()), rec.Params.Count,
		rec.Result.ObservedAt)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// ReadAllTallies sums the full result history per host.
func (s *SQLiteSink) ReadAllTallies(ctx context.Context) ([]model.HostTally, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT host,
		        SUM(CASE WHEN success THEN 1 ELSE 0 END),
		        SUM(CASE WHEN success THEN 0 ELSE 1 END)
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

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
