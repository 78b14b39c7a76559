package source

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	_ "github.com/mattn/go-sqlite3"    // sqlite3 database/sql driver
)

// QuerySource fetches hosts by executing a SQL query whose text is
// stored in a file. The first result column is taken as the host; an
// optional second column is kept as a free-text label. Duplicate
// hosts collapse to the first row, which also wins the label.
type QuerySource struct {
	db        *sql.DB
	queryFile string
	labels    map[string]string
}

// OpenQuerySource opens a database handle for a query-backed host
// source. driver is a registered database/sql driver name ("sqlite3"
// or "pgx").
func OpenQuerySource(driver, dsn, queryFile string) (*QuerySource, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open host source database: %w", err)
	}
	return &QuerySource{db: db, queryFile: queryFile}, nil
}

// GetHosts loads the query text and executes it.
func (s *QuerySource) GetHosts(ctx context.Context) ([]string, error) {
	query, err := s.loadQuery()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("host source query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("host source query columns: %w", err)
	}

	seen := make(map[string]struct{})
	labels := make(map[string]string)
	var hosts []string

	for rows.Next() {
		var host, label sql.NullString
		dest := make([]any, len(cols))
		dest[0] = &host
		if len(cols) > 1 {
			dest[1] = &label
		}
		for i := 2; i < len(cols); i++ {
			dest[i] = new(sql.RawBytes)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("host source query scan: %w", err)
		}

		h := strings.TrimSpace(host.String)
		if h == "" {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		hosts = append(hosts, h)
		if label.Valid && label.String != "" {
			labels[h] = label.String
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("host source query rows: %w", err)
	}

	if len(hosts) == 0 {
		return nil, fmt.Errorf("%s: %w", s.queryFile, ErrNoHosts)
	}
	s.labels = labels
	return hosts, nil
}

// Labels returns the host labels captured by the last GetHosts call.
func (s *QuerySource) Labels() map[string]string {
	return s.labels
}

// Close releases the database handle.
func (s *QuerySource) Close() error {
	return s.db.Close()
}

func (s *QuerySource) loadQuery() (string, error) {
	data, err := os.ReadFile(s.queryFile)
	if err != nil {
		return "", fmt.Errorf("read query file: %w", err)
	}
	query := strings.TrimSpace(string(data))
	if query == "" {
		return "", fmt.Errorf("query file %s is empty", s.queryFile)
	}
	return query, nil
}
