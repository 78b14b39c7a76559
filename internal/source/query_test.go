package source

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSourceDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inventory.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE devices (addr TEXT, site TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO devices (addr, site) VALUES
		('10.0.0.1', 'core'),
		(' 10.0.0.2 ', 'edge'),
		('10.0.0.1', 'dup-of-first'),
		('', 'blank-host'),
		('10.0.0.3', NULL)`)
	require.NoError(t, err)
	return path
}

func writeQueryFile(t *testing.T, query string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hosts.sql")
	require.NoError(t, os.WriteFile(path, []byte(query), 0o644))
	return path
}

func TestQuerySourceFetchesAndDedupsHosts(t *testing.T) {
	dbPath := seedSourceDB(t)
	queryFile := writeQueryFile(t, "SELECT addr, site FROM devices ORDER BY rowid")

	qs, err := OpenQuerySource("sqlite3", dbPath, queryFile)
	require.NoError(t, err)
	defer qs.Close()

	hosts, err := qs.GetHosts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}, hosts)
	assert.Equal(t, map[string]string{
		"10.0.0.1": "core",
		"10.0.0.2": "edge",
	}, qs.Labels(), "first row wins the label, NULL labels are dropped")
}

func TestQuerySourceSingleColumnQuery(t *testing.T) {
	dbPath := seedSourceDB(t)
	queryFile := writeQueryFile(t, "SELECT addr FROM devices WHERE addr = '10.0.0.3'")

	qs, err := OpenQuerySource("sqlite3", dbPath, queryFile)
	require.NoError(t, err)
	defer qs.Close()

	hosts, err := qs.GetHosts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.3"}, hosts)
}

func TestQuerySourceEmptyResultIsErrNoHosts(t *testing.T) {
	dbPath := seedSourceDB(t)
	queryFile := writeQueryFile(t, "SELECT addr FROM devices WHERE addr = 'nope'")

	qs, err := OpenQuerySource("sqlite3", dbPath, queryFile)
	require.NoError(t, err)
	defer qs.Close()

	_, err = qs.GetHosts(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoHosts))
}

func TestQuerySourceMissingQueryFile(t *testing.T) {
	dbPath := seedSourceDB(t)

	qs, err := OpenQuerySource("sqlite3", dbPath, filepath.Join(t.TempDir(), "missing.sql"))
	require.NoError(t, err)
	defer qs.Close()

	_, err = qs.GetHosts(context.Background())
	require.Error(t, err)
}
