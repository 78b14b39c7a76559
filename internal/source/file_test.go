package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeHostFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileSourceFiltersAndDedups(t *testing.T) {
	path := writeHostFile(t, t.TempDir(), "ips.txt", `
# edge routers
10.0.0.1
10.0.0.2   # rack 4
10.0.0.1

   10.0.0.3
# 10.0.0.4 decommissioned
`)

	hosts, err := NewFileSource(path).GetHosts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}, hosts)
}

func TestFileSourceEmptyFile(t *testing.T) {
	path := writeHostFile(t, t.TempDir(), "ips.txt", "# only comments\n\n")

	_, err := NewFileSource(path).GetHosts(context.Background())
	require.ErrorIs(t, err, ErrNoHosts)
}

func TestFileSourceMissingFile(t *testing.T) {
	src := NewFileSource("nope.txt", t.TempDir())
	_, err := src.GetHosts(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.txt")
}

func TestFileSourceSearchDirFallback(t *testing.T) {
	dir := t.TempDir()
	configDir := filepath.Join(dir, "config")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	writeHostFile(t, configDir, "ips.txt", "192.168.1.1\n")

	hosts, err := NewFileSource("ips.txt", configDir).GetHosts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"192.168.1.1"}, hosts)
}
