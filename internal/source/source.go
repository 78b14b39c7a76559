// Package source provides host list inputs for probe runs.
package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoHosts is returned when a source resolves but contains no
// usable hosts.
var ErrNoHosts = errors.New("host source produced no hosts")

// HostSource yields the set of hosts to probe. It is consulted at run
// time, not cached, so edits to the underlying file or table are
// picked up by the next run.
type HostSource interface {
	GetHosts(ctx context.Context) ([]string, error)
}

// FileSource reads one host per line from a text file. Anything after
// a '#' is a comment; blank lines are ignored; duplicates collapse to
// the first occurrence.
type FileSource struct {
	Path       string
	SearchDirs []string // tried in order when Path is relative and absent
}

// NewFileSource creates a file-backed host source with optional
// fallback directories for relative paths.
func NewFileSource(path string, searchDirs ...string) *FileSource {
	return &FileSource{Path: path, SearchDirs: searchDirs}
}

// GetHosts reads and filters the host file.
func (s *FileSource) GetHosts(ctx context.Context) ([]string, error) {
	path, err := s.Resolve()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open host file: %w", err)
	}
	defer f.Close()

	seen := make(map[string]struct{})
	var hosts []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		hosts = append(hosts, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read host file %s: %w", path, err)
	}

	if len(hosts) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoHosts)
	}
	return hosts, nil
}

// Resolve locates the host file: an absolute path is used as-is, a
// relative path is tried against the working directory and then each
// search directory.
func (s *FileSource) Resolve() (string, error) {
	if filepath.IsAbs(s.Path) {
		return s.Path, nil
	}
	if _, err := os.Stat(s.Path); err == nil {
		return s.Path, nil
	}

	tried := []string{s.Path}
	for _, dir := range s.SearchDirs {
		candidate := filepath.Join(dir, s.Path)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		tried = append(tried, candidate)
	}
	return "", fmt.Errorf("host file %q not found (tried %s)", s.Path, strings.Join(tried, ", "))
}
