package sink

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/user/pingwatch/internal/model"
)

const (
	successSuffix = "_successful.txt"
	failureSuffix = "_failed.txt"
)

// FileSink writes one tab-separated line per result into a pair of
// per-run log files, <stamp>_successful.txt and <stamp>_failed.txt.
// Line format: host\tSTATUS\tdetail with STATUS in {SUCCESS, FAILED}.
// Each Append is a single write under the lock, so concurrent probes
// never interleave within a record.
type FileSink struct {
	mu      sync.Mutex
	success *os.File
	failure *os.File
}

// NewFileSink opens a fresh log file pair in dir, stamped with the
// current time.
func NewFileSink(dir string) (*FileSink, error) {
	return newFileSinkAt(dir, time.Now())
}

func newFileSinkAt(dir string, now time.Time) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	stamp := now.Format("20060102_150405")

	success, err := os.OpenFile(filepath.Join(dir, stamp+successSuffix),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open success log: %w", err)
	}
	failure, err := os.OpenFile(filepath.Join(dir, stamp+failureSuffix),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		success.Close()
		return nil, fmt.Errorf("open failure log: %w", err)
	}
	return &FileSink{success: success, failure: failure}, nil
}

// Append writes the result to the success or failure log.
func (s *FileSink) Append(_ context.Context, rec Record) error {
	status := "FAILED"
	file := s.failure
	if rec.Result.Reachable {
		status = "SUCCESS"
		file = s.success
	}
	line := fmt.Sprintf("%s\t%s\t%s\n", rec.Result.Host, status, rec.Result.Detail)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := file.WriteString(line); err != nil {
		return fmt.Errorf("append result log: %w", err)
	}
	return nil
}

// Close closes both log files.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err1 := s.success.Close()
	err2 := s.failure.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// FileTallyReader sums all historical log file pairs in a directory.
type FileTallyReader struct {
	Dir string
}

// ReadAllTallies scans every success and failure log in the directory
// and counts observations per host.
func (r FileTallyReader) ReadAllTallies(ctx context.Context) ([]model.HostTally, error) {
	successes := make(map[string]int)
	failures := make(map[string]int)

	if err := r.countFiles(ctx, "*"+successSuffix, successes); err != nil {
		return nil, err
	}
	if err := r.countFiles(ctx, "*"+failureSuffix, failures); err != nil {
		return nil, err
	}

	hosts := make(map[string]struct{}, len(successes)+len(failures))
	for h := range successes {
		hosts[h] = struct{}{}
	}
	for h := range failures {
		hosts[h] = struct{}{}
	}

	tallies := make([]model.HostTally, 0, len(hosts))
	for h := range hosts {
		tallies = append(tallies, model.HostTally{
			Host:      h,
			Successes: successes[h],
			Failures:  failures[h],
		})
	}
	sort.Slice(tallies, func(i, j int) bool { return tallies[i].Host < tallies[j].Host })
	return tallies, nil
}

func (r FileTallyReader) countFiles(ctx context.Context, pattern string, counts map[string]int) error {
	paths, err := filepath.Glob(filepath.Join(r.Dir, pattern))
	if err != nil {
		return fmt.Errorf("glob result logs: %w", err)
	}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := countLogFile(path, counts); err != nil {
			return err
		}
	}
	return nil
}

func countLogFile(path string, counts map[string]int) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open result log %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		counts[parts[0]]++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read result log %s: %w", path, err)
	}
	return nil
}
