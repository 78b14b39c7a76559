package analyze

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/user/pingwatch/internal/model"
)

// Report file names, one per category.
const (
	NeverReportFile     = "analysis_never_responded.txt"
	AlwaysReportFile    = "analysis_always_responded.txt"
	SometimesReportFile = "analysis_sometimes_responded.txt"
)

const reportTimeFormat = "2006-01-02 15:04:05"

// WriteReports writes the three category report files into dir. Each
// file starts with a comment header (generation time, host count,
// column legend) followed by tab-separated rows sorted by host.
func WriteReports(dir string, c Classification, now time.Time) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	never := renderReport("Hosts that never responded", "HOST\tFAILED_COUNT", c.Never, now,
		func(t model.HostTally) string {
			return fmt.Sprintf("%s\t%d", t.Host, t.Failures)
		})
	if err := writeReportFile(filepath.Join(dir, NeverReportFile), never); err != nil {
		return err
	}

	always := renderReport("Hosts that always responded", "HOST\tSUCCESS_COUNT", c.Always, now,
		func(t model.HostTally) string {
			return fmt.Sprintf("%s\t%d", t.Host, t.Successes)
		})
	if err := writeReportFile(filepath.Join(dir, AlwaysReportFile), always); err != nil {
		return err
	}

	sometimes := renderReport("Hosts that sometimes responded",
		"HOST\tSUCCESS_COUNT\tFAILED_COUNT\tSUCCESS_RATE", c.Sometimes, now,
		func(t model.HostTally) string {
			return fmt.Sprintf("%s\t%d\t%d\t%.1f%%", t.Host, t.Successes, t.Failures, t.SuccessRate())
		})
	return writeReportFile(filepath.Join(dir, SometimesReportFile), sometimes)
}

func renderReport(title, legend string, tallies []model.HostTally, now time.Time, row func(model.HostTally) string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s (analysis generated on %s)\n", title, now.Format(reportTimeFormat))
	fmt.Fprintf(&b, "# Total hosts: %d\n", len(tallies))
	fmt.Fprintf(&b, "# Format: %s\n\n", legend)
	for _, t := range tallies {
		b.WriteString(row(t))
		b.WriteByte('\n')
	}
	return b.String()
}

func writeReportFile(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
