package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/pingwatch/internal/analyze"
	"github.com/user/pingwatch/internal/sink"
)

var analyzeFrom string

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Categorize hosts by their response history",
	Long: `Sum all recorded probe results per host and write three report
files: hosts that never responded, hosts that always responded, and
hosts that sometimes responded (with their success rate).`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFrom, "from", "files",
		"history to analyze: files, sqlite, or postgres")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	reader, cleanup, err := tallyReader(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	tallies, err := reader.ReadAllTallies(ctx)
	if err != nil {
		return fmt.Errorf("read probe history: %w", err)
	}
	if len(tallies) == 0 {
		fmt.Println("No probe history found. Run some checks first.")
		return nil
	}

	classification := analyze.Classify(tallies)

	fmt.Println("Analysis summary:")
	fmt.Printf("  Total unique hosts tested: %d\n", classification.Total())
	fmt.Printf("  Never responded:     %d hosts\n", len(classification.Never))
	fmt.Printf("  Always responded:    %d hosts\n", len(classification.Always))
	fmt.Printf("  Sometimes responded: %d hosts\n", len(classification.Sometimes))

	if err := analyze.WriteReports(cfg.ReportDir, classification, time.Now()); err != nil {
		return err
	}

	fmt.Println("\nReport files written:")
	fmt.Printf("  %s\n", filepath.Join(cfg.ReportDir, analyze.NeverReportFile))
	fmt.Printf("  %s\n", filepath.Join(cfg.ReportDir, analyze.AlwaysReportFile))
	fmt.Printf("  %s\n", filepath.Join(cfg.ReportDir, analyze.SometimesReportFile))
	return nil
}

func tallyReader(ctx context.Context) (sink.TallyReader, func(), error) {
	noop := func() {}
	switch analyzeFrom {
	case "files":
		return sink.FileTallyReader{Dir: cfg.ResultsDir}, noop, nil
	case "sqlite":
		if cfg.SQLitePath == "" {
			return nil, noop, fmt.Errorf("sqlite_path is not configured")
		}
		s, err := sink.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return s, func() { s.Close() }, nil
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, noop, fmt.Errorf("postgres_dsn is not configured")
		}
		s, err := sink.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, noop, err
		}
		return s, func() { s.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown history source %q (want files, sqlite, or postgres)", analyzeFrom)
	}
}
