package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/pingwatch/internal/model"
	"github.com/user/pingwatch/internal/probe"
	"github.com/user/pingwatch/internal/sink"
	"github.com/user/pingwatch/internal/source"
)

const (
	colorGreen = "\033[92m"
	colorRed   = "\033[91m"
	colorReset = "\033[0m"
)

var (
	checkTimeout   int
	checkCount     int
	checkWorkers   int
	checkQueryFile string
)

var checkCmd = &cobra.Command{
	Use:   "check [host-file]",
	Short: "Run a one-shot reachability check",
	Long: `Probe every host in the given file (or SQL query via --query-file)
once and print per-host results.

Exits 0 when every host was reachable, 1 when at least one was not,
so the command can gate scripts.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().IntVarP(&checkTimeout, "timeout", "t", 0,
		"ping timeout in seconds (default from config)")
	checkCmd.Flags().IntVarP(&checkCount, "count", "c", 0,
		"number of ping packets (default from config)")
	checkCmd.Flags().IntVarP(&checkWorkers, "workers", "w", 0,
		"number of concurrent workers (default from config)")
	checkCmd.Flags().StringVar(&checkQueryFile, "query-file", "",
		"SQL query file to fetch hosts from the source database instead of a host file")
}

func runCheck(cmd *cobra.Command, args []string) error {
	src, cleanup, err := checkSource(args)
	if err != nil {
		return err
	}
	defer cleanup()

	params := cfg.DefaultParams()
	if checkTimeout > 0 {
		params.Timeout = time.Duration(checkTimeout) * time.Second
	}
	if checkCount > 0 {
		params.Count = checkCount
	}
	if checkWorkers > 0 {
		params.Workers = checkWorkers
	}

	ctx := context.Background()
	hosts, err := src.GetHosts(ctx)
	if err != nil {
		return err
	}

	sinks, closeSinks, err := checkSinks(ctx)
	if err != nil {
		return err
	}
	defer closeSinks()

	fmt.Printf("Testing connectivity to %d hosts...\n", len(hosts))
	fmt.Printf("Timeout: %ds, Count: %d, Workers: %d\n",
		int(params.Timeout.Seconds()), params.Count, params.Workers)
	fmt.Println("------------------------------------------------------------")

	executor := probe.NewExecutor(probe.ForMode(cfg.ProbeMode, cfg.ICMPPrivileged), logger)
	summary := executor.Collect(ctx, "", hosts, params, func(r model.ProbeResult) {
		printResult(r)
		rec := sink.Record{Result: r, Params: params}
		if err := sinks.Append(ctx, rec); err != nil {
			logger.Warn("sink append failed",
				zap.String("host", r.Host),
				zap.Error(err))
		}
	})

	fmt.Println("------------------------------------------------------------")
	fmt.Printf("Results: %d reachable, %d unreachable\n", summary.Reachable, summary.Unreachable)
	fmt.Printf("Total time: %.2f seconds\n", summary.Duration().Seconds())

	if summary.Unreachable > 0 {
		closeSinks()
		cleanup()
		os.Exit(1)
	}
	return nil
}

func checkSource(args []string) (source.HostSource, func(), error) {
	noop := func() {}
	if checkQueryFile != "" {
		qs, err := source.OpenQuerySource(cfg.SourceDriver, cfg.SourceDSN, checkQueryFile)
		if err != nil {
			return nil, noop, err
		}
		return qs, func() { qs.Close() }, nil
	}
	if len(args) == 0 {
		return nil, noop, fmt.Errorf("a host file argument or --query-file is required")
	}
	return source.NewFileSource(args[0], cfg.HostFileSearchDirs()...), noop, nil
}

func checkSinks(ctx context.Context) (sink.Multi, func(), error) {
	var sinks sink.Multi

	fileSink, err := sink.NewFileSink(cfg.ResultsDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open result logs: %w", err)
	}
	sinks = append(sinks, fileSink)

	if cfg.SQLitePath != "" {
		s, err := sink.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			logger.Warn("sqlite store unavailable", zap.Error(err))
		} else {
			sinks = append(sinks, s)
		}
	}
	if cfg.PostgresDSN != "" {
		s, err := sink.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Warn("postgres store unavailable", zap.Error(err))
		} else {
			sinks = append(sinks, s)
		}
	}

	return sinks, func() { sinks.Close() }, nil
}

func printResult(r model.ProbeResult) {
	if r.Reachable {
		fmt.Printf("%s%-15s %-12s %s%s\n", colorGreen, r.Host, "✓ REACHABLE", r.Detail, colorReset)
	} else {
		fmt.Printf("%s%-15s %-12s %s%s\n", colorRed, r.Host, "✗ UNREACHABLE", r.Detail, colorReset)
	}
}
