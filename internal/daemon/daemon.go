// Package daemon provides the background scheduling service.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/user/pingwatch/internal/config"
	"github.com/user/pingwatch/internal/model"
	"github.com/user/pingwatch/internal/probe"
	"github.com/user/pingwatch/internal/sink"
	"github.com/user/pingwatch/internal/source"
)

// Daemon manages the scheduling service: job registration, durable
// sinks, signal handling, and graceful shutdown.
type Daemon struct {
	config   *config.Config
	log      *zap.Logger
	executor *probe.Executor

	scheduler *Scheduler
	durable   []sink.Sink // long-lived stores shared across runs

	pidFile   string
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	running   bool
	startTime time.Time
	mu        sync.RWMutex
}

// New creates a daemon: loads the schedule file, opens the configured
// result stores, and registers one scheduler job per definition. It
// fails when no valid jobs are configured.
func New(cfg *config.Config, log *zap.Logger) (*Daemon, error) {
	jobs, err := config.LoadJobs(cfg.ScheduleFile, cfg.DefaultParams(), log)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		config:   cfg,
		log:      log,
		executor: probe.NewExecutor(probe.ForMode(cfg.ProbeMode, cfg.ICMPPrivileged), log),
		pidFile:  filepath.Join(cfg.DataDir, "pingwatch.pid"),
		ctx:      ctx,
		cancel:   cancel,
	}

	if err := d.openDurableSinks(ctx); err != nil {
		cancel()
		return nil, err
	}

	d.scheduler = NewScheduler(ctx, log)
	for _, jd := range jobs {
		schedule, err := cron.ParseStandard(jd.Schedule)
		if err != nil {
			// LoadJobs already validated the expression.
			cancel()
			return nil, fmt.Errorf("parse schedule for job %s: %w", jd.Name, err)
		}
		d.scheduler.AddJob(&Job{
			Name:     jd.Name,
			Spec:     jd.Schedule,
			Schedule: schedule,
			Run:      d.probeJob(jd),
		})
	}

	return d, nil
}

func (d *Daemon) openDurableSinks(ctx context.Context) error {
	if d.config.SQLitePath != "" {
		s, err := sink.OpenSQLite(d.config.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		d.durable = append(d.durable, s)
	}
	if d.config.PostgresDSN != "" {
		s, err := sink.OpenPostgres(ctx, d.config.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres store: %w", err)
		}
		d.durable = append(d.durable, s)
	}
	return nil
}

// probeJob builds the run function for one job definition: resolve
// the host source just-in-time, open a fresh per-run log file pair,
// stream probe results into the sinks.
func (d *Daemon) probeJob(jd config.JobDefinition) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		hosts, cleanup, err := d.resolveHosts(ctx, jd)
		if err != nil {
			return fmt.Errorf("job %s host source: %w", jd.Name, err)
		}
		defer cleanup()

		sinks := make(sink.Multi, 0, len(d.durable)+1)
		sinks = append(sinks, d.durable...)
		fileSink, err := sink.NewFileSink(d.config.ResultsDir)
		if err != nil {
			// Probing is best-effort observability: keep going with
			// whatever stores remain.
			d.log.Warn("result log files unavailable",
				zap.String("job", jd.Name),
				zap.Error(err))
		} else {
			sinks = append(sinks, fileSink)
			defer fileSink.Close()
		}

		d.log.Info("job run starting",
			zap.String("job", jd.Name),
			zap.Int("hosts", len(hosts)),
			zap.Duration("timeout", jd.Params.Timeout),
			zap.Int("workers", jd.Params.Workers))

		summary := d.executor.Collect(ctx, jd.Name, hosts, jd.Params, func(r model.ProbeResult) {
			rec := sink.Record{Result: r, JobName: jd.Name, Params: jd.Params}
			if err := sinks.Append(ctx, rec); err != nil {
				d.log.Warn("sink append failed",
					zap.String("job", jd.Name),
					zap.String("host", r.Host),
					zap.Error(err))
			}
		})

		d.log.Info("job run completed",
			zap.String("job", jd.Name),
			zap.Int("reachable", summary.Reachable),
			zap.Int("unreachable", summary.Unreachable),
			zap.Duration("duration", summary.Duration()))
		return nil
	}
}

func (d *Daemon) resolveHosts(ctx context.Context, jd config.JobDefinition) ([]string, func(), error) {
	noop := func() {}
	if jd.QueryFile != "" {
		qs, err := source.OpenQuerySource(d.config.SourceDriver, d.config.SourceDSN, jd.QueryFile)
		if err != nil {
			return nil, noop, err
		}
		hosts, err := qs.GetHosts(ctx)
		if err != nil {
			qs.Close()
			return nil, noop, err
		}
		return hosts, func() { qs.Close() }, nil
	}

	fs := source.NewFileSource(jd.IPFile, d.config.HostFileSearchDirs()...)
	hosts, err := fs.GetHosts(ctx)
	return hosts, noop, err
}

// Start starts the scheduler and signal handling.
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	if err := d.writePIDFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	d.log.Info("daemon starting", zap.Int("pid", os.Getpid()))
	for _, status := range d.scheduler.GetJobStatuses() {
		d.log.Info("job scheduled",
			zap.String("job", status.Name),
			zap.String("schedule", status.Schedule),
			zap.Time("next_run", status.NextRun))
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.scheduler.Run()
	}()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.handleSignals()
	}()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.statusLoop()
	}()

	return nil
}

// Wait blocks until the daemon has fully stopped.
func (d *Daemon) Wait() {
	d.wg.Wait()
}

// Stop shuts the daemon down: no new triggers are admitted, in-flight
// runs get the scheduler's grace period, then everything is torn
// down.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	d.mu.Unlock()

	d.log.Info("daemon stopping")
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.log.Info("daemon stopped")
	case <-time.After(drainGrace + 5*time.Second):
		d.log.Warn("daemon stop timed out")
	}

	d.removePIDFile()
	if err := sink.Multi(d.durable).Close(); err != nil {
		d.log.Warn("closing result stores", zap.Error(err))
	}
	_ = d.log.Sync()
	return nil
}

func (d *Daemon) handleSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		d.log.Info("received signal", zap.String("signal", sig.String()))
		go d.Stop()
	case <-d.ctx.Done():
	}
}

// statusLoop refreshes the on-disk status file so the status command
// can report job state without talking to the process.
func (d *Daemon) statusLoop() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	d.writeStatus()
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.writeStatus()
		}
	}
}

func (d *Daemon) writeStatus() {
	status := d.Status()
	if err := WriteStatusFile(d.config.DataDir, status); err != nil {
		d.log.Debug("failed to write status file", zap.Error(err))
	}
}

// Status returns the daemon's current state.
func (d *Daemon) Status() *Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return &Status{
		Running:   d.running,
		PID:       os.Getpid(),
		StartTime: d.startTime,
		Uptime:    time.Since(d.startTime),
		Jobs:      d.scheduler.GetJobStatuses(),
	}
}

// IsRunning reports whether the daemon is active.
func (d *Daemon) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

func (d *Daemon) writePIDFile() error {
	return os.WriteFile(d.pidFile, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func (d *Daemon) removePIDFile() {
	os.Remove(d.pidFile)
}

// Status holds the current daemon status.
type Status struct {
	Running   bool
	PID       int
	StartTime time.Time
	Uptime    time.Duration
	Jobs      []JobStatus
}
