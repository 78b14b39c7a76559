package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// drainGrace bounds how long the scheduler waits for in-flight job
// runs after shutdown is requested before cancelling them.
const drainGrace = 30 * time.Second

// Job is a named probe job driven by a cron schedule. A job is either
// idle or running; a trigger that fires while the job is still
// running is skipped, not queued.
type Job struct {
	Name     string
	Spec     string // cron expression, kept for status output
	Schedule cron.Schedule
	Run      func(ctx context.Context) error

	mu         sync.RWMutex
	lastRun    time.Time
	nextRun    time.Time
	lastError  error
	errorCount int
	skipCount  int
	running    bool
}

// JobStatus is a point-in-time snapshot of a job's state.
type JobStatus struct {
	Name         string    `json:"name"`
	Schedule     string    `json:"schedule"`
	LastRun      time.Time `json:"last_run"`
	NextRun      time.Time `json:"next_run"`
	LastError    string    `json:"last_error,omitempty"`
	ErrorCount   int       `json:"error_count"`
	SkippedTicks int       `json:"skipped_ticks"`
	Running      bool      `json:"running"`
}

// Scheduler fires jobs at their cron trigger times. Jobs are
// independent: one job running never delays another job's trigger.
type Scheduler struct {
	ctx       context.Context
	log       *zap.Logger
	jobCtx    context.Context
	jobCancel context.CancelFunc
	grace     time.Duration

	mu   sync.RWMutex
	jobs []*Job
	wg   sync.WaitGroup
}

// NewScheduler creates a scheduler. ctx stops trigger admission; job
// runs get their own context so an in-flight run can finish during
// shutdown.
func NewScheduler(ctx context.Context, log *zap.Logger) *Scheduler {
	jobCtx, jobCancel := context.WithCancel(context.Background())
	return &Scheduler{
		ctx:       ctx,
		log:       log,
		jobCtx:    jobCtx,
		jobCancel: jobCancel,
		grace:     drainGrace,
	}
}

// AddJob registers a job and computes its first trigger time.
func (s *Scheduler) AddJob(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.nextRun = job.Schedule.Next(time.Now())
	s.jobs = append(s.jobs, job)
}

// Run drives the trigger loop until the scheduler context is
// cancelled, then drains in-flight runs, cancelling them if they
// outlive the grace period.
func (s *Scheduler) Run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	s.mu.RLock()
	s.log.Info("scheduler started", zap.Int("jobs", len(s.jobs)))
	s.mu.RUnlock()

	for {
		select {
		case <-s.ctx.Done():
			s.drain()
			return
		case now := <-ticker.C:
			s.tick(now)
		}
	}
}

// tick fires every job whose trigger time has arrived. A job still
// running from its previous trigger has this tick skipped and its
// next trigger recomputed.
func (s *Scheduler) tick(now time.Time) {
	s.mu.RLock()
	jobs := s.jobs
	s.mu.RUnlock()

	for _, job := range jobs {
		job.mu.Lock()
		if now.Before(job.nextRun) {
			job.mu.Unlock()
			continue
		}
		next := job.Schedule.Next(now)
		if job.running {
			job.skipCount++
			job.nextRun = next
			skipped := job.skipCount
			job.mu.Unlock()
			s.log.Warn("job still running, skipping trigger",
				zap.String("job", job.Name),
				zap.Time("next_run", next),
				zap.Int("skipped_ticks", skipped))
			continue
		}
		job.running = true
		job.lastRun = now
		job.nextRun = next
		job.mu.Unlock()

		s.wg.Add(1)
		go s.runJob(job)
	}
}

func (s *Scheduler) runJob(job *Job) {
	defer s.wg.Done()

	s.log.Debug("job started", zap.String("job", job.Name))
	start := time.Now()
	err := job.Run(s.jobCtx)

	job.mu.Lock()
	job.running = false
	job.lastError = err
	if err != nil {
		job.errorCount++
	}
	job.mu.Unlock()

	if err != nil {
		s.log.Error("job failed",
			zap.String("job", job.Name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return
	}
	s.log.Info("job completed",
		zap.String("job", job.Name),
		zap.Duration("duration", time.Since(start)))
}

// drain waits for in-flight runs, cancelling them once the grace
// period expires so a hung job cannot block shutdown forever.
func (s *Scheduler) drain() {
	s.log.Info("scheduler stopping")
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.grace):
		s.log.Warn("shutdown grace expired, cancelling running jobs")
		s.jobCancel()
		<-done
	}
	s.jobCancel()
	s.log.Info("scheduler stopped")
}

// GetJobStatuses returns a snapshot of every job.
func (s *Scheduler) GetJobStatuses() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make([]JobStatus, len(s.jobs))
	for i, job := range s.jobs {
		job.mu.RLock()
		status := JobStatus{
			Name:         job.Name,
			Schedule:     job.Spec,
			LastRun:      job.lastRun,
			NextRun:      job.nextRun,
			ErrorCount:   job.errorCount,
			SkippedTicks: job.skipCount,
			Running:      job.running,
		}
		if job.lastError != nil {
			status.LastError = job.lastError.Error()
		}
		job.mu.RUnlock()
		statuses[i] = status
	}
	return statuses
}

// GetJob returns a job by name, or nil.
func (s *Scheduler) GetJob(name string) *Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, job := range s.jobs {
		if job.Name == name {
			return job
		}
	}
	return nil
}

// TriggerJob pulls a job's next trigger forward to now.
func (s *Scheduler) TriggerJob(name string) bool {
	job := s.GetJob(name)
	if job == nil {
		return false
	}
	job.mu.Lock()
	job.nextRun = time.Now()
	job.mu.Unlock()
	return true
}
