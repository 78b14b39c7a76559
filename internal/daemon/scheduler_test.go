package daemon

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func everyMinute(t *testing.T) cron.Schedule {
	t.Helper()
	schedule, err := cron.ParseStandard("* * * * *")
	require.NoError(t, err)
	return schedule
}

func TestTickRunsDueJob(t *testing.T) {
	s := NewScheduler(context.Background(), zap.NewNop())

	var runs atomic.Int32
	job := &Job{
		Name:     "t1",
		Spec:     "* * * * *",
		Schedule: everyMinute(t),
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}
	s.AddJob(job)

	now := time.Now()
	job.mu.Lock()
	job.nextRun = now.Add(-time.Second)
	job.mu.Unlock()

	s.tick(now)

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		job.mu.RLock()
		defer job.mu.RUnlock()
		return !job.running
	}, time.Second, 5*time.Millisecond)

	job.mu.RLock()
	defer job.mu.RUnlock()
	assert.True(t, job.nextRun.After(now))
	assert.Equal(t, 0, job.errorCount)
}

func TestTickBeforeTriggerDoesNothing(t *testing.T) {
	s := NewScheduler(context.Background(), zap.NewNop())

	var runs atomic.Int32
	job := &Job{
		Name:     "t2",
		Spec:     "* * * * *",
		Schedule: everyMinute(t),
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}
	s.AddJob(job)

	s.tick(time.Now().Add(-time.Hour))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())
}

func TestOverlappingTriggerIsSkipped(t *testing.T) {
	s := NewScheduler(context.Background(), zap.NewNop())

	var runs atomic.Int32
	job := &Job{
		Name:     "slow",
		Spec:     "* * * * *",
		Schedule: everyMinute(t),
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}
	s.AddJob(job)

	// Previous trigger still running when the next one arrives.
	now := time.Now()
	job.mu.Lock()
	job.running = true
	job.nextRun = now.Add(-time.Second)
	job.mu.Unlock()

	s.tick(now)
	time.Sleep(20 * time.Millisecond)

	job.mu.RLock()
	assert.Equal(t, 1, job.skipCount)
	assert.True(t, job.nextRun.After(now), "skipped tick must recompute the next trigger")
	job.mu.RUnlock()
	assert.Equal(t, int32(0), runs.Load(), "no second concurrent run may start")

	// Once the job is idle again, the following trigger fires normally.
	job.mu.Lock()
	job.running = false
	job.nextRun = now
	job.mu.Unlock()

	s.tick(now.Add(time.Minute))
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestJobErrorIsCountedNotFatal(t *testing.T) {
	s := NewScheduler(context.Background(), zap.NewNop())

	job := &Job{
		Name:     "failing",
		Spec:     "* * * * *",
		Schedule: everyMinute(t),
		Run: func(ctx context.Context) error {
			return assert.AnError
		},
	}
	s.AddJob(job)

	now := time.Now()
	job.mu.Lock()
	job.nextRun = now.Add(-time.Second)
	job.mu.Unlock()
	s.tick(now)

	require.Eventually(t, func() bool {
		job.mu.RLock()
		defer job.mu.RUnlock()
		return job.errorCount == 1 && !job.running
	}, time.Second, 5*time.Millisecond)

	statuses := s.GetJobStatuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, assert.AnError.Error(), statuses[0].LastError)
}

func TestJobsAreIndependent(t *testing.T) {
	s := NewScheduler(context.Background(), zap.NewNop())

	blocked := make(chan struct{})
	var fastRuns atomic.Int32

	slow := &Job{
		Name:     "slow",
		Spec:     "* * * * *",
		Schedule: everyMinute(t),
		Run: func(ctx context.Context) error {
			<-blocked
			return nil
		},
	}
	fast := &Job{
		Name:     "fast",
		Spec:     "* * * * *",
		Schedule: everyMinute(t),
		Run: func(ctx context.Context) error {
			fastRuns.Add(1)
			return nil
		},
	}
	s.AddJob(slow)
	s.AddJob(fast)

	now := time.Now()
	for _, job := range []*Job{slow, fast} {
		job.mu.Lock()
		job.nextRun = now.Add(-time.Second)
		job.mu.Unlock()
	}

	s.tick(now)

	require.Eventually(t, func() bool { return fastRuns.Load() == 1 }, time.Second, 5*time.Millisecond,
		"a blocked job must not delay another job's run")
	close(blocked)

	require.Eventually(t, func() bool {
		slow.mu.RLock()
		defer slow.mu.RUnlock()
		return !slow.running
	}, time.Second, 5*time.Millisecond)
}

func TestRunDrainsInFlightJobsOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(ctx, zap.NewNop())
	s.grace = 50 * time.Millisecond

	started := make(chan struct{})
	release := make(chan struct{})
	job := &Job{
		Name:     "inflight",
		Spec:     "* * * * *",
		Schedule: everyMinute(t),
		Run: func(runCtx context.Context) error {
			close(started)
			select {
			case <-release:
			case <-runCtx.Done():
			}
			return nil
		},
	}
	s.AddJob(job)

	now := time.Now()
	job.mu.Lock()
	job.nextRun = now.Add(-time.Second)
	job.mu.Unlock()
	s.tick(now)
	<-started

	stopped := make(chan struct{})
	go func() {
		s.drain()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("drain returned while a job was still running inside its grace period")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("drain did not return after the job finished")
	}
	cancel()
}

func TestDrainCancelsHungJobAfterGrace(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewScheduler(ctx, zap.NewNop())
	s.grace = 30 * time.Millisecond

	job := &Job{
		Name:     "hung",
		Spec:     "* * * * *",
		Schedule: everyMinute(t),
		Run: func(runCtx context.Context) error {
			<-runCtx.Done() // only the shutdown cancellation frees it
			return runCtx.Err()
		},
	}
	s.AddJob(job)

	now := time.Now()
	job.mu.Lock()
	job.nextRun = now.Add(-time.Second)
	job.mu.Unlock()
	s.tick(now)

	done := make(chan struct{})
	go func() {
		s.drain()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("drain did not terminate a hung job within the grace period")
	}
}

func TestTriggerJob(t *testing.T) {
	s := NewScheduler(context.Background(), zap.NewNop())
	job := &Job{
		Name:     "manual",
		Spec:     "0 2 * * *",
		Schedule: everyMinute(t),
		Run:      func(ctx context.Context) error { return nil },
	}
	s.AddJob(job)

	assert.False(t, s.TriggerJob("missing"))
	require.True(t, s.TriggerJob("manual"))

	job.mu.RLock()
	defer job.mu.RUnlock()
	assert.False(t, job.nextRun.After(time.Now()))
}
