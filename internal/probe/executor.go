package probe

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/user/pingwatch/internal/model"
)

// defaultGrace is added on top of a probe's own timeout before the
// executor gives up on it. It covers a primitive that ignores its
// timeout entirely.
const defaultGrace = 2 * time.Second

// Executor runs batches of probes over a host set with a fixed-size
// worker pool.
type Executor struct {
	pinger Pinger
	grace  time.Duration
	log    *zap.Logger
}

// NewExecutor creates an executor around the given probe primitive.
func NewExecutor(pinger Pinger, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		pinger: pinger,
		grace:  defaultGrace,
		log:    log,
	}
}

// RunBatch probes every distinct host in hosts and streams results on
// the returned channel as they complete. The channel is closed once
// all results have been delivered. Ordering across hosts is
// unspecified. At most params.Workers probes are in flight at once.
// Each distinct host yields exactly one result; probe errors and
// timeouts become failed results rather than dropped hosts. If ctx is
// cancelled the batch is cut short: hosts not yet dispatched are not
// probed.
func (e *Executor) RunBatch(ctx context.Context, hosts []string, params model.ProbeParams) <-chan model.ProbeResult {
	params = params.Normalized()
	targets := Dedup(hosts)

	out := make(chan model.ProbeResult)
	jobs := make(chan string)

	workers := params.Workers
	if workers > len(targets) && len(targets) > 0 {
		workers = len(targets)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for host := range jobs {
				out <- e.probeOne(ctx, host, params)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, host := range targets {
			select {
			case jobs <- host:
			case <-ctx.Done():
				e.log.Debug("batch cancelled before dispatch completed",
					zap.Int("hosts", len(targets)))
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

// Collect drains RunBatch into a RunSummary, invoking onResult for
// each completed probe as it arrives.
func (e *Executor) Collect(ctx context.Context, jobName string, hosts []string, params model.ProbeParams, onResult func(model.ProbeResult)) *model.RunSummary {
	summary := &model.RunSummary{
		JobName:   jobName,
		Params:    params.Normalized(),
		StartedAt: time.Now(),
	}
	for r := range e.RunBatch(ctx, hosts, params) {
		summary.Add(r)
		if onResult != nil {
			onResult(r)
		}
	}
	summary.FinishedAt = time.Now()
	return summary
}

// probeOne runs a single probe under an outer deadline of the probe
// timeout plus grace. A primitive that hangs past the deadline is
// abandoned and reported as a timeout; its goroutine unwinds when the
// context fires.
func (e *Executor) probeOne(ctx context.Context, host string, params model.ProbeParams) model.ProbeResult {
	pctx, cancel := context.WithTimeout(ctx, params.Timeout+e.grace)
	defer cancel()

	type outcome struct {
		reachable bool
		detail    string
	}
	done := make(chan outcome, 1)
	go func() {
		reachable, detail := e.pinger.Ping(pctx, host, params)
		done <- outcome{reachable, detail}
	}()

	result := model.ProbeResult{Host: host, ObservedAt: time.Now()}
	select {
	case o := <-done:
		result.Reachable = o.reachable
		result.Detail = o.detail
	case <-pctx.Done():
		result.Reachable = false
		result.Detail = "Timeout"
	}
	return result
}

// Dedup trims hosts, drops blanks, and collapses duplicates while
// preserving first-seen order.
func Dedup(hosts []string) []string {
	seen := make(map[string]struct{}, len(hosts))
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}
