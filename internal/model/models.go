// Package model defines core data structures for pingwatch.
package model

import (
	"math"
	"time"
)

// ProbeParams control how a batch of probes is executed.
// They are fixed for the duration of one run.
type ProbeParams struct {
	Timeout time.Duration `json:"timeout"` // wall-clock budget for a single probe
	Count   int           `json:"count"`   // ping packets per probe
	Workers int           `json:"workers"` // max probes in flight at once
}

// Normalized returns a copy with zero or negative fields replaced by
// the usual defaults (3s timeout, 1 packet, 10 workers).
func (p ProbeParams) Normalized() ProbeParams {
	if p.Timeout <= 0 {
		p.Timeout = 3 * time.Second
	}
	if p.Count <= 0 {
		p.Count = 1
	}
	if p.Workers <= 0 {
		p.Workers = 10
	}
	return p
}

// ProbeResult is the outcome of a single reachability check against
// one host. Detail carries the latency on success and the failure
// reason otherwise.
type ProbeResult struct {
	Host       string    `json:"host"`
	Reachable  bool      `json:"reachable"`
	Detail     string    `json:"detail"`
	ObservedAt time.Time `json:"observed_at"`
}

// RunSummary aggregates one executor invocation.
type RunSummary struct {
	JobName     string        `json:"job_name,omitempty"`
	Params      ProbeParams   `json:"params"`
	Results     []ProbeResult `json:"results"`
	Reachable   int           `json:"reachable"`
	Unreachable int           `json:"unreachable"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
}

// Add records a completed probe result into the summary.
func (s *RunSummary) Add(r ProbeResult) {
	s.Results = append(s.Results, r)
	if r.Reachable {
		s.Reachable++
	} else {
		s.Unreachable++
	}
}

// Duration returns the wall-clock length of the run.
func (s *RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// HostTally is the cumulative success/failure count for one host
// across all recorded probe history.
type HostTally struct {
	Host      string `json:"host"`
	Successes int    `json:"successes"`
	Failures  int    `json:"failures"`
}

// Total returns the number of observations for the host.
func (t HostTally) Total() int {
	return t.Successes + t.Failures
}

// SuccessRate returns the success percentage rounded to one decimal
// place. A host with no observations reports 0.
func (t HostTally) SuccessRate() float64 {
	total := t.Total()
	if total == 0 {
		return 0
	}
	rate := float64(t.Successes) / float64(total) * 100
	return math.Round(rate*10) / 10
}
