// Package sink persists completed probe results and reads back
// cumulative per-host tallies.
package sink

import (
	"context"
	"errors"

	"github.com/user/pingwatch/internal/model"
)

// Record is one result append, carrying the run's job name and
// parameters alongside the result itself.
type Record struct {
	Result  model.ProbeResult
	JobName string
	Params  model.ProbeParams
}

// Sink receives completed probe results. Append must be safe for
// concurrent use and is best effort: a failing sink must not abort
// the probe run that feeds it.
type Sink interface {
	Append(ctx context.Context, rec Record) error
	Close() error
}

// TallyReader sums recorded history into per-host success/failure
// counts.
type TallyReader interface {
	ReadAllTallies(ctx context.Context) ([]model.HostTally, error)
}

// Multi fans every append out to all sinks. One sink failing does not
// stop the others; Append returns the joined errors for logging.
type Multi []Sink

// Append writes the record to every sink.
func (m Multi) Append(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
