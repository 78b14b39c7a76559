// Package analyze reduces probe history into per-host reliability
// categories.
package analyze

import (
	"sort"

	"github.com/user/pingwatch/internal/model"
)

// Category is a host's long-run reachability classification.
type Category int

const (
	// CategoryNever marks hosts that failed every observation.
	CategoryNever Category = iota
	// CategoryAlways marks hosts that succeeded every observation.
	CategoryAlways
	// CategorySometimes marks hosts with mixed results.
	CategorySometimes
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryNever:
		return "never"
	case CategoryAlways:
		return "always"
	case CategorySometimes:
		return "sometimes"
	default:
		return "unknown"
	}
}

// Classification partitions hosts with at least one observation into
// the three categories. Each slice is sorted by host.
type Classification struct {
	Never     []model.HostTally
	Always    []model.HostTally
	Sometimes []model.HostTally
}

// Total returns the number of classified hosts.
func (c Classification) Total() int {
	return len(c.Never) + len(c.Always) + len(c.Sometimes)
}

// Classify assigns every host with at least one observation to
// exactly one category. Hosts with zero observations are omitted
// entirely: they did not fail, they were never seen. The function is
// pure; classifying the same tallies twice yields identical output.
func Classify(tallies []model.HostTally) Classification {
	var c Classification
	for _, t := range tallies {
		switch {
		case t.Total() == 0:
			continue
		case t.Successes == 0:
			c.Never = append(c.Never, t)
		case t.Failures == 0:
			c.Always = append(c.Always, t)
		default:
			c.Sometimes = append(c.Sometimes, t)
		}
	}
	sortByHost(c.Never)
	sortByHost(c.Always)
	sortByHost(c.Sometimes)
	return c
}

func sortByHost(tallies []model.HostTally) {
	sort.Slice(tallies, func(i, j int) bool { return tallies[i].Host < tallies[j].Host })
}
