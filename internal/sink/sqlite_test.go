package sink

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/pingwatch/internal/model"
)

func TestSQLiteSinkRoundTrip(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	params := model.ProbeParams{Timeout: 3 * time.Second, Count: 1, Workers: 10}

	records := []Record{
		{Result: model.ProbeResult{Host: "10.0.0.1", Reachable: true, Detail: "1.2ms", ObservedAt: now}, JobName: "core", Params: params},
		{Result: model.ProbeResult{Host: "10.0.0.1", Reachable: false, Detail: "Timeout", ObservedAt: now}, JobName: "core", Params: params},
		{Result: model.ProbeResult{Host: "10.0.0.2", Reachable: true, Detail: "8.0ms", ObservedAt: now}, JobName: "core", Params: params},
	}
	for _, rec := range records {
		require.NoError(t, s.Append(ctx, rec))
	}

	tallies, err := s.ReadAllTallies(ctx)
	require.NoError(t, err)

	require.Len(t, tallies, 2)
	assert.Equal(t, model.HostTally{Host: "10.0.0.1", Successes: 1, Failures: 1}, tallies[0])
	assert.Equal(t, model.HostTally{Host: "10.0.0.2", Successes: 1, Failures: 0}, tallies[1])
}

func TestSQLiteSinkConcurrentAppends(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	done := make(chan error, 20)
	for i := 0; i < 20; i++ {
		go func(i int) {
			done <- s.Append(ctx, Record{
				Result: model.ProbeResult{
					Host:       "10.0.0.1",
					Reachable:  i%2 == 0,
					Detail:     "x",
					ObservedAt: time.Now(),
				},
				JobName: "load",
				Params:  model.ProbeParams{Timeout: time.Second, Count: 1, Workers: 4},
			})
		}(i)
	}
	for i := 0; i < 20; i++ {
		require.NoError(t, <-done)
	}

	tallies, err := s.ReadAllTallies(ctx)
	require.NoError(t, err)
	require.Len(t, tallies, 1)
	assert.Equal(t, 20, tallies[0].Total())
	assert.Equal(t, 10, tallies[0].Successes)
}
