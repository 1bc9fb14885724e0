package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transmission-sim/transmission-sim/sim"
	"github.com/transmission-sim/transmission-sim/sim/internal/testutil"
	"github.com/transmission-sim/transmission-sim/sim/params"
)

func jobsForSeeds(t *testing.T, seeds ...int64) []Job {
	t.Helper()
	base := testutil.WithNets(t, testutil.WithPopulation(t, params.LoadDefaultParameters(), 150), []int{10}, []float64{0.5})
	jobs := make([]Job, len(seeds))
	for i, seed := range seeds {
		s, err := params.ApplyOverrides(base, map[string]float64{"seed": float64(seed)})
		require.NoError(t, err)
		jobs[i] = Job{Name: fmt.Sprintf("seed-%d", seed), Snapshot: s, InitEIR: 8, Timesteps: 40}
	}
	return jobs
}

func TestRun_MatchesSequentialRuns(t *testing.T) {
	// GIVEN four jobs with different seeds
	jobs := jobsForSeeds(t, 1, 2, 3, 4)

	// WHEN run two at a time
	results, err := Run(context.Background(), jobs, 2)
	require.NoError(t, err)

	// THEN results keep job order and equal standalone runs
	require.Len(t, results, len(jobs))
	for i, job := range jobs {
		assert.Equal(t, job.Name, results[i].Name)

		init, err := sim.SetEquilibrium(job.Snapshot, job.InitEIR)
		require.NoError(t, err)
		want, err := sim.RunSimulation(context.Background(), job.Timesteps, init)
		require.NoError(t, err)
		assert.True(t, want.Equal(results[i].Table), "job %s differs from sequential run", job.Name)
	}
}

func TestRun_ParallelismDoesNotChangeTables(t *testing.T) {
	jobs := jobsForSeeds(t, 5, 6, 7)

	serial, err := Run(context.Background(), jobs, 1)
	require.NoError(t, err)
	wide, err := Run(context.Background(), jobs, 0)
	require.NoError(t, err)

	for i := range jobs {
		assert.True(t, serial[i].Table.Equal(wide[i].Table))
	}
}

func TestRun_FailingJob_ReturnsNamedError(t *testing.T) {
	jobs := jobsForSeeds(t, 1, 2)
	jobs[1].Name = "broken"
	jobs[1].InitEIR = -3

	results, err := Run(context.Background(), jobs, 2)

	require.Error(t, err)
	assert.Nil(t, results)
	assert.Contains(t, err.Error(), `job "broken"`)
	var ve *params.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, jobsForSeeds(t, 1), 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_NoJobs(t *testing.T) {
	results, err := Run(context.Background(), nil, 4)
	require.NoError(t, err)
	assert.Empty(t, results)
}
