// Package batch runs independent simulations concurrently.
//
// Each job owns its snapshot, random streams and output table, so jobs share
// nothing and a batch gives the same tables as running the jobs one by one.
package batch

import (
	"context"
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/transmission-sim/transmission-sim/sim"
	"github.com/transmission-sim/transmission-sim/sim/equilibrium"
	"github.com/transmission-sim/transmission-sim/sim/output"
	"github.com/transmission-sim/transmission-sim/sim/params"
)

// Job is one simulation: equilibrium at InitEIR, then Timesteps days.
type Job struct {
	Name      string
	Snapshot  params.Snapshot
	InitEIR   float64
	Timesteps int
	Columns   []string // nil for the full schema

	// Equilibrium overrides the solver options; zero fields use defaults.
	Equilibrium equilibrium.Options
}

// Result pairs a job name with its finished table.
type Result struct {
	Name  string
	Table *output.Table
}

// Run executes jobs with at most parallelism running at once (GOMAXPROCS
// when parallelism <= 0). Results are in job order. The first failure
// cancels the remaining jobs and is returned, wrapped with the job name.
func Run(ctx context.Context, jobs []Job, parallelism int) ([]Result, error) {
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	results := make([]Result, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i := range jobs {
		job := jobs[i]
		g.Go(func() error {
			tbl, err := runJob(ctx, job)
			if err != nil {
				return fmt.Errorf("job %q: %w", job.Name, err)
			}
			results[i] = Result{Name: job.Name, Table: tbl}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func runJob(ctx context.Context, job Job) (*output.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logrus.Debugf("batch: starting %q (eir=%g, timesteps=%d)", job.Name, job.InitEIR, job.Timesteps)
	init, err := sim.SetEquilibriumWith(job.Snapshot, job.InitEIR, job.Equilibrium)
	if err != nil {
		return nil, err
	}
	tbl, err := sim.Run(ctx, job.Timesteps, init, sim.RunConfig{Columns: job.Columns})
	if err != nil {
		return nil, err
	}
	logrus.Debugf("batch: finished %q (%d rows)", job.Name, tbl.Rows())
	return tbl, nil
}
