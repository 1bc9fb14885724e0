// Package testutil provides shared test fixtures for the simulator.
// It consolidates the reference scenarios and assertion helpers used across
// sim/ and sim/batch/ test packages.
package testutil

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/transmission-sim/transmission-sim/sim/params"
)

// ScenarioANetRounds are the distribution days of the two-round net scenario.
var ScenarioANetRounds = []int{365, 1460}

// ScenarioASteps is the run length of the two-round net scenario.
const ScenarioASteps = 2555

// ScenarioA returns the default snapshot with two 50% bednet rounds at days
// 365 and 1460, nets retained for 1825 days on average.
func ScenarioA(t *testing.T) params.Snapshot {
	t.Helper()
	return WithNets(t, params.LoadDefaultParameters(), ScenarioANetRounds, []float64{0.5, 0.5})
}

// WithNets adds single-species bednet rounds with standard pyrethroid net
// kinetics to s.
func WithNets(t *testing.T, s params.Snapshot, timesteps []int, coverages []float64) params.Snapshot {
	t.Helper()
	n := len(timesteps)
	fill := func(v float64) *mat.Dense {
		data := make([]float64, n)
		for i := range data {
			data[i] = v
		}
		return mat.NewDense(1, n, data)
	}
	gamman := make([]float64, n)
	for i := range gamman {
		gamman[i] = 2.64 * 365
	}
	out, err := params.SetBednets(s, timesteps, coverages, 5*365, fill(0.533), fill(0.56), fill(0.24), gamman)
	if err != nil {
		t.Fatalf("building bednet scenario: %v", err)
	}
	return out
}

// WithPopulation overrides the human population size.
func WithPopulation(t *testing.T, s params.Snapshot, n int) params.Snapshot {
	t.Helper()
	out, err := params.ApplyOverrides(s, map[string]float64{"human_population": float64(n)})
	if err != nil {
		t.Fatalf("setting population: %v", err)
	}
	return out
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
