package equilibrium

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/transmission-sim/transmission-sim/sim/params"
	"github.com/transmission-sim/transmission-sim/sim/state"
)

func TestSolve_DefaultsConvergeForEIR8(t *testing.T) {
	// GIVEN default parameters and an annual EIR of 8
	s := params.LoadDefaultParameters()

	// WHEN the equilibrium is solved
	sol, err := Solve(s, 8, Options{})

	// THEN it converges within budget and reproduces the target
	require.NoError(t, err)
	assert.LessOrEqual(t, sol.Iterations, DefaultOptions().MaxIterations)
	assert.Less(t, math.Abs(sol.Residual), DefaultOptions().Tolerance)
	assert.InDelta(t, 8.0/365, sol.DailyEIR(s.HumanPopulation), 8.0/365*1e-6)
	assert.Greater(t, sol.FOI, 0.0)
	assert.Greater(t, sol.Infectiousness, 0.0)
}

func TestSolve_ProfileIsADistribution(t *testing.T) {
	sol, err := Solve(params.LoadDefaultParameters(), 8, Options{})
	require.NoError(t, err)

	var weight float64
	for a, w := range sol.Profile.Weight {
		weight += w
		var share float64
		for _, p := range sol.Profile.States[a] {
			share += p
		}
		require.InDelta(t, 1, share, 1e-9, "age %d", a)
	}
	assert.InDelta(t, 1, weight, 1e-9)

	prev := sol.Profile.Prevalence()
	assert.Greater(t, prev[state.Asymptomatic], 0.0)
	assert.InDelta(t, 0, prev[state.Treated], 1e-12)
	// newborns start naive and immunity builds with exposure
	assert.Equal(t, 0.0, sol.Profile.IB[0])
	assert.Greater(t, sol.Profile.IB[3650], sol.Profile.IB[365])
}

func TestSolve_Idempotent(t *testing.T) {
	s := params.LoadDefaultParameters()
	a, err := Solve(s, 8, Options{})
	require.NoError(t, err)
	b, err := Solve(s, 8, Options{})
	require.NoError(t, err)

	assert.Equal(t, a.FOI, b.FOI)
	assert.Equal(t, a.Mosquitoes, b.Mosquitoes)
	assert.Equal(t, a.Profile.States, b.Profile.States)

	ha := a.Sample(200, rand.New(rand.NewSource(9)))
	hb := b.Sample(200, rand.New(rand.NewSource(9)))
	assert.Equal(t, ha, hb)
}

func TestSolve_LiverStageHoldsLatentMass(t *testing.T) {
	// GIVEN the same EIR with a short and a long liver stage
	solve := func(durE float64) *Solution {
		s, err := params.ApplyOverrides(params.LoadDefaultParameters(), map[string]float64{"dur_E": durE})
		require.NoError(t, err)
		sol, err := Solve(s, 8, Options{})
		require.NoError(t, err)
		return sol
	}
	short, long := solve(5), solve(30)

	// THEN a longer latency holds more of the population between bite and onset
	shortLatent := floats.Dot(short.Profile.Weight, short.Profile.Latent)
	longLatent := floats.Dot(long.Profile.Weight, long.Profile.Latent)
	assert.Greater(t, shortLatent, 0.0)
	assert.Greater(t, longLatent, shortLatent)
	assert.Equal(t, 0.0, long.Profile.Latent[0])
	assert.Equal(t, 30, long.Profile.LatentDays)

	// AND sampled carriers sit in an infectable state, bitten within the window
	h := long.Sample(2000, rand.New(rand.NewSource(3)))
	carriers := 0
	for i := 0; i < h.Len(); i++ {
		if !h.Latent(i) {
			continue
		}
		carriers++
		assert.True(t, h.State[i].Infectable())
		assert.GreaterOrEqual(t, h.InfectTime[i], int32(-30))
		assert.LessOrEqual(t, h.InfectTime[i], int32(-1))
	}
	assert.Greater(t, carriers, 0)
}

func TestSolve_HigherEIRMoreMosquitoes(t *testing.T) {
	s := params.LoadDefaultParameters()
	low, err := Solve(s, 2, Options{})
	require.NoError(t, err)
	high, err := Solve(s, 50, Options{})
	require.NoError(t, err)

	assert.Greater(t, high.Mosquitoes[0].Total(), low.Mosquitoes[0].Total())
	assert.Greater(t, high.FOI, low.FOI)
}

func TestSolve_TinyBudget_ConvergenceError(t *testing.T) {
	// GIVEN a budget of two bisection steps
	_, err := Solve(params.LoadDefaultParameters(), 8, Options{MaxIterations: 2})

	// THEN the solver refuses to hand back an unconverged state
	var ce *ConvergenceError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "bisection", ce.Stage)
	assert.Equal(t, 2, ce.Iterations)
	assert.Greater(t, ce.Residual, ce.Tolerance)
}

func TestSolve_InvalidEIR(t *testing.T) {
	for _, eir := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := Solve(params.LoadDefaultParameters(), eir, Options{})
		var ve *params.ValidationError
		require.True(t, errors.As(err, &ve), "eir=%v", eir)
		assert.True(t, ve.Has("init_eir"))
	}
}

func TestSolve_MultiSpeciesMixDeliversCombinedTarget(t *testing.T) {
	// GIVEN three species mixed 0.5/0.3/0.2
	s, err := params.SetSpecies(params.LoadDefaultParameters(),
		[]params.SpeciesParameters{params.GambParams(), params.ArabParams(), params.FunParams()},
		[]float64{0.5, 0.3, 0.2})
	require.NoError(t, err)

	sol, err := Solve(s, 8, Options{})
	require.NoError(t, err)

	// THEN densities follow the proportions and the summed EIR hits the target
	var total float64
	for _, m := range sol.Mosquitoes {
		total += m.Total()
	}
	for k, p := range s.Proportions {
		assert.InDelta(t, p, sol.Mosquitoes[k].Total()/total, 1e-9)
	}
	assert.InDelta(t, 8.0/365, sol.DailyEIR(s.HumanPopulation), 8.0/365*1e-6)
}

func TestSolve_MosquitoesAreStationary(t *testing.T) {
	s := params.LoadDefaultParameters()
	sol, err := Solve(s, 8, Options{})
	require.NoError(t, err)

	// one step of the daily map leaves every compartment unchanged
	m := sol.Mosquitoes[0]
	c := sol.Cycles[0]
	p := math.Exp(-c.Mu)
	pinf := state.RateToProbability(c.A * sol.Infectiousness)
	g := state.RateToProbability(1 / s.Disease.TauEIP)
	sm := m.Sm*p*(1-pinf) + m.Emergence
	pm := m.Pm*p*(1-g) + m.Sm*p*pinf
	im := m.Im*p + m.Pm*p*g
	assert.InDelta(t, m.Sm, sm, m.Sm*1e-9)
	assert.InDelta(t, m.Pm, pm, m.Pm*1e-9)
	assert.InDelta(t, m.Im, im, m.Im*1e-9)
}

func TestSample_AgesWithinRange(t *testing.T) {
	s := params.LoadDefaultParameters()
	sol, err := Solve(s, 8, Options{})
	require.NoError(t, err)

	h := sol.Sample(1000, rand.New(rand.NewSource(1)))
	require.Equal(t, 1000, h.Len())
	var sum float64
	for i := 0; i < h.Len(); i++ {
		require.GreaterOrEqual(t, h.Age[i], int32(0))
		require.Less(t, h.Age[i], int32(s.Disease.MaxAge))
		assert.False(t, h.HasNet(i))
		sum += float64(h.Age[i])
	}
	// truncated exponential with mean ~7663 days; loose bound for 1000 draws
	assert.InDelta(t, 7000, sum/1000, 1500)
}

func TestPickState(t *testing.T) {
	dist := [state.NumHumanStates]float64{0.5, 0.1, 0.4, 0, 0}
	assert.Equal(t, state.Susceptible, pickState(dist, 0.2))
	assert.Equal(t, state.Clinical, pickState(dist, 0.55))
	assert.Equal(t, state.Asymptomatic, pickState(dist, 0.99))
}
